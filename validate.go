package main

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	minYear   = 1800
	maxYear   = 2100
	minRating = 1
	maxRating = 5

	defaultListLimit   = 100
	defaultSearchLimit = 10
)

// Validate checks a create request and fills in the default status.
func (r *CreateEntryRequest) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(r.Title) == "" {
		v.add("title", "is required")
	}
	if r.MediaType == "" {
		v.add("media_type", "is required")
	} else if !oneOf(r.MediaType, mediaTypes) {
		v.add("media_type", "must be one of %s", strings.Join(mediaTypes, ", "))
	}
	if r.Status == "" {
		r.Status = StatusPlanned
	} else if !oneOf(r.Status, statuses) {
		v.add("status", "must be one of %s", strings.Join(statuses, ", "))
	}
	if r.Year != nil && (*r.Year < minYear || *r.Year > maxYear) {
		v.add("year", "must be between %d and %d", minYear, maxYear)
	}
	validateRating(v, r.Rating)
	return v.err()
}

// Validate checks the fields present in a partial update.
func (r *UpdateEntryRequest) Validate() error {
	v := &ValidationError{}
	if r.Status != nil && !oneOf(*r.Status, statuses) {
		v.add("status", "must be one of %s", strings.Join(statuses, ", "))
	}
	validateRating(v, r.Rating)
	return v.err()
}

func validateRating(v *ValidationError, rating *int) {
	if rating != nil && (*rating < minRating || *rating > maxRating) {
		v.add("rating", "must be between %d and %d", minRating, maxRating)
	}
}

// listQuery holds the parsed parameters of GET /entries.
type listQuery struct {
	Filter Document
	Limit  int64
}

// parseListQuery reads the optional equality filters and limit.
func parseListQuery(q url.Values) (listQuery, error) {
	v := &ValidationError{}
	lq := listQuery{Filter: Document{}, Limit: defaultListLimit}
	if mt := q.Get("media_type"); mt != "" {
		lq.Filter["media_type"] = mt
	}
	if st := q.Get("status"); st != "" {
		lq.Filter["status"] = st
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			v.add("limit", "must be a non-negative integer")
		} else {
			lq.Limit = n
		}
	}
	return lq, v.err()
}

// searchQuery holds the parsed parameters of GET /search.
type searchQuery struct {
	Query     string
	MediaType string
	Limit     int
}

// parseSearchQuery reads q, media_type and limit. A missing q is an error,
// a blank one is not.
func parseSearchQuery(q url.Values) (searchQuery, error) {
	v := &ValidationError{}
	sq := searchQuery{MediaType: MediaMovie, Limit: defaultSearchLimit}
	if _, ok := q["q"]; !ok {
		v.add("q", "is required")
	}
	sq.Query = q.Get("q")
	if mt := q.Get("media_type"); mt != "" {
		if !oneOf(mt, mediaTypes) {
			v.add("media_type", "must be one of %s", strings.Join(mediaTypes, ", "))
		}
		sq.MediaType = mt
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.add("limit", "must be a positive integer")
		} else {
			sq.Limit = n
		}
	}
	return sq, v.err()
}

package main

import (
	"time"
)

// entryCollection is the document collection holding diary entries.
const entryCollection = "entry"

// Media types accepted for entries and searches.
const (
	MediaMovie  = "movie"
	MediaSeries = "series"
	MediaAnime  = "anime"
)

// Watching statuses.
const (
	StatusPlanned   = "Planned"
	StatusWatching  = "Watching"
	StatusCompleted = "Completed"
	StatusDropped   = "Dropped"
)

var mediaTypes = []string{MediaMovie, MediaSeries, MediaAnime}

var statuses = []string{StatusPlanned, StatusWatching, StatusCompleted, StatusDropped}

// Entry is a tracked media item with personal status and rating.
type Entry struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	MediaType  string     `json:"media_type"`
	Year       *int       `json:"year,omitempty"`
	Image      *string    `json:"image,omitempty"`
	ExternalID *string    `json:"external_id,omitempty"`
	Source     *string    `json:"source,omitempty"`
	Status     string     `json:"status"`
	Rating     *int       `json:"rating,omitempty"`
	Review     *string    `json:"review,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// CreateEntryRequest is the payload for creating a new entry.
type CreateEntryRequest struct {
	Title      string  `json:"title"`
	MediaType  string  `json:"media_type"`
	Year       *int    `json:"year,omitempty"`
	Image      *string `json:"image,omitempty"`
	ExternalID *string `json:"external_id,omitempty"`
	Source     *string `json:"source,omitempty"`
	Status     string  `json:"status,omitempty"`
	Rating     *int    `json:"rating,omitempty"`
	Review     *string `json:"review,omitempty"`
}

// UpdateEntryRequest is the payload for partially updating an entry.
// Fields outside status, rating and review are dropped while decoding.
type UpdateEntryRequest struct {
	Status *string `json:"status,omitempty"`
	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`
}

// Empty reports whether the request carries no effective change.
func (r *UpdateEntryRequest) Empty() bool {
	return r.Status == nil && r.Rating == nil && r.Review == nil
}

// Fields returns the update as a document merge, stamped with updatedAt.
func (r *UpdateEntryRequest) Fields(updatedAt time.Time) Document {
	fields := Document{"updated_at": updatedAt}
	if r.Status != nil {
		fields["status"] = *r.Status
	}
	if r.Rating != nil {
		fields["rating"] = *r.Rating
	}
	if r.Review != nil {
		fields["review"] = *r.Review
	}
	return fields
}

// Document returns the request as a storable document.
func (r *CreateEntryRequest) Document() Document {
	doc := Document{
		"title":      r.Title,
		"media_type": r.MediaType,
		"status":     r.Status,
	}
	if r.Year != nil {
		doc["year"] = *r.Year
	}
	if r.Image != nil {
		doc["image"] = *r.Image
	}
	if r.ExternalID != nil {
		doc["external_id"] = *r.ExternalID
	}
	if r.Source != nil {
		doc["source"] = *r.Source
	}
	if r.Rating != nil {
		doc["rating"] = *r.Rating
	}
	if r.Review != nil {
		doc["review"] = *r.Review
	}
	return doc
}

// SearchResult is a provider result normalized to a common shape.
//
// Year holds an int for anime (as the provider reports it) and a four
// character string for series and movies. It is nil when unknown.
type SearchResult struct {
	Title      string      `json:"title"`
	Year       interface{} `json:"year"`
	Image      *string     `json:"image"`
	ExternalID string      `json:"external_id"`
	Source     string      `json:"source"`
	MediaType  string      `json:"media_type"`
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

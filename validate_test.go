package main

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestCreateEntryRequestValidate(t *testing.T) {
	req := CreateEntryRequest{Title: "Heat", MediaType: MediaMovie, Year: intPtr(1800), Rating: intPtr(1)}
	require.NoError(t, req.Validate())
	assert.Equal(t, StatusPlanned, req.Status, "status defaults to Planned")

	req = CreateEntryRequest{Title: "Heat", MediaType: MediaMovie, Status: StatusDropped, Year: intPtr(2100), Rating: intPtr(5)}
	require.NoError(t, req.Validate())
	assert.Equal(t, StatusDropped, req.Status)

	req = CreateEntryRequest{MediaType: "book", Status: "Paused", Year: intPtr(3000), Rating: intPtr(9)}
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "media_type", "status", "year", "rating"}, fields)
}

func TestUpdateEntryRequestValidate(t *testing.T) {
	status := StatusCompleted
	req := UpdateEntryRequest{Status: &status, Rating: intPtr(3)}
	assert.NoError(t, req.Validate())
	assert.False(t, req.Empty())

	assert.True(t, (&UpdateEntryRequest{}).Empty())
	assert.NoError(t, (&UpdateEntryRequest{}).Validate())

	bad := "Paused"
	assert.ErrorIs(t, (&UpdateEntryRequest{Status: &bad}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&UpdateEntryRequest{Rating: intPtr(0)}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&UpdateEntryRequest{Rating: intPtr(6)}).Validate(), ErrValidation)
}

func TestParseListQuery(t *testing.T) {
	q, err := parseListQuery(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, q.Filter)
	assert.Equal(t, int64(defaultListLimit), q.Limit)

	q, err = parseListQuery(url.Values{"media_type": {"anime"}, "status": {"Watching"}, "limit": {"0"}})
	require.NoError(t, err)
	assert.Equal(t, Document{"media_type": "anime", "status": "Watching"}, q.Filter)
	assert.Zero(t, q.Limit)

	_, err = parseListQuery(url.Values{"limit": {"-1"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseSearchQuery(t *testing.T) {
	q, err := parseSearchQuery(url.Values{"q": {" "}})
	require.NoError(t, err)
	assert.Equal(t, searchQuery{Query: " ", MediaType: MediaMovie, Limit: defaultSearchLimit}, q)

	_, err = parseSearchQuery(url.Values{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = parseSearchQuery(url.Values{"q": {"x"}, "limit": {"ten"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpstreamSearchErrorTruncates(t *testing.T) {
	err := &UpstreamSearchError{Provider: SourceJikan, Err: errors.New("connection refused " + strings.Repeat("é", 500))}
	assert.Len(t, []rune(err.Error()), maxUpstreamMessage)
	assert.Equal(t, "Search failed: connection refused", err.Error()[:len("Search failed: connection refused")])

	short := &UpstreamSearchError{Err: errors.New("EOF")}
	assert.Equal(t, "Search failed: EOF", short.Error())
}

package main

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entry is not found in the store.
var ErrNotFound = errors.New("entry not found")

// ErrValidation is returned when the input payload or query is invalid.
var ErrValidation = errors.New("validation failed")

// ErrStorageUnavailable is returned by every store operation when no
// database connection was configured.
var ErrStorageUnavailable = errors.New("database not available")

// maxUpstreamMessage bounds the message surfaced for a failed search.
const maxUpstreamMessage = 120

// UpstreamSearchError wraps any failure talking to a search provider.
type UpstreamSearchError struct {
	Provider string
	Err      error
}

func (e *UpstreamSearchError) Error() string {
	if e == nil || e.Err == nil {
		return "Search failed"
	}
	return truncate(fmt.Sprintf("Search failed: %v", e.Err), maxUpstreamMessage)
}

func (e *UpstreamSearchError) Unwrap() error {
	return e.Err
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msg := ""
	for i, f := range e.Fields {
		if i > 0 {
			msg += "; "
		}
		msg += f.Field + ": " + f.Message
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, format string, args ...interface{}) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// err returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package services

import "errors"

// Core error taxonomy. All of these surface to the caller unmodified;
// the services never retry internally.
var (
	// ErrNotFound means the referenced source or notebook does not exist
	// or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation covers malformed input caught before any expensive
	// work, e.g. an empty search query.
	ErrValidation = errors.New("validation failed")

	// ErrModelUnavailable means the embedding/generation backend is
	// unreachable or erroring. The caller may retry with backoff.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrStorage wraps persistence layer failures on read or write.
	ErrStorage = errors.New("storage failure")
)

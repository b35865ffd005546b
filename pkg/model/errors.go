package model

import "errors"

var (
	// ErrNetwork indicates a request failed or returned a non-success status.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse indicates a payload could not be parsed as the
	// expected geometry.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrValidation indicates required user input is missing or invalid.
	// It is raised before any network call is made.
	ErrValidation = errors.New("validation error")
	// ErrPersistence indicates a storage read or write failed. Persistence is
	// best-effort; callers log and continue.
	ErrPersistence = errors.New("persistence error")
	// ErrProjection indicates a CRS transform failed. The normalizer falls
	// back to the unmodified input.
	ErrProjection = errors.New("projection error")
)

package engine

import "errors"

// Failure taxonomy shared across the engine packages.
//
// ErrInvalidInput and ErrMissingProfile surface to the caller with no partial
// effect. ErrAnalyzerUnavailable never leaves the engine: the vector builder
// absorbs it by switching to the deterministic fallback path.
var (
	// ErrInvalidInput marks malformed input: a vector that fails taxonomy
	// validation, an empty member list for group aggregation, or a rating
	// outside [0.5, 5.0].
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingProfile marks an update request for a user or movie vector
	// that has not been built yet.
	ErrMissingProfile = errors.New("profile not found")

	// ErrAnalyzerUnavailable marks a semantic analyzer failure or timeout.
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")

	// ErrNotFound marks a missing vector in the persistence layer.
	ErrNotFound = errors.New("vector not found")
)

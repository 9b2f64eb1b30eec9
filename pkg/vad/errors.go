package vad

import "errors"

// Errors returned by the vad package.
var (
	// ErrChunkSize indicates the configured chunk size does not match
	// what the scorer requires. Raised at construction, never at
	// runtime.
	ErrChunkSize = errors.New("vad: chunk size does not match scorer requirement")

	// ErrNoScorer indicates a Detector was constructed without a scorer.
	ErrNoScorer = errors.New("vad: scorer is required")
)

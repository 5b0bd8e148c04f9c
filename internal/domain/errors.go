package domain

import "errors"

var (
	// ErrProfileNotFound signals a missing profile record.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrModelUnavailable signals that the embedding encoder failed to load or run.
	// Fatal for the triggering call; never corrupts index state. Retryable with backoff.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrIndexCorrupt signals a structural index invariant violation.
	// The caller is expected to force a Rebuild.
	ErrIndexCorrupt = errors.New("vector index corrupt")
	// ErrInvalidWeights signals a negative or incomplete scoring weight set.
	// Rejected before any scoring work, never silently defaulted.
	ErrInvalidWeights = errors.New("invalid scoring weights")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidProfile signals a structurally invalid profile record.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

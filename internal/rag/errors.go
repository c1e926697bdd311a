package rag

import "errors"

// Sentinel errors shared across the retrieval pipeline. Callers classify
// failures with [errors.Is] and pick a degraded response accordingly.
var (
	// ErrInvalidInput marks caller mistakes: empty queries, mismatched
	// batch lengths, blank texts handed to an embedder.
	ErrInvalidInput = errors.New("rag: invalid input")

	// ErrStoreUnavailable marks failures reaching or querying the vector
	// store. The pipeline can still answer without retrieved context.
	ErrStoreUnavailable = errors.New("rag: vector store unavailable")

	// ErrModelUnavailable marks failures reaching the embedding or chat
	// model backend.
	ErrModelUnavailable = errors.New("rag: model unavailable")

	// ErrDimensionMismatch marks vectors whose dimensionality does not
	// match the collection the store was configured with.
	ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")
)

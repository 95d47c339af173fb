package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown record kind or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Generation is disabled, context building still works.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or failed. Ranking degrades to keyword-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the record store could not be read or written.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// Record Errors.

	// ErrMalformedRecord indicates a record is missing required fields.
	// Malformed records are skipped during scoring.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDimensionMismatch indicates two vectors of different length were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Package retrieval implements the hybrid ranking engine: keyword
// extraction, similarity and keyword scoring, recency weighting, ranking,
// dynamic result sizing and context assembly.
//
// Everything here is pure Go and free of I/O. Services in
// internal/core/services feed it records read from a driven.RecordStore
// and query vectors from a driven.EmbeddingService.
package retrieval

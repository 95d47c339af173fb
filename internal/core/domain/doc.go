// Package domain defines the core business entities for Loom.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - IndexedRecord: A unit of retrievable knowledge
//   - Chunk: A sentence-aligned slice of a longer text
//   - RetrievalCandidate: A scored record produced while ranking
//   - Chapter, Character, WikiEntry, StyleSample: Source entities
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

// Package sqlite provides a SQLite-backed implementation of driven.RecordStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Vectors are stored as little-endian float32 BLOBs
// and metadata as JSON text.
//
// # Data Location
//
// By default, the database is stored at ~/.loom/data/records.db
//
// # Thread Safety
//
// All operations are thread-safe. Entity replacement runs in a single
// transaction, and SQLite in WAL mode gives readers a consistent snapshot,
// so a reader never sees a half-replaced entity.
package sqlite

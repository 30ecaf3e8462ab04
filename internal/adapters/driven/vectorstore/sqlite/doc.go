// Package sqlite provides SQLite-backed implementations of the vector store,
// full-text store and chunk ledger ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Two stores share one schema:
//
//   - VectorStore: embeddings as little-endian float32 blobs, cosine ranking in Go
//   - TextStore: FTS5 bm25 ranking over the same rows, embeddings optional
//   - Ledger: per-source chunk counts in the indexed_sources table
//
// Every row is keyed by collection, so several indexes can live in one file.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.context-search/data/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite

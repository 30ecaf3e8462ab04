// Package domain defines the core entities for context-search.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A contiguous window of a source text
//   - IndexedDocument: A chunk prepared for a vector store
//   - RetrievedDocument: A ranked hit returned by a store
//   - Answer and Source: A generated answer with attributions
//   - Config: The resolved pipeline configuration
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

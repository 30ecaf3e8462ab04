// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Embedder: Turns text into fixed-dimension vectors
//   - VectorStore: Persists indexed documents and ranks them by similarity
//   - TextSearchable: Optional capability of a store that ranks raw query text
//   - LanguageModel: Produces answers, blocking or streamed
//   - ChunkLedger: Remembers how many chunks each source produced
//   - PromptStore: Loads prompt overrides
//   - Chunker: Splits source text into overlapping windows
//   - Normaliser, NormaliserRegistry: Turn raw file bytes into text
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

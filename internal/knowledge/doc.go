// Package knowledge manages the vector index and the embedding capability.
//
// Architecture:
//
//	Store (embed + search orchestration)
//	  +-- Embedder (genkit ai.Embedder wrapper, fixed dimension)
//	  +-- Index    (vector storage: PostgreSQL + pgvector, or in-memory)
//
// The Index interface is the external vector-index capability: Upsert writes
// (id, vector, metadata) entries, Query performs a top-K nearest-neighbor
// lookup. PGIndex is the production implementation; MemoryIndex is a
// brute-force implementation for tests and index-free runs.
//
// Dimension discipline: every vector crossing an Index boundary is validated
// against the index's configured dimension before any network call. A
// mismatch fails fast with ErrDimensionMismatch instead of letting the index
// service reject the request.
package knowledge

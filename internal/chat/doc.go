// Package chat implements the conversation pipeline: query rewriting,
// retrieval over the knowledge store, and persona-driven reply generation,
// with one completion backend shared by the model-facing stages.
//
// The stages depend on the Completer interface rather than a concrete
// provider. GenkitCompleter is the production implementation; tests use
// in-memory stubs.
package chat

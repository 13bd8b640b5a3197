// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VectorStore: Stores points and serves both retrieval paths
//     (dense vector similarity and BM25 keyword search) over the same
//     filterable corpus.
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingService: Generates query embeddings. Without it, search
//     runs keyword-only and responses are marked degraded.
//   - LLMService: Classifies query intent and source types. Without it,
//     the query processor uses its deterministic heuristics.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

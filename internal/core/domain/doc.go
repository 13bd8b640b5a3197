// Package domain defines the core business entities for Quarry.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SearchResult: An enriched retrieval hit with derived views
//   - Query: A processed search query with classification output
//   - ProjectFilterSpec / FilterExpr: Project scoping and its
//     backend-agnostic filter expression
//   - SearchResponse: The ordered result set plus degradation metadata
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

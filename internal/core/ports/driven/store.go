package driven

import (
	"context"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// Payload holds the stored fields needed to build a SearchResult
// without a second round-trip to the store.
type Payload struct {
	// Title is the document title.
	Title string `json:"title"`

	// Content is the indexed text of the point.
	Content string `json:"content"`

	// URL is the original location, if known.
	URL string `json:"url,omitempty"`

	// SourceType identifies the originating system.
	SourceType domain.SourceType `json:"source_type"`

	// ProjectID scopes the point to an ingestion project, if any.
	ProjectID string `json:"project_id,omitempty"`

	// Hierarchy is present only for hierarchical sources.
	Hierarchy *domain.Hierarchy `json:"hierarchy,omitempty"`

	// Attachment is present only for file attachments.
	Attachment *domain.Attachment `json:"attachment,omitempty"`

	// Entities are extracted named entities, used for overlap enrichment.
	Entities []string `json:"entities,omitempty"`

	// Topics are extracted topics, used for overlap enrichment.
	Topics []string `json:"topics,omitempty"`
}

// Point is a stored unit: an identifier, its embedding, and its payload.
type Point struct {
	// ID is the unique point identifier.
	ID string `json:"id"`

	// Vector is the dense embedding of the content.
	Vector []float32 `json:"vector,omitempty"`

	// Payload carries the retrievable fields.
	Payload Payload `json:"payload"`
}

// ScoredPoint is a retrieval hit from either search path.
type ScoredPoint struct {
	// ID is the matched point.
	ID string

	// Score is the path-native relevance score: cosine similarity for
	// the vector path, BM25 for the keyword path. Raw, not normalised.
	Score float64

	// Payload carries the stored fields of the matched point.
	Payload Payload
}

// VectorStore stores points and serves both retrieval paths over the
// same filterable corpus. Implementations are long-lived, shared across
// concurrent searches, and responsible for their own connection pooling.
type VectorStore interface {
	// Upsert stores or replaces points.
	Upsert(ctx context.Context, points []Point) error

	// Delete removes a point.
	Delete(ctx context.Context, id string) error

	// VectorSearch returns up to limit nearest neighbours of the query
	// vector, constrained by the filter, best first.
	VectorSearch(ctx context.Context, vector []float32, filter domain.FilterExpr, limit int) ([]ScoredPoint, error)

	// KeywordSearch returns up to limit BM25 matches for the terms,
	// constrained by the filter, best first. Zero matching terms yields
	// an empty result, not an error.
	KeywordSearch(ctx context.Context, terms []string, filter domain.FilterExpr, limit int) ([]ScoredPoint, error)

	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

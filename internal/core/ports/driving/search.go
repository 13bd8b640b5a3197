package driving

import (
	"context"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// SearchService provides hybrid search capabilities to external actors.
type SearchService interface {
	// Search performs hybrid search across the indexed corpus.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// HierarchySearch is Search restricted to results carrying
	// hierarchy metadata, for navigating structured sources.
	HierarchySearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// AttachmentSearch is Search restricted to file-attachment results.
	AttachmentSearch(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}

package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driving"
	"github.com/quarrydocs/quarry/internal/logger"
)

// Ensure CachedSearchService implements the interface.
var _ driving.SearchService = (*CachedSearchService)(nil)

// Default cache tuning values.
const (
	// DefaultCacheSize is the maximum number of cached responses.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long a cached response stays valid.
	DefaultCacheTTL = 5 * time.Minute
)

// cacheEntry is a cached response with its expiry time.
type cacheEntry struct {
	response  *domain.SearchResponse
	expiresAt time.Time
}

// CachedSearchService decorates a SearchService with an LRU + TTL query
// cache. Caching is a caller-side concern: the engine itself stays
// stateless. Degraded responses are never cached, so a recovered path
// becomes visible on the next identical query.
type CachedSearchService struct {
	inner driving.SearchService
	cache *lru.Cache[[32]byte, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedSearchService wraps a search service with a query cache.
// Non-positive size or TTL fall back to the defaults.
func NewCachedSearchService(inner driving.SearchService, size int, ttl time.Duration) (*CachedSearchService, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner search service is required", domain.ErrConfiguration)
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	cache, err := lru.New[[32]byte, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("%w: creating query cache: %v", domain.ErrConfiguration, err)
	}

	return &CachedSearchService{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Search performs hybrid search, serving repeated queries from cache.
func (s *CachedSearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return s.cached(ctx, "search", query, opts, s.inner.Search)
}

// HierarchySearch performs hierarchy search, serving repeats from cache.
func (s *CachedSearchService) HierarchySearch(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return s.cached(ctx, "hierarchy", query, opts, s.inner.HierarchySearch)
}

// AttachmentSearch performs attachment search, serving repeats from cache.
func (s *CachedSearchService) AttachmentSearch(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return s.cached(ctx, "attachment", query, opts, s.inner.AttachmentSearch)
}

type searchFunc func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

func (s *CachedSearchService) cached(
	ctx context.Context, op, query string, opts domain.SearchOptions, fn searchFunc,
) (*domain.SearchResponse, error) {
	key := cacheKey(op, query, opts)

	if entry, ok := s.cache.Get(key); ok {
		if s.now().Before(entry.expiresAt) {
			logger.Debug("Query cache hit: op=%s query=%q", op, query)
			return entry.response, nil
		}
		s.cache.Remove(key)
	}

	response, err := fn(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if !response.Degraded {
		s.cache.Add(key, cacheEntry{
			response:  response,
			expiresAt: s.now().Add(s.ttl),
		})
	}

	return response, nil
}

// cacheKey hashes the operation, query text, and every option that
// affects the result set. Pointer filters are dereferenced so logically
// equal options always produce the same key.
func cacheKey(op, query string, opts domain.SearchOptions) [32]byte {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte(0)
	b.WriteString(query)
	b.WriteByte(0)
	fmt.Fprintf(&b, "%d|%v|%v", opts.Limit, opts.MinScore, opts.ProjectIDs)

	f := opts.Filters
	fmt.Fprintf(&b, "|%t|%t|%t", f.RootOnly, f.HierarchyOnly, f.AttachmentsOnly)
	if f.HasChildren != nil {
		fmt.Fprintf(&b, "|hc=%t", *f.HasChildren)
	}
	if f.MaxDepth != nil {
		fmt.Fprintf(&b, "|md=%d", *f.MaxDepth)
	}
	fmt.Fprintf(&b, "|%v|%s|%v|%v", f.FileTypes, f.Author, f.ReferenceEntities, f.ReferenceTopics)

	return sha256.Sum256([]byte(b.String()))
}

package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
	"github.com/quarrydocs/quarry/internal/core/ports/driving"
	"github.com/quarrydocs/quarry/internal/logger"
)

// Ensure HybridSearchEngine implements the interface.
var _ driving.SearchService = (*HybridSearchEngine)(nil)

// Default engine tuning values.
const (
	// DefaultVectorWeight is the fusion weight of the vector path.
	DefaultVectorWeight = 0.7

	// DefaultKeywordWeight is the fusion weight of the keyword path.
	DefaultKeywordWeight = 0.3

	// DefaultCandidateMultiplier oversizes the per-path candidate pool
	// relative to the requested limit to leave room for fusion.
	DefaultCandidateMultiplier = 3

	// DefaultEmbedTimeout bounds the query embedding call.
	DefaultEmbedTimeout = 15 * time.Second

	// DefaultSearchTimeout bounds each store search call.
	DefaultSearchTimeout = 10 * time.Second

	// DefaultEmbedRetryDelay is the pause before the single embedding retry.
	DefaultEmbedRetryDelay = 200 * time.Millisecond

	// snippetLimit caps result snippets, in runes.
	snippetLimit = 240
)

// EngineConfig tunes the hybrid search engine. The zero value is
// replaced field-by-field with the defaults above.
type EngineConfig struct {
	// VectorWeight is the fusion weight of normalised vector scores.
	VectorWeight float64

	// KeywordWeight is the fusion weight of normalised keyword scores.
	KeywordWeight float64

	// CandidateMultiplier sets the per-path candidate pool to
	// limit * multiplier.
	CandidateMultiplier int

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration

	// VectorTimeout bounds the vector store search call.
	VectorTimeout time.Duration

	// KeywordTimeout bounds the keyword store search call.
	KeywordTimeout time.Duration

	// EmbedRetryDelay is the pause before the single embedding retry.
	EmbedRetryDelay time.Duration
}

// DefaultEngineConfig returns the default engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		VectorWeight:        DefaultVectorWeight,
		KeywordWeight:       DefaultKeywordWeight,
		CandidateMultiplier: DefaultCandidateMultiplier,
		EmbedTimeout:        DefaultEmbedTimeout,
		VectorTimeout:       DefaultSearchTimeout,
		KeywordTimeout:      DefaultSearchTimeout,
		EmbedRetryDelay:     DefaultEmbedRetryDelay,
	}
}

// normalise fills zero fields with defaults and validates the weights.
func (c EngineConfig) normalise() (EngineConfig, error) {
	def := DefaultEngineConfig()
	if c.VectorWeight == 0 && c.KeywordWeight == 0 {
		c.VectorWeight = def.VectorWeight
		c.KeywordWeight = def.KeywordWeight
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 {
		return c, fmt.Errorf("%w: fusion weights must be non-negative (vector=%v, keyword=%v)",
			domain.ErrConfiguration, c.VectorWeight, c.KeywordWeight)
	}
	if c.CandidateMultiplier < 1 {
		c.CandidateMultiplier = def.CandidateMultiplier
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = def.EmbedTimeout
	}
	if c.VectorTimeout <= 0 {
		c.VectorTimeout = def.VectorTimeout
	}
	if c.KeywordTimeout <= 0 {
		c.KeywordTimeout = def.KeywordTimeout
	}
	if c.EmbedRetryDelay <= 0 {
		c.EmbedRetryDelay = def.EmbedRetryDelay
	}
	return c, nil
}

// candidate holds per-point fusion state while both paths are merged.
type candidate struct {
	id           string
	vectorScore  float64 // normalised to [0,1]
	rawVector    float64 // store-native, used for tie-breaking
	keywordScore float64 // normalised to [0,1]
	fused        float64
	payload      driven.Payload
}

// HybridSearchEngine fuses dense vector search with BM25 keyword search
// over the same store. It holds no mutable state between calls, so
// concurrent searches are safe without locking.
type HybridSearchEngine struct {
	store     driven.VectorStore
	embedder  driven.EmbeddingService
	processor *QueryProcessor
	cfg       EngineConfig
}

// NewHybridSearchEngine creates a hybrid search engine. The store is
// required; the embedder is optional (keyword-only, degraded responses
// when absent). A nil processor gets a heuristic-only one.
func NewHybridSearchEngine(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	processor *QueryProcessor,
	cfg EngineConfig,
) (*HybridSearchEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", domain.ErrConfiguration)
	}
	if processor == nil {
		processor = NewQueryProcessor(nil)
	}

	cfg, err := cfg.normalise()
	if err != nil {
		return nil, err
	}

	return &HybridSearchEngine{
		store:     store,
		embedder:  embedder,
		processor: processor,
		cfg:       cfg,
	}, nil
}

// Search performs hybrid search across the indexed corpus.
func (e *HybridSearchEngine) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return e.search(ctx, query, opts)
}

// HierarchySearch is Search restricted to results carrying hierarchy metadata.
func (e *HybridSearchEngine) HierarchySearch(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	opts.Filters.HierarchyOnly = true
	return e.search(ctx, query, opts)
}

// AttachmentSearch is Search restricted to file-attachment results.
func (e *HybridSearchEngine) AttachmentSearch(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	opts.Filters.AttachmentsOnly = true
	return e.search(ctx, query, opts)
}

// search runs the full pipeline: classify, filter, dual-path retrieval,
// fusion, metadata filtering, enrichment.
func (e *HybridSearchEngine) search(
	ctx context.Context, raw string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", raw)

	if opts.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidQuery, opts.Limit)
	}

	query := e.processor.Process(ctx, raw)
	query.ProjectIDs = opts.ProjectIDs
	query.Filters = opts.Filters
	logger.Debug("Intent: %s, likely sources: %v", query.Intent, query.LikelySourceTypes)

	filter, err := BuildProjectFilter(NewProjectFilterSpec(opts.ProjectIDs))
	if err != nil {
		return nil, err
	}
	logger.Debug("Project filter: op=%s values=%v", filter.Op, filter.Values)

	// Oversized per-path pool leaves room for fusion and metadata filters.
	poolSize := opts.Limit * e.cfg.CandidateMultiplier
	logger.Debug("Candidate pool size: %d", poolSize)

	vectorHits, keywordHits, vectorErr, keywordErr, err := e.runPaths(ctx, query, filter, poolSize)
	if err != nil {
		return nil, err
	}

	if vectorErr != nil && keywordErr != nil {
		logger.Warn("Both retrieval paths failed")
		return nil, fmt.Errorf("%w: vector path: %v; keyword path: %v",
			domain.ErrStoreUnavailable, vectorErr, keywordErr)
	}

	response := &domain.SearchResponse{}
	switch {
	case vectorErr != nil:
		response.Degraded = true
		response.DegradedReason = fmt.Sprintf("vector path unavailable: %v", vectorErr)
		logger.Warn("Degraded to keyword-only: %v", vectorErr)
	case keywordErr != nil:
		response.Degraded = true
		response.DegradedReason = fmt.Sprintf("keyword path unavailable: %v", keywordErr)
		logger.Warn("Degraded to vector-only: %v", keywordErr)
	}

	candidates := e.fuse(vectorHits, keywordHits)
	logger.Debug("Fused candidates: %d (vector=%d, keyword=%d)",
		len(candidates), len(vectorHits), len(keywordHits))

	response.Results = e.collectResults(candidates, query, opts)
	logger.Info("Final results: %d (degraded=%t)", len(response.Results), response.Degraded)

	return response, nil
}

// runPaths executes the vector and keyword searches concurrently. The
// keyword path does not wait for the embedding call. Per-path failures
// are captured for degradation; only caller cancellation aborts the
// whole search.
func (e *HybridSearchEngine) runPaths(
	ctx context.Context, query domain.Query, filter domain.FilterExpr, limit int,
) (vectorHits, keywordHits []driven.ScoredPoint, vectorErr, keywordErr, fatal error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if e.embedder == nil {
			vectorErr = fmt.Errorf("%w: embedding service not configured", domain.ErrProviderUnavailable)
			return nil
		}

		vector, err := e.embedQuery(gctx, query.RawText)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			vectorErr = fmt.Errorf("embed query: %w", err)
			return nil
		}

		sctx, cancel := context.WithTimeout(gctx, e.cfg.VectorTimeout)
		defer cancel()

		hits, err := e.store.VectorSearch(sctx, vector, filter, limit)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			vectorErr = fmt.Errorf("vector search: %w", err)
			return nil
		}
		vectorHits = hits
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, e.cfg.KeywordTimeout)
		defer cancel()

		hits, err := e.store.KeywordSearch(sctx, query.ExpandedTerms, filter, limit)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			keywordErr = fmt.Errorf("keyword search: %w", err)
			return nil
		}
		keywordHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, nil, err
	}
	return vectorHits, keywordHits, vectorErr, keywordErr, nil
}

// embedQuery embeds the raw query text, retrying once on transient
// failure. Only the raw text is embedded; expanded terms feed the
// keyword path, keeping the embedding input deterministic.
func (e *HybridSearchEngine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vector, err := e.embedder.Embed(ectx, text)
	if err == nil {
		return vector, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.Warn("Query embedding failed: %v (retrying once)", err)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.cfg.EmbedRetryDelay):
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()
	return e.embedder.Embed(rctx, text)
}

// fuse merges both hit lists by point ID and computes weighted fused
// scores over normalised path scores. A point absent from one path
// contributes zero for that path's term. The returned slice is sorted
// by fused score descending, then raw vector score descending, then ID
// ascending, for deterministic ordering.
func (e *HybridSearchEngine) fuse(vectorHits, keywordHits []driven.ScoredPoint) []candidate {
	byID := make(map[string]*candidate, len(vectorHits)+len(keywordHits))

	vectorNorm := normaliseVectorScores(vectorHits)
	for i, hit := range vectorHits {
		byID[hit.ID] = &candidate{
			id:          hit.ID,
			vectorScore: vectorNorm[i],
			rawVector:   hit.Score,
			payload:     hit.Payload,
		}
	}

	keywordNorm := normaliseKeywordScores(keywordHits)
	for i, hit := range keywordHits {
		if c, ok := byID[hit.ID]; ok {
			c.keywordScore = keywordNorm[i]
			continue
		}
		byID[hit.ID] = &candidate{
			id:           hit.ID,
			keywordScore: keywordNorm[i],
			payload:      hit.Payload,
		}
	}

	fused := make([]candidate, 0, len(byID))
	for _, c := range byID {
		c.fused = e.cfg.VectorWeight*c.vectorScore + e.cfg.KeywordWeight*c.keywordScore
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].fused != fused[j].fused {
			return fused[i].fused > fused[j].fused
		}
		if fused[i].rawVector != fused[j].rawVector {
			return fused[i].rawVector > fused[j].rawVector
		}
		return fused[i].id < fused[j].id
	})

	return fused
}

// collectResults walks sorted candidates, applies metadata and score
// filters, and builds the final result objects up to the limit.
func (e *HybridSearchEngine) collectResults(
	candidates []candidate, query domain.Query, opts domain.SearchOptions,
) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, opts.Limit)

	for i := range candidates {
		c := &candidates[i]
		if c.fused < opts.MinScore {
			// Candidates are sorted by fused score, nothing below passes.
			break
		}

		result := buildResult(c, query.Filters)
		if !matchesFilters(&result, query.Filters) {
			continue
		}

		results = append(results, result)
		if len(results) >= opts.Limit {
			break
		}
	}

	return results
}

// buildResult constructs a SearchResult from fused candidate state,
// including cross-document overlap enrichment when requested.
func buildResult(c *candidate, filters domain.SearchFilters) domain.SearchResult {
	result := domain.SearchResult{
		ID:         c.id,
		Score:      c.fused,
		SourceType: c.payload.SourceType,
		Title:      c.payload.Title,
		Snippet:    makeSnippet(c.payload.Content),
		URL:        c.payload.URL,
		ProjectID:  c.payload.ProjectID,
		Hierarchy:  c.payload.Hierarchy,
		Attachment: c.payload.Attachment,
	}

	if len(filters.ReferenceEntities) > 0 {
		result.EntityOverlap = intersectFold(c.payload.Entities, filters.ReferenceEntities)
	}
	if len(filters.ReferenceTopics) > 0 {
		result.TopicOverlap = intersectFold(c.payload.Topics, filters.ReferenceTopics)
	}

	return result
}

// matchesFilters evaluates hierarchy and attachment filters against a
// built result, reusing its derived views.
func matchesFilters(r *domain.SearchResult, f domain.SearchFilters) bool {
	if f.HierarchyOnly && r.Hierarchy == nil {
		return false
	}
	if f.RootOnly && !r.IsRoot() {
		return false
	}
	if f.HasChildren != nil && (r.Hierarchy == nil || r.HasChildren() != *f.HasChildren) {
		return false
	}
	if f.MaxDepth != nil && (r.Hierarchy == nil || r.Hierarchy.Depth > *f.MaxDepth) {
		return false
	}

	if f.AttachmentsOnly && !r.IsAttachment() {
		return false
	}
	if len(f.FileTypes) > 0 {
		ft := r.FileType()
		matched := false
		for _, want := range f.FileTypes {
			if strings.EqualFold(want, ft) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.Author != "" {
		if r.Attachment == nil ||
			!strings.Contains(strings.ToLower(r.Attachment.Author), strings.ToLower(f.Author)) {
			return false
		}
	}

	return true
}

// normaliseVectorScores maps store-native similarity scores into [0,1].
// When any score is negative the whole batch is treated as cosine in
// [-1,1] and shifted with (s+1)/2; otherwise scores are clamped. The
// rule is deterministic for a given store convention.
func normaliseVectorScores(hits []driven.ScoredPoint) []float64 {
	norm := make([]float64, len(hits))
	signed := false
	for _, hit := range hits {
		if hit.Score < 0 {
			signed = true
			break
		}
	}

	for i, hit := range hits {
		s := hit.Score
		if signed {
			s = (s + 1) / 2
		}
		norm[i] = clamp01(s)
	}
	return norm
}

// normaliseKeywordScores min-max normalises BM25 scores per query into
// [0,1] so they are comparable to vector scores. A uniform set (all
// scores equal) normalises to all ones.
func normaliseKeywordScores(hits []driven.ScoredPoint) []float64 {
	norm := make([]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		minScore = math.Min(minScore, hit.Score)
		maxScore = math.Max(maxScore, hit.Score)
	}

	spread := maxScore - minScore
	for i, hit := range hits {
		if spread == 0 {
			norm[i] = 1
			continue
		}
		norm[i] = clamp01((hit.Score - minScore) / spread)
	}
	return norm
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// makeSnippet truncates content to the snippet limit on a rune boundary.
func makeSnippet(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetLimit]) + "..."
}

// intersectFold returns the case-insensitive intersection of values and
// reference, preserving the casing of values and sorting the output for
// deterministic enrichment.
func intersectFold(values, reference []string) []string {
	refSet := make(map[string]bool, len(reference))
	for _, r := range reference {
		refSet[strings.ToLower(strings.TrimSpace(r))] = true
	}

	var overlap []string
	seen := make(map[string]bool)
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || !refSet[key] || seen[key] {
			continue
		}
		seen[key] = true
		overlap = append(overlap, v)
	}

	sort.Strings(overlap)
	return overlap
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
)

func fastEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.EmbedRetryDelay = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, store *mockVectorStore, embedder driven.EmbeddingService) *HybridSearchEngine {
	t.Helper()
	engine, err := NewHybridSearchEngine(store, embedder, nil, fastEngineConfig())
	require.NoError(t, err)
	return engine
}

func TestNewHybridSearchEngine(t *testing.T) {
	t.Run("nil store returns configuration error", func(t *testing.T) {
		_, err := NewHybridSearchEngine(nil, nil, nil, EngineConfig{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("negative weight returns configuration error", func(t *testing.T) {
		cfg := EngineConfig{VectorWeight: -0.5, KeywordWeight: 0.5}
		_, err := NewHybridSearchEngine(&mockVectorStore{}, nil, nil, cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("nil embedder is allowed", func(t *testing.T) {
		engine, err := NewHybridSearchEngine(&mockVectorStore{}, nil, nil, EngineConfig{})
		require.NoError(t, err)
		assert.NotNil(t, engine)
	})
}

func TestHybridSearchEngine_Search_InvalidLimit(t *testing.T) {
	engine := newTestEngine(t, &mockVectorStore{}, &mockEmbeddingService{vector: []float32{1, 0}})

	for _, limit := range []int{0, -1} {
		_, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: limit})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	}
}

func TestHybridSearchEngine_Search_FusesBothPaths(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: driven.Payload{Title: "A", SourceType: domain.SourceTypeGit}},
			{ID: "b", Score: 0.5, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
		},
		keywordHits: []driven.ScoredPoint{
			{ID: "b", Score: 4.0, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
			{ID: "c", Score: 1.0, Payload: driven.Payload{Title: "C", SourceType: domain.SourceTypeGit}},
		},
	}
	embedder := &mockEmbeddingService{vector: []float32{1, 0}}
	engine := newTestEngine(t, store, embedder)

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	assert.False(t, response.Degraded)
	require.Len(t, response.Results, 3)

	// Vector norms stay raw (no negatives): a=0.9, b=0.5. Keyword
	// min-max: b=1, c=0. Fused: b=0.7*0.5+0.3*1=0.65, a=0.63, c=0.
	assert.Equal(t, "b", response.Results[0].ID)
	assert.Equal(t, "a", response.Results[1].ID)
	assert.Equal(t, "c", response.Results[2].ID)
	assert.InDelta(t, 0.65, response.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.63, response.Results[1].Score, 1e-9)
	assert.InDelta(t, 0.0, response.Results[2].Score, 1e-9)

	// A point in both paths appears once.
	ids := map[string]int{}
	for _, r := range response.Results {
		ids[r.ID]++
	}
	assert.Equal(t, 1, ids["b"])
}

func TestHybridSearchEngine_Search_Deterministic(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: driven.Payload{Title: "A", SourceType: domain.SourceTypeGit}},
			{ID: "b", Score: 0.5, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
		},
		keywordHits: []driven.ScoredPoint{
			{ID: "b", Score: 4.0, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
			{ID: "c", Score: 1.0, Payload: driven.Payload{Title: "C", SourceType: domain.SourceTypeGit}},
		},
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})
	opts := domain.SearchOptions{Limit: 10}

	first, err := engine.Search(context.Background(), "query", opts)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), "query", opts)
	require.NoError(t, err)

	// Identical inputs produce identical ordering and scores.
	assert.Equal(t, first, second)
}

func TestHybridSearchEngine_Search_FusionMonotonicity(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: driven.Payload{Title: "A", SourceType: domain.SourceTypeGit}},
			{ID: "b", Score: 0.5, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
		},
		keywordHits: []driven.ScoredPoint{
			{ID: "b", Score: 4.0, Payload: driven.Payload{Title: "B", SourceType: domain.SourceTypeGit}},
			{ID: "c", Score: 1.0, Payload: driven.Payload{Title: "C", SourceType: domain.SourceTypeGit}},
		},
	}

	fusedFor := func(t *testing.T, vw, kw float64, id string) float64 {
		t.Helper()
		cfg := fastEngineConfig()
		cfg.VectorWeight = vw
		cfg.KeywordWeight = kw
		engine, err := NewHybridSearchEngine(store, &mockEmbeddingService{vector: []float32{1, 0}}, nil, cfg)
		require.NoError(t, err)

		response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})
		require.NoError(t, err)
		for _, r := range response.Results {
			if r.ID == id {
				return r.Score
			}
		}
		t.Fatalf("result %q missing", id)
		return 0
	}

	// "b" scores on both paths, so raising either weight must not
	// lower its fused score.
	baseline := fusedFor(t, DefaultVectorWeight, DefaultKeywordWeight, "b")
	assert.InDelta(t, 0.65, baseline, 1e-9)
	assert.GreaterOrEqual(t, fusedFor(t, 0.9, DefaultKeywordWeight, "b"), baseline)
	assert.GreaterOrEqual(t, fusedFor(t, DefaultVectorWeight, 0.5, "b"), baseline)
}

func TestHybridSearchEngine_Search_SignedVectorScores(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "a", Score: 1.0, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
			{ID: "b", Score: -1.0, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	require.Len(t, response.Results, 2)
	// Negative score present, whole batch shifted: (1+1)/2=1, (-1+1)/2=0.
	assert.InDelta(t, 0.7, response.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.0, response.Results[1].Score, 1e-9)
}

func TestHybridSearchEngine_Search_NilEmbedderDegradesToKeyword(t *testing.T) {
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "x", Score: 2.0, Payload: driven.Payload{Title: "X", SourceType: domain.SourceTypeJira}},
			{ID: "y", Score: 1.0, Payload: driven.Payload{Title: "Y", SourceType: domain.SourceTypeJira}},
		},
	}
	engine := newTestEngine(t, store, nil)

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	assert.True(t, response.Degraded)
	assert.Contains(t, response.DegradedReason, "embedding service not configured")
	require.Len(t, response.Results, 2)
	assert.Equal(t, "x", response.Results[0].ID)
	assert.InDelta(t, 0.3, response.Results[0].Score, 1e-9)
	assert.Equal(t, 0, store.vectorCalls, "vector search should not run without an embedder")
}

func TestHybridSearchEngine_Search_EmbedFailureRetriesThenDegrades(t *testing.T) {
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "k", Score: 1.0, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
	}
	embedder := &mockEmbeddingService{err: errors.New("provider down"), failFirst: 2}
	engine := newTestEngine(t, store, embedder)

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	assert.True(t, response.Degraded)
	assert.Contains(t, response.DegradedReason, "vector path unavailable")
	assert.Equal(t, 2, embedder.calls, "embedding should be retried exactly once")
	require.Len(t, response.Results, 1)
	assert.Equal(t, "k", response.Results[0].ID)
}

func TestHybridSearchEngine_Search_KeywordFailureDegradesToVector(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "v", Score: 0.8, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
		keywordErr: errors.New("index corrupted"),
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	assert.True(t, response.Degraded)
	assert.Contains(t, response.DegradedReason, "keyword path unavailable")
	require.Len(t, response.Results, 1)
	assert.Equal(t, "v", response.Results[0].ID)
}

func TestHybridSearchEngine_Search_BothPathsFail(t *testing.T) {
	store := &mockVectorStore{
		vectorErr:  errors.New("vector down"),
		keywordErr: errors.New("keyword down"),
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})

	_, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestHybridSearchEngine_Search_TieBreakOrdering(t *testing.T) {
	// Equal keyword scores normalise to 1 each, equal fused scores,
	// no vector scores: order falls back to ID ascending.
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "zz", Score: 3.0, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
			{ID: "aa", Score: 3.0, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
	}
	engine := newTestEngine(t, store, nil)

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 10})

	require.NoError(t, err)
	require.Len(t, response.Results, 2)
	assert.Equal(t, "aa", response.Results[0].ID)
	assert.Equal(t, "zz", response.Results[1].ID)
}

func TestHybridSearchEngine_Search_MinScoreFilters(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "high", Score: 0.9, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
			{ID: "low", Score: 0.1, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{
		Limit:    10,
		MinScore: 0.5,
	})

	require.NoError(t, err)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "high", response.Results[0].ID)
}

func TestHybridSearchEngine_Search_LimitTruncates(t *testing.T) {
	store := &mockVectorStore{
		vectorHits: []driven.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
			{ID: "b", Score: 0.8, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
			{ID: "c", Score: 0.7, Payload: driven.Payload{SourceType: domain.SourceTypeGit}},
		},
	}
	engine := newTestEngine(t, store, &mockEmbeddingService{vector: []float32{1, 0}})

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 2})

	require.NoError(t, err)
	require.Len(t, response.Results, 2)
	assert.Equal(t, "a", response.Results[0].ID)
	assert.Equal(t, "b", response.Results[1].ID)
}

func TestHybridSearchEngine_Search_CandidatePoolOversized(t *testing.T) {
	store := &mockVectorStore{}
	engine := newTestEngine(t, store, nil)

	_, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 5})

	require.NoError(t, err)
	assert.Equal(t, 5*DefaultCandidateMultiplier, store.lastLimit)
}

func TestHybridSearchEngine_Search_ProjectFilterForwarded(t *testing.T) {
	t.Run("no projects means noop filter", func(t *testing.T) {
		store := &mockVectorStore{}
		engine := newTestEngine(t, store, nil)

		_, err := engine.Search(context.Background(), "query", domain.SearchOptions{Limit: 5})

		require.NoError(t, err)
		assert.Equal(t, domain.FilterOpNoop, store.lastFilter.Op)
	})

	t.Run("single project uses eq filter", func(t *testing.T) {
		store := &mockVectorStore{}
		engine := newTestEngine(t, store, nil)

		_, err := engine.Search(context.Background(), "query", domain.SearchOptions{
			Limit:      5,
			ProjectIDs: []string{"proj-a"},
		})

		require.NoError(t, err)
		assert.Equal(t, domain.FilterOpEq, store.lastFilter.Op)
		assert.Equal(t, []string{"proj-a"}, store.lastFilter.Values)
	})

	t.Run("multiple projects use in filter", func(t *testing.T) {
		store := &mockVectorStore{}
		engine := newTestEngine(t, store, nil)

		_, err := engine.Search(context.Background(), "query", domain.SearchOptions{
			Limit:      5,
			ProjectIDs: []string{"proj-b", "proj-a"},
		})

		require.NoError(t, err)
		assert.Equal(t, domain.FilterOpIn, store.lastFilter.Op)
		assert.Equal(t, []string{"proj-a", "proj-b"}, store.lastFilter.Values)
	})
}

func TestHybridSearchEngine_HierarchySearch(t *testing.T) {
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "root", Score: 3.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeConfluence,
				Hierarchy:  &domain.Hierarchy{Depth: 0, HasChildren: true},
			}},
			{ID: "leaf", Score: 2.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeConfluence,
				Hierarchy:  &domain.Hierarchy{Depth: 3},
			}},
			{ID: "flat", Score: 1.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeGit,
			}},
		},
	}
	engine := newTestEngine(t, store, nil)

	t.Run("excludes results without hierarchy", func(t *testing.T) {
		response, err := engine.HierarchySearch(context.Background(), "query", domain.SearchOptions{Limit: 10})

		require.NoError(t, err)
		ids := resultIDs(response)
		assert.Contains(t, ids, "root")
		assert.Contains(t, ids, "leaf")
		assert.NotContains(t, ids, "flat")
	})

	t.Run("root only keeps depth zero", func(t *testing.T) {
		response, err := engine.HierarchySearch(context.Background(), "query", domain.SearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{RootOnly: true},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"root"}, resultIDs(response))
	})

	t.Run("max depth filters deep pages", func(t *testing.T) {
		maxDepth := 1
		response, err := engine.HierarchySearch(context.Background(), "query", domain.SearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{MaxDepth: &maxDepth},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"root"}, resultIDs(response))
	})

	t.Run("has children filter", func(t *testing.T) {
		hasChildren := false
		response, err := engine.HierarchySearch(context.Background(), "query", domain.SearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{HasChildren: &hasChildren},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"leaf"}, resultIDs(response))
	})
}

func TestHybridSearchEngine_AttachmentSearch(t *testing.T) {
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "sheet", Score: 3.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeConfluence,
				Attachment: &domain.Attachment{FileName: "budget.xlsx", Author: "Finance Team"},
			}},
			{ID: "pdf", Score: 2.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeConfluence,
				Attachment: &domain.Attachment{FileName: "report.PDF", Author: "ops"},
			}},
			{ID: "page", Score: 1.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeConfluence,
			}},
		},
	}
	engine := newTestEngine(t, store, nil)

	t.Run("excludes non attachments", func(t *testing.T) {
		response, err := engine.AttachmentSearch(context.Background(), "query", domain.SearchOptions{Limit: 10})

		require.NoError(t, err)
		ids := resultIDs(response)
		assert.Contains(t, ids, "sheet")
		assert.Contains(t, ids, "pdf")
		assert.NotContains(t, ids, "page")
	})

	t.Run("file type filter is case insensitive", func(t *testing.T) {
		response, err := engine.AttachmentSearch(context.Background(), "query", domain.SearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{FileTypes: []string{"pdf"}},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"pdf"}, resultIDs(response))
	})

	t.Run("author filter is a substring match", func(t *testing.T) {
		response, err := engine.AttachmentSearch(context.Background(), "query", domain.SearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{Author: "finance"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"sheet"}, resultIDs(response))
	})
}

func TestHybridSearchEngine_Search_OverlapEnrichment(t *testing.T) {
	store := &mockVectorStore{
		keywordHits: []driven.ScoredPoint{
			{ID: "p1", Score: 1.0, Payload: driven.Payload{
				SourceType: domain.SourceTypeGit,
				Entities:   []string{"Billing", "Invoices", "Ledger"},
				Topics:     []string{"payments"},
			}},
		},
	}
	engine := newTestEngine(t, store, nil)

	response, err := engine.Search(context.Background(), "query", domain.SearchOptions{
		Limit: 10,
		Filters: domain.SearchFilters{
			ReferenceEntities: []string{"billing", "ledger", "unrelated"},
			ReferenceTopics:   []string{"shipping"},
		},
	})

	require.NoError(t, err)
	require.Len(t, response.Results, 1)
	assert.Equal(t, []string{"Billing", "Ledger"}, response.Results[0].EntityOverlap)
	assert.Empty(t, response.Results[0].TopicOverlap)
}

func TestHybridSearchEngine_Search_CancelledContext(t *testing.T) {
	engine := newTestEngine(t, &mockVectorStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, "query", domain.SearchOptions{Limit: 10})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMakeSnippet(t *testing.T) {
	t.Run("short content unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", makeSnippet("  hello  "))
	})

	t.Run("long content truncated on rune boundary", func(t *testing.T) {
		long := ""
		for i := 0; i < snippetLimit+50; i++ {
			long += "é"
		}
		snippet := makeSnippet(long)
		assert.Equal(t, snippetLimit+3, len([]rune(snippet)))
		assert.Contains(t, snippet, "...")
	})
}

func resultIDs(response *domain.SearchResponse) []string {
	ids := make([]string, 0, len(response.Results))
	for _, r := range response.Results {
		ids = append(ids, r.ID)
	}
	return ids
}

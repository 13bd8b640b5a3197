package services

import (
	"context"
	"sync"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
)

// mockVectorStore serves canned hits and records the calls it receives.
type mockVectorStore struct {
	mu sync.Mutex

	vectorHits  []driven.ScoredPoint
	keywordHits []driven.ScoredPoint
	vectorErr   error
	keywordErr  error

	vectorCalls  int
	keywordCalls int
	lastVector   []float32
	lastTerms    []string
	lastFilter   domain.FilterExpr
	lastLimit    int
}

func (m *mockVectorStore) Upsert(_ context.Context, _ []driven.Point) error {
	return nil
}

func (m *mockVectorStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (m *mockVectorStore) VectorSearch(
	_ context.Context, vector []float32, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorCalls++
	m.lastVector = vector
	m.lastFilter = filter
	m.lastLimit = limit
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	return m.vectorHits, nil
}

func (m *mockVectorStore) KeywordSearch(
	_ context.Context, terms []string, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keywordCalls++
	m.lastTerms = terms
	m.lastFilter = filter
	m.lastLimit = limit
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}
	return m.keywordHits, nil
}

func (m *mockVectorStore) Count(_ context.Context) (int, error) {
	return 0, nil
}

func (m *mockVectorStore) Close() error {
	return nil
}

// mockEmbeddingService returns a fixed vector, optionally failing the
// first N calls to exercise the retry path.
type mockEmbeddingService struct {
	mu sync.Mutex

	vector    []float32
	err       error
	failFirst int

	calls int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failFirst > 0 && m.calls <= m.failFirst {
		return nil, m.err
	}
	if m.failFirst == 0 && m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		v, err := m.Embed(ctx, "")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return len(m.vector)
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embedding"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService serves a canned classification, optionally failing the
// first N calls.
type mockLLMService struct {
	mu sync.Mutex

	classification driven.QueryClassification
	err            error
	failFirst      int

	calls int
}

func (m *mockLLMService) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return "", m.err
}

func (m *mockLLMService) ClassifyQuery(_ context.Context, _ string) (driven.QueryClassification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failFirst > 0 && m.calls <= m.failFirst {
		return driven.QueryClassification{}, m.err
	}
	if m.failFirst == 0 && m.err != nil {
		return driven.QueryClassification{}, m.err
	}
	return m.classification, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

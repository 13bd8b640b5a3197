package cli

import (
	"context"
	"errors"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
)

// mockSearchService returns canned results for all three entry points.
type mockSearchService struct {
	response *domain.SearchResponse

	lastOp   string
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastOp = "search"
	m.lastOpts = opts
	return m.respond()
}

func (m *mockSearchService) HierarchySearch(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastOp = "hierarchy"
	m.lastOpts = opts
	return m.respond()
}

func (m *mockSearchService) AttachmentSearch(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastOp = "attachment"
	m.lastOpts = opts
	return m.respond()
}

func (m *mockSearchService) respond() (*domain.SearchResponse, error) {
	if m.response != nil {
		return m.response, nil
	}
	return &domain.SearchResponse{
		Results: []domain.SearchResult{
			{
				ID:         "point-1",
				Score:      0.95,
				SourceType: domain.SourceTypeGit,
				Title:      "Mock Result",
				Snippet:    "mock snippet",
			},
		},
	}, nil
}

// mockSearchServiceError fails every call.
type mockSearchServiceError struct{}

func (m *mockSearchServiceError) Search(
	_ context.Context,
	_ string,
	_ domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return nil, errors.New("mock error")
}

func (m *mockSearchServiceError) HierarchySearch(
	_ context.Context,
	_ string,
	_ domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return nil, errors.New("mock error")
}

func (m *mockSearchServiceError) AttachmentSearch(
	_ context.Context,
	_ string,
	_ domain.SearchOptions,
) (*domain.SearchResponse, error) {
	return nil, errors.New("mock error")
}

// mockVectorStore records upserted points.
type mockVectorStore struct {
	upserted []driven.Point
	err      error
}

func (m *mockVectorStore) Upsert(_ context.Context, points []driven.Point) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *mockVectorStore) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockVectorStore) VectorSearch(
	_ context.Context,
	_ []float32,
	_ domain.FilterExpr,
	_ int,
) ([]driven.ScoredPoint, error) {
	return nil, m.err
}

func (m *mockVectorStore) KeywordSearch(
	_ context.Context,
	_ []string,
	_ domain.FilterExpr,
	_ int,
) ([]driven.ScoredPoint, error) {
	return nil, m.err
}

func (m *mockVectorStore) Count(_ context.Context) (int, error) {
	return len(m.upserted), m.err
}

func (m *mockVectorStore) Close() error {
	return nil
}

// setupTestServices installs mock services and returns a cleanup func.
func setupTestServices() func() {
	oldSearch := searchService
	oldStore := vectorStore
	searchService = &mockSearchService{}
	vectorStore = &mockVectorStore{}
	return func() {
		searchService = oldSearch
		vectorStore = oldStore
	}
}

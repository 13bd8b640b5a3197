package mcp

import (
	"context"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response *domain.SearchResponse
	err      error

	lastQuery string
	lastOpts  domain.SearchOptions
	lastOp    string
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastQuery = query
	m.lastOpts = opts
	m.lastOp = "search"
	return m.respond()
}

func (m *mockSearchService) HierarchySearch(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastQuery = query
	m.lastOpts = opts
	m.lastOp = "hierarchy"
	return m.respond()
}

func (m *mockSearchService) AttachmentSearch(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastQuery = query
	m.lastOpts = opts
	m.lastOp = "attachment"
	return m.respond()
}

func (m *mockSearchService) respond() (*domain.SearchResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		return m.response, nil
	}
	return &domain.SearchResponse{}, nil
}

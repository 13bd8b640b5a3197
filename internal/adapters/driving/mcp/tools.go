package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// DefaultLimit is the result count when a tool call does not set one.
const DefaultLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the search query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
	ProjectIDs []string `json:"project_ids,omitempty" jsonschema:"restrict to these project ids; empty means all projects"`
	MinScore   float64  `json:"min_score,omitempty" jsonschema:"drop results with a fused score below this value"`
}

// HierarchySearchInput is the input schema for the hierarchy_search tool.
type HierarchySearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
	ProjectIDs  []string `json:"project_ids,omitempty" jsonschema:"restrict to these project ids; empty means all projects"`
	RootOnly    bool     `json:"root_only,omitempty" jsonschema:"only return hierarchy roots (depth 0)"`
	HasChildren *bool    `json:"has_children,omitempty" jsonschema:"only return results whose child status matches"`
	MaxDepth    *int     `json:"max_depth,omitempty" jsonschema:"only return results at or above this depth"`
}

// AttachmentSearchInput is the input schema for the attachment_search tool.
type AttachmentSearchInput struct {
	Query      string   `json:"query" jsonschema:"the search query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
	ProjectIDs []string `json:"project_ids,omitempty" jsonschema:"restrict to these project ids; empty means all projects"`
	FileTypes  []string `json:"file_types,omitempty" jsonschema:"only return attachments with these file types (e.g. pdf, xlsx)"`
	Author     string   `json:"author,omitempty" jsonschema:"only return attachments uploaded by a matching author"`
}

// SearchOutput is the output schema shared by all search tools.
type SearchOutput struct {
	Results        []ResultOutput `json:"results"`
	Count          int            `json:"count"`
	Degraded       bool           `json:"degraded"`
	DegradedReason string         `json:"degraded_reason,omitempty"`
}

// ResultOutput represents a single search result.
type ResultOutput struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	URL           string   `json:"url,omitempty"`
	Score         float64  `json:"score"`
	SourceType    string   `json:"source_type"`
	ProjectID     string   `json:"project_id,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
	Breadcrumb    []string `json:"breadcrumb,omitempty"`
	FileType      string   `json:"file_type,omitempty"`
	IsAttachment  bool     `json:"is_attachment"`
	EntityOverlap []string `json:"entity_overlap,omitempty"`
	TopicOverlap  []string `json:"topic_overlap,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid (semantic + keyword) search across all indexed documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hierarchy_search",
		Description: "Search restricted to documents with hierarchy metadata (e.g. Confluence pages)",
	}, s.handleHierarchySearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "attachment_search",
		Description: "Search restricted to file attachments, filterable by type and author",
	}, s.handleAttachmentSearch)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{
		Limit:      defaultLimit(input.Limit),
		ProjectIDs: input.ProjectIDs,
		MinScore:   input.MinScore,
	}

	response, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, buildOutput(response), nil
}

// handleHierarchySearch handles the hierarchy_search tool invocation.
func (s *Server) handleHierarchySearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HierarchySearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{
		Limit:      defaultLimit(input.Limit),
		ProjectIDs: input.ProjectIDs,
		Filters: domain.SearchFilters{
			RootOnly:    input.RootOnly,
			HasChildren: input.HasChildren,
			MaxDepth:    input.MaxDepth,
		},
	}

	response, err := s.ports.Search.HierarchySearch(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, buildOutput(response), nil
}

// handleAttachmentSearch handles the attachment_search tool invocation.
func (s *Server) handleAttachmentSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AttachmentSearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{
		Limit:      defaultLimit(input.Limit),
		ProjectIDs: input.ProjectIDs,
		Filters: domain.SearchFilters{
			FileTypes: input.FileTypes,
			Author:    input.Author,
		},
	}

	response, err := s.ports.Search.AttachmentSearch(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, buildOutput(response), nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// buildOutput converts a domain response into the tool output schema.
func buildOutput(response *domain.SearchResponse) SearchOutput {
	output := SearchOutput{
		Results:        make([]ResultOutput, len(response.Results)),
		Count:          len(response.Results),
		Degraded:       response.Degraded,
		DegradedReason: response.DegradedReason,
	}

	for i := range response.Results {
		r := &response.Results[i]
		out := ResultOutput{
			ID:            r.ID,
			Title:         r.DisplayTitle(),
			URL:           r.URL,
			Score:         r.Score,
			SourceType:    string(r.SourceType),
			ProjectID:     r.ProjectID,
			Snippet:       r.Snippet,
			IsAttachment:  r.IsAttachment(),
			EntityOverlap: r.EntityOverlap,
			TopicOverlap:  r.TopicOverlap,
		}
		if trail := r.BreadcrumbTrail(); len(trail) > 0 {
			out.Breadcrumb = trail
		}
		if r.IsAttachment() {
			out.FileType = r.FileType()
		}
		output.Results[i] = out
	}

	return output
}

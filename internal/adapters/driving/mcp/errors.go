// Package mcp provides an MCP (Model Context Protocol) server adapter
// for Quarry. It exposes hybrid search to AI assistants as the tools
// search, hierarchy_search, and attachment_search.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

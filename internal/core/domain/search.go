package domain

import (
	"path/filepath"
	"strings"
)

// snippetTitleLimit caps how many runes of the snippet are used as a
// fallback display title.
const snippetTitleLimit = 80

// Hierarchy describes a result's position in a structured source such as
// a Confluence space. Nil for sources without a native hierarchy.
type Hierarchy struct {
	// ParentTitle is the title of the direct parent document.
	ParentTitle string

	// Depth is the distance from the root (0 = root document).
	Depth int

	// Breadcrumb is the ordered path of ancestor titles, root first.
	Breadcrumb []string

	// HasChildren reports whether child documents exist.
	HasChildren bool
}

// Attachment describes a file attached to a parent document.
// Nil unless the result represents a file attachment.
type Attachment struct {
	// FileName is the original file name including extension.
	FileName string

	// FileType is the stored media/file type, if the source provided one.
	FileType string

	// FileSize is the attachment size in bytes.
	FileSize int64

	// Author is the uploading user, if known.
	Author string

	// ParentDocumentID identifies the document the file is attached to.
	ParentDocumentID string
}

// SearchResult represents one retrieved unit with its fused relevance
// score and enrichment metadata. Results are constructed by the search
// engine at the end of a call, treated as immutable, and never persisted.
type SearchResult struct {
	// ID is the stored point identifier.
	ID string

	// Score is the fused relevance score. Only ordering is guaranteed;
	// it is not probability-normalised.
	Score float64

	// SourceType identifies the originating system.
	SourceType SourceType

	// Title is the human-readable title, possibly empty.
	Title string

	// Snippet is a content excerpt for display.
	Snippet string

	// URL is the original location, if known.
	URL string

	// ProjectID scopes the result to an ingestion project, if any.
	ProjectID string

	// Hierarchy is populated only for hierarchical sources.
	Hierarchy *Hierarchy

	// Attachment is populated only for file-attachment results.
	Attachment *Attachment

	// EntityOverlap lists entities shared with the reference document,
	// when cross-document context was requested.
	EntityOverlap []string

	// TopicOverlap lists topics shared with the reference document,
	// when cross-document context was requested.
	TopicOverlap []string
}

// DisplayTitle returns the title, falling back to the start of the
// snippet and finally to "Untitled". It never fails.
func (r *SearchResult) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	snippet := strings.TrimSpace(r.Snippet)
	if snippet == "" {
		return "Untitled"
	}
	runes := []rune(snippet)
	if len(runes) > snippetTitleLimit {
		return string(runes[:snippetTitleLimit])
	}
	return snippet
}

// BreadcrumbTrail returns the hierarchy breadcrumb, or an empty slice
// for non-hierarchical results.
func (r *SearchResult) BreadcrumbTrail() []string {
	if r.Hierarchy == nil || len(r.Hierarchy.Breadcrumb) == 0 {
		return []string{}
	}
	return r.Hierarchy.Breadcrumb
}

// FileType derives a lowercase file type from the attachment file name
// extension. Returns "unknown" when there is no attachment or no
// recognisable extension.
func (r *SearchResult) FileType() string {
	if r.Attachment == nil {
		return "unknown"
	}
	ext := filepath.Ext(r.Attachment.FileName)
	if len(ext) < 2 {
		return "unknown"
	}
	return strings.ToLower(ext[1:])
}

// IsAttachment reports whether the result represents a file attachment.
func (r *SearchResult) IsAttachment() bool {
	return r.Attachment != nil
}

// IsRoot reports whether the result is a hierarchy root (depth 0).
// Non-hierarchical results are not roots.
func (r *SearchResult) IsRoot() bool {
	return r.Hierarchy != nil && r.Hierarchy.Depth == 0
}

// HasChildren reports whether the result has child documents.
func (r *SearchResult) HasChildren() bool {
	return r.Hierarchy != nil && r.Hierarchy.HasChildren
}

// SearchResponse carries the ordered result set plus degradation
// metadata, so callers can always detect a best-effort response.
type SearchResponse struct {
	// Results is the fused, filtered, ordered result set.
	Results []SearchResult

	// Degraded is true when one retrieval path failed and the results
	// come from the surviving path only.
	Degraded bool

	// DegradedReason describes the failed path when Degraded is true.
	DegradedReason string
}

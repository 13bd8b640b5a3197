package domain

// Intent classifies what a query is trying to find.
type Intent string

const (
	// IntentIssue looks for tickets, bugs, and their discussion.
	IntentIssue Intent = "issue"
	// IntentDocument looks for prose documentation (wiki pages, guides).
	IntentDocument Intent = "document"
	// IntentCode looks for source files, functions, or paths.
	IntentCode Intent = "code"
	// IntentGeneral is the fallback when classification is inconclusive.
	IntentGeneral Intent = "general"
)

// ParseIntent converts a string to an Intent, falling back to
// IntentGeneral for unknown values rather than failing.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentIssue, IntentDocument, IntentCode:
		return Intent(s)
	default:
		return IntentGeneral
	}
}

// SearchFilters narrows results by hierarchy and attachment metadata.
// The zero value matches everything.
type SearchFilters struct {
	// RootOnly keeps only hierarchy roots (depth 0).
	RootOnly bool

	// HasChildren, when set, keeps only results whose child status matches.
	HasChildren *bool

	// MaxDepth, when set, drops hierarchical results deeper than this.
	MaxDepth *int

	// HierarchyOnly keeps only results with hierarchy metadata.
	HierarchyOnly bool

	// AttachmentsOnly keeps only file-attachment results.
	AttachmentsOnly bool

	// FileTypes keeps only attachments with one of these file types
	// (case-insensitive, as derived by SearchResult.FileType).
	FileTypes []string

	// Author keeps only attachments uploaded by a matching author
	// (case-insensitive substring match).
	Author string

	// ReferenceEntities are entities of a reference document. When
	// non-empty, results are enriched with their entity overlap.
	ReferenceEntities []string

	// ReferenceTopics are topics of a reference document. When
	// non-empty, results are enriched with their topic overlap.
	ReferenceTopics []string
}

// Query is a processed search request. It is created per call and holds
// no state across requests.
type Query struct {
	// RawText is the user's query text, possibly empty.
	RawText string

	// ProjectIDs scopes the query; empty means all projects.
	ProjectIDs []string

	// Filters are the caller's metadata filters.
	Filters SearchFilters

	// Intent is the classified query intent.
	Intent Intent

	// ExpandedTerms are the tokenised query terms plus any
	// classifier-provided expansions, de-duplicated.
	ExpandedTerms []string

	// LikelySourceTypes are the source types the query probably
	// targets. Never empty: inconclusive classification yields all.
	LikelySourceTypes []SourceType
}

// SearchOptions configures a single search call.
type SearchOptions struct {
	// ProjectIDs scopes the search; empty means all projects.
	ProjectIDs []string

	// Limit is the maximum number of results. Must be positive.
	Limit int

	// MinScore drops results whose fused score is below this value.
	MinScore float64

	// Filters are metadata filters applied after fusion.
	Filters SearchFilters
}

// FilterMode describes how a query is project-scoped.
type FilterMode string

const (
	// FilterModeNone matches all documents regardless of project.
	FilterModeNone FilterMode = "none"
	// FilterModeSingle matches documents of exactly one project.
	FilterModeSingle FilterMode = "single"
	// FilterModeMultiple matches documents of any listed project.
	FilterModeMultiple FilterMode = "multiple"
)

// ProjectFilterSpec is a validated project-scoping request.
//
// Invariants: mode none has no IDs, mode single exactly one, mode
// multiple two or more unique IDs.
type ProjectFilterSpec struct {
	// Mode is the scoping mode.
	Mode FilterMode

	// ProjectIDs are the unique project identifiers, order preserved.
	ProjectIDs []string
}

// Validate checks that the mode and project id count are consistent.
func (s ProjectFilterSpec) Validate() error {
	switch s.Mode {
	case FilterModeNone:
		if len(s.ProjectIDs) != 0 {
			return invalidf("filter mode none must carry no project ids, got %d", len(s.ProjectIDs))
		}
	case FilterModeSingle:
		if len(s.ProjectIDs) != 1 {
			return invalidf("filter mode single requires exactly one project id, got %d", len(s.ProjectIDs))
		}
	case FilterModeMultiple:
		if len(s.ProjectIDs) < 2 {
			return invalidf("filter mode multiple requires two or more project ids, got %d", len(s.ProjectIDs))
		}
		seen := make(map[string]bool, len(s.ProjectIDs))
		for _, id := range s.ProjectIDs {
			if seen[id] {
				return invalidf("duplicate project id %q in multiple filter", id)
			}
			seen[id] = true
		}
	default:
		return invalidf("unknown filter mode %q", s.Mode)
	}
	return nil
}

// FilterOp is the operator of a backend-agnostic filter expression.
type FilterOp string

const (
	// FilterOpNoop matches every document.
	FilterOpNoop FilterOp = "noop"
	// FilterOpEq matches documents whose field equals the single value.
	FilterOpEq FilterOp = "eq"
	// FilterOpIn matches documents whose field equals any value.
	FilterOpIn FilterOp = "in"
)

// FilterExpr is a small tagged filter expression the store adapters
// translate into their native predicate syntax. This indirection keeps
// the engine testable without a live store.
type FilterExpr struct {
	// Field is the payload field the filter applies to.
	Field string

	// Op is the filter operator.
	Op FilterOp

	// Values are the operand values; empty for noop, one for eq.
	Values []string
}

// Matches evaluates the expression against a field value. Store
// adapters that hold payloads in-process use this directly.
func (f FilterExpr) Matches(value string) bool {
	switch f.Op {
	case FilterOpEq:
		return len(f.Values) == 1 && f.Values[0] == value
	case FilterOpIn:
		for _, v := range f.Values {
			if v == value {
				return true
			}
		}
		return false
	default:
		return true
	}
}

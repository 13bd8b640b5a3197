package domain

// SourceType identifies the kind of system a document was ingested from.
type SourceType string

const (
	// SourceTypeGit is a git repository (code, READMEs, commit docs).
	SourceTypeGit SourceType = "git"
	// SourceTypeConfluence is a Confluence wiki space.
	SourceTypeConfluence SourceType = "confluence"
	// SourceTypeJira is a JIRA project (issues, comments).
	SourceTypeJira SourceType = "jira"
	// SourceTypeLocalFile is a local filesystem directory.
	SourceTypeLocalFile SourceType = "localfile"
	// SourceTypePublicDocs is a crawled public documentation site.
	SourceTypePublicDocs SourceType = "publicdocs"
)

// AllSourceTypes returns every supported source type in a stable order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeGit,
		SourceTypeConfluence,
		SourceTypeJira,
		SourceTypeLocalFile,
		SourceTypePublicDocs,
	}
}

// Valid reports whether the source type is one of the supported variants.
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypeGit, SourceTypeConfluence, SourceTypeJira,
		SourceTypeLocalFile, SourceTypePublicDocs:
		return true
	default:
		return false
	}
}

// ParseSourceType converts a string to a SourceType.
// Returns ErrInvalidQuery wrapped with the offending value for unknown types.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.Valid() {
		return "", invalidf("unknown source type %q", s)
	}
	return st, nil
}

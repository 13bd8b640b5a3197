package services

import (
	"sort"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// ProjectIDField is the payload field project filters apply to.
const ProjectIDField = "project_id"

// NewProjectFilterSpec derives a validated ProjectFilterSpec from a
// caller-supplied project list. IDs are de-duplicated (first occurrence
// wins, blanks dropped) and the mode follows from the remaining count.
func NewProjectFilterSpec(projectIDs []string) domain.ProjectFilterSpec {
	unique := make([]string, 0, len(projectIDs))
	seen := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	switch len(unique) {
	case 0:
		return domain.ProjectFilterSpec{Mode: domain.FilterModeNone}
	case 1:
		return domain.ProjectFilterSpec{Mode: domain.FilterModeSingle, ProjectIDs: unique}
	default:
		return domain.ProjectFilterSpec{Mode: domain.FilterModeMultiple, ProjectIDs: unique}
	}
}

// BuildProjectFilter translates a ProjectFilterSpec into the
// backend-agnostic filter expression the store adapters understand.
// The values of an "in" filter are sorted so equal specs always emit
// equal expressions.
func BuildProjectFilter(spec domain.ProjectFilterSpec) (domain.FilterExpr, error) {
	if err := spec.Validate(); err != nil {
		return domain.FilterExpr{}, err
	}

	switch spec.Mode {
	case domain.FilterModeSingle:
		return domain.FilterExpr{
			Field:  ProjectIDField,
			Op:     domain.FilterOpEq,
			Values: []string{spec.ProjectIDs[0]},
		}, nil

	case domain.FilterModeMultiple:
		values := make([]string, len(spec.ProjectIDs))
		copy(values, spec.ProjectIDs)
		sort.Strings(values)
		return domain.FilterExpr{
			Field:  ProjectIDField,
			Op:     domain.FilterOpIn,
			Values: values,
		}, nil

	default:
		return domain.FilterExpr{Op: domain.FilterOpNoop}, nil
	}
}

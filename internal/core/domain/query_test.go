package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentIssue, ParseIntent("issue"))
	assert.Equal(t, IntentDocument, ParseIntent("document"))
	assert.Equal(t, IntentCode, ParseIntent("code"))
	assert.Equal(t, IntentGeneral, ParseIntent("general"))
	assert.Equal(t, IntentGeneral, ParseIntent("nonsense"))
	assert.Equal(t, IntentGeneral, ParseIntent(""))
}

func TestProjectFilterSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ProjectFilterSpec
		wantErr bool
	}{
		{"none without ids", ProjectFilterSpec{Mode: FilterModeNone}, false},
		{"none with ids", ProjectFilterSpec{Mode: FilterModeNone, ProjectIDs: []string{"p"}}, true},
		{"single with one id", ProjectFilterSpec{Mode: FilterModeSingle, ProjectIDs: []string{"p"}}, false},
		{"single without ids", ProjectFilterSpec{Mode: FilterModeSingle}, true},
		{"single with two ids", ProjectFilterSpec{Mode: FilterModeSingle, ProjectIDs: []string{"a", "b"}}, true},
		{"multiple with two ids", ProjectFilterSpec{Mode: FilterModeMultiple, ProjectIDs: []string{"a", "b"}}, false},
		{"multiple with one id", ProjectFilterSpec{Mode: FilterModeMultiple, ProjectIDs: []string{"a"}}, true},
		{"multiple with duplicates", ProjectFilterSpec{Mode: FilterModeMultiple, ProjectIDs: []string{"a", "a"}}, true},
		{"unknown mode", ProjectFilterSpec{Mode: "sideways"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterExpr_Matches(t *testing.T) {
	t.Run("noop matches everything", func(t *testing.T) {
		f := FilterExpr{Op: FilterOpNoop}
		assert.True(t, f.Matches("anything"))
		assert.True(t, f.Matches(""))
	})

	t.Run("eq matches single value", func(t *testing.T) {
		f := FilterExpr{Field: "project_id", Op: FilterOpEq, Values: []string{"proj-a"}}
		assert.True(t, f.Matches("proj-a"))
		assert.False(t, f.Matches("proj-b"))
	})

	t.Run("in matches any value", func(t *testing.T) {
		f := FilterExpr{Field: "project_id", Op: FilterOpIn, Values: []string{"a", "b"}}
		assert.True(t, f.Matches("a"))
		assert.True(t, f.Matches("b"))
		assert.False(t, f.Matches("c"))
	})
}

func TestParseSourceType(t *testing.T) {
	for _, st := range AllSourceTypes() {
		parsed, err := ParseSourceType(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}

	_, err := ParseSourceType("carrier-pigeon")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	assert.False(t, SourceType("").Valid())
	assert.True(t, SourceTypeGit.Valid())
}

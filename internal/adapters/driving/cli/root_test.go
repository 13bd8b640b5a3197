package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydocs/quarry/internal/logger"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "quarry", rootCmd.Use)
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	verbose := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose, "verbose flag should exist")
	assert.Equal(t, "v", verbose.Shorthand)

	config := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config, "config flag should exist")
}

func TestExecute_LogsFailure(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	logBuf := new(bytes.Buffer)
	logger.SetOutput(logBuf)
	defer logger.SetOutput(os.Stderr)

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs([]string{"search", "test"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, logBuf.String(), "[ERROR]")
	assert.Contains(t, logBuf.String(), "search service not configured")
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	want := map[string]bool{
		"search [query]": false,
		"load [file]":    false,
		"mcp":            false,
		"version":        false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Use]; ok {
			want[cmd.Use] = true
		}
	}
	for use, found := range want {
		assert.True(t, found, "command %q should be registered", use)
	}
}

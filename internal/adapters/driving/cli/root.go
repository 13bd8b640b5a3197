// Package cli implements the cobra command tree for the quarry binary.
// Services are injected by the composition root (cmd/quarry) through the
// Set* functions before Execute is called.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/core/ports/driven"
	"github.com/quarrydocs/quarry/internal/core/ports/driving"
	"github.com/quarrydocs/quarry/internal/logger"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	verboseFlag bool
	configPath  string

	searchService driving.SearchService
	vectorStore   driven.VectorStore

	// initServices is installed by the composition root. It runs once,
	// after flag parsing, so it can honour --config.
	initServices func() error
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Hybrid search across your indexed documentation",
	Long: `Quarry searches indexed documents with a hybrid of semantic (vector)
and keyword (BM25) retrieval, fusing both rankings into one result list.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		if initServices != nil && searchService == nil {
			return initServices()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.quarry/config.toml)")
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetSearchService injects the search service used by the search commands.
func SetSearchService(s driving.SearchService) {
	searchService = s
}

// SetVectorStore injects the store used by the load command.
func SetVectorStore(s driven.VectorStore) {
	vectorStore = s
}

// SetInitializer installs the function that wires services from
// configuration. It runs before the first command that needs them.
func SetInitializer(f func() error) {
	initServices = f
}

// ConfigPath returns the --config flag value, empty when unset.
func ConfigPath() string {
	return configPath
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		return err
	}
	return nil
}

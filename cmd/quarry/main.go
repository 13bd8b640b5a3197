// Command quarry is the hybrid search CLI and MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/quarrydocs/quarry/internal/adapters/driven/config/file"
	openaiembed "github.com/quarrydocs/quarry/internal/adapters/driven/embedding/openai"
	openaillm "github.com/quarrydocs/quarry/internal/adapters/driven/llm/openai"
	"github.com/quarrydocs/quarry/internal/adapters/driven/store/memory"
	"github.com/quarrydocs/quarry/internal/adapters/driven/store/sqlite"
	"github.com/quarrydocs/quarry/internal/adapters/driving/cli"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
	"github.com/quarrydocs/quarry/internal/core/ports/driving"
	"github.com/quarrydocs/quarry/internal/core/services"
	"github.com/quarrydocs/quarry/internal/logger"
)

// version is overridden at build time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetInitializer(buildServices)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildServices wires the application from configuration. It runs after
// flag parsing so the --config override is visible.
func buildServices() error {
	path := cli.ConfigPath()
	if path == "" {
		defaultPath, err := file.DefaultPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	cfg, err := file.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	embedder, llm, err := buildProviders(cfg)
	if err != nil {
		return err
	}

	processor := services.NewQueryProcessor(llm)

	engine, err := services.NewHybridSearchEngine(store, embedder, processor, services.EngineConfig{
		VectorWeight:   cfg.Search.VectorWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		EmbedTimeout:   cfg.Search.EmbedTimeout(),
		VectorTimeout:  cfg.Search.SearchTimeout(),
		KeywordTimeout: cfg.Search.SearchTimeout(),
	})
	if err != nil {
		return err
	}

	var search driving.SearchService = engine
	if cfg.Search.CacheSize > 0 {
		cached, err := services.NewCachedSearchService(engine, cfg.Search.CacheSize, cfg.Search.CacheTTL())
		if err != nil {
			return err
		}
		search = cached
	}

	cli.SetSearchService(search)
	cli.SetVectorStore(store)
	cli.SetEmbeddingService(embedder)
	return nil
}

func buildStore(cfg file.Config) (driven.VectorStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		store, err := sqlite.NewStore(cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildProviders returns nil services when no API key is configured.
// The engine degrades to keyword-only search and the query processor
// falls back to heuristic classification.
func buildProviders(cfg file.Config) (driven.EmbeddingService, driven.LLMService, error) {
	if cfg.OpenAI.APIKey == "" {
		logger.Debug("no OpenAI API key configured, running keyword-only")
		return nil, nil, nil
	}

	embedder, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.EmbeddingModel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding service: %w", err)
	}

	llm, err := openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.LLMModel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating llm service: %w", err)
	}

	return embedder, llm, nil
}

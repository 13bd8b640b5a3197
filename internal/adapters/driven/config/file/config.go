// Package file loads Quarry configuration from a TOML file.
// The core never reads files or environment variables itself; the CLI
// loads a Config here and passes the pieces to the constructors.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

// SearchConfig tunes the hybrid search engine.
type SearchConfig struct {
	// VectorWeight is the fusion weight of the vector path.
	VectorWeight float64 `toml:"vector_weight"`

	// KeywordWeight is the fusion weight of the keyword path.
	KeywordWeight float64 `toml:"keyword_weight"`

	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit int `toml:"default_limit"`

	// MinScore drops results below this fused score.
	MinScore float64 `toml:"min_score"`

	// EmbedTimeoutMS bounds the query embedding call, in milliseconds.
	EmbedTimeoutMS int `toml:"embed_timeout_ms"`

	// SearchTimeoutMS bounds each store search call, in milliseconds.
	SearchTimeoutMS int `toml:"search_timeout_ms"`

	// CacheSize is the query cache capacity (0 disables caching).
	CacheSize int `toml:"cache_size"`

	// CacheTTLSeconds is the query cache entry lifetime.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// StoreConfig selects and locates the vector store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `toml:"backend"`

	// DataDir holds the sqlite database (default: ~/.quarry/data).
	DataDir string `toml:"data_dir"`
}

// OpenAIConfig holds provider credentials and model choices.
type OpenAIConfig struct {
	// APIKey enables the embedding and LLM services when set.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the API endpoint (Azure, local servers).
	BaseURL string `toml:"base_url"`

	// EmbeddingModel is the embedding model name.
	EmbeddingModel string `toml:"embedding_model"`

	// LLMModel is the chat model used for query classification.
	LLMModel string `toml:"llm_model"`
}

// Config is the full application configuration.
type Config struct {
	Search SearchConfig `toml:"search"`
	Store  StoreConfig  `toml:"store"`
	OpenAI OpenAIConfig `toml:"openai"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Search: SearchConfig{
			VectorWeight:    0.7,
			KeywordWeight:   0.3,
			DefaultLimit:    10,
			EmbedTimeoutMS:  15000,
			SearchTimeoutMS: 10000,
			CacheSize:       1000,
			CacheTTLSeconds: 300,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
	}
}

// DefaultPath returns ~/.quarry/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".quarry", "config.toml"), nil
}

// Load reads a Config from path, applying defaults for absent fields.
// A missing file is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfiguration, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path with restricted permissions,
// creating the parent directory if needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// API keys live in this file.
	return os.WriteFile(path, data, 0600)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative", domain.ErrConfiguration)
	}
	if c.Search.DefaultLimit < 0 {
		return fmt.Errorf("%w: default_limit must not be negative", domain.ErrConfiguration)
	}
	switch c.Store.Backend {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrConfiguration, c.Store.Backend)
	}
	return nil
}

// EmbedTimeout returns the embed timeout as a duration.
func (c SearchConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutMS) * time.Millisecond
}

// SearchTimeout returns the per-path search timeout as a duration.
func (c SearchConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMS) * time.Millisecond
}

// CacheTTL returns the cache TTL as a duration.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/core/ports/driven"
	"github.com/quarrydocs/quarry/internal/logger"
)

// embeddingService is optional. When set, load embeds points that
// arrive without a vector.
var embeddingService driven.EmbeddingService

// SetEmbeddingService injects the embedder used by the load command.
func SetEmbeddingService(s driven.EmbeddingService) {
	embeddingService = s
}

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load points from a JSON file into the store",
	Long: `Loads a JSON array of points into the vector store.

Each point carries a payload (title, content, source_type, optional
hierarchy and attachment metadata) and optionally a precomputed vector.
Points without an id are assigned one. Points without a vector are
embedded when an embedding provider is configured, and are otherwise
stored for keyword search only.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errors.New("vector store not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading points file: %w", err)
	}

	var points []driven.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("parsing points file: %w", err)
	}
	if len(points) == 0 {
		cmd.Println("No points to load.")
		return nil
	}

	for i := range points {
		if points[i].ID == "" {
			points[i].ID = uuid.NewString()
		}
		if !points[i].Payload.SourceType.Valid() {
			return fmt.Errorf("point %s: invalid source type %q", points[i].ID, points[i].Payload.SourceType)
		}
	}

	if err := embedMissing(cmd, points); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := vectorStore.Upsert(ctx, points); err != nil {
		return fmt.Errorf("storing points: %w", err)
	}

	total, err := vectorStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting points: %w", err)
	}

	cmd.Printf("Loaded %d points (%d total in store).\n", len(points), total)
	return nil
}

// embedMissing fills vectors for points that arrived without one.
func embedMissing(cmd *cobra.Command, points []driven.Point) error {
	var (
		indexes []int
		texts   []string
	)
	for i := range points {
		if len(points[i].Vector) == 0 {
			indexes = append(indexes, i)
			texts = append(texts, points[i].Payload.Content)
		}
	}
	if len(indexes) == 0 {
		return nil
	}

	if embeddingService == nil {
		logger.Warn("no embedding provider configured, %d points stored for keyword search only", len(indexes))
		return nil
	}

	logger.Info("embedding %d points", len(indexes))
	vectors, err := embeddingService.EmbedBatch(cmd.Context(), texts)
	if err != nil {
		return fmt.Errorf("embedding points: %w", err)
	}
	if len(vectors) != len(indexes) {
		return fmt.Errorf("embedding points: got %d vectors for %d texts", len(vectors), len(indexes))
	}

	for n, i := range indexes {
		points[i].Vector = vectors[n]
	}
	return nil
}

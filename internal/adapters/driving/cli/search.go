package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/core/domain"
)

var (
	searchLimit           int
	searchJSON            bool
	searchProjects        []string
	searchMinScore        float64
	searchRootOnly        bool
	searchAttachmentsOnly bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across all indexed documents.
Combines keyword (BM25) and semantic (vector) search for best results.

Use --root-only to search hierarchical sources at their root pages, or
--attachments-only to search file attachments.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVar(&searchProjects, "project", nil, "restrict to project ids (repeatable)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "drop results below this fused score")
	searchCmd.Flags().BoolVar(&searchRootOnly, "root-only", false, "only return hierarchy roots")
	searchCmd.Flags().BoolVar(&searchAttachmentsOnly, "attachments-only", false, "only return file attachments")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}
	if searchRootOnly && searchAttachmentsOnly {
		return errors.New("--root-only and --attachments-only are mutually exclusive")
	}

	ctx := cmd.Context()
	opts := domain.SearchOptions{
		Limit:      searchLimit,
		ProjectIDs: searchProjects,
		MinScore:   searchMinScore,
	}

	var (
		response *domain.SearchResponse
		err      error
	)
	switch {
	case searchAttachmentsOnly:
		response, err = searchService.AttachmentSearch(ctx, query, opts)
	case searchRootOnly:
		opts.Filters.RootOnly = true
		response, err = searchService.HierarchySearch(ctx, query, opts)
	default:
		response, err = searchService.Search(ctx, query, opts)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, response)
	}

	return outputSearchTable(cmd, response)
}

func outputSearchJSON(cmd *cobra.Command, response *domain.SearchResponse) error {
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, response *domain.SearchResponse) error {
	if response.Degraded {
		cmd.Printf("Warning: partial results (%s)\n", response.DegradedReason)
	}

	if len(response.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range response.Results {
		r := &response.Results[i]

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, r.DisplayTitle(), r.Score)
		cmd.Printf("      Source: %s\n", r.SourceType)
		if trail := r.BreadcrumbTrail(); len(trail) > 0 {
			cmd.Printf("      Path: %s\n", strings.Join(trail, " > "))
		}
		if r.IsAttachment() {
			cmd.Printf("      File: %s (%s)\n", r.Attachment.FileName, r.FileType())
		}
		if r.URL != "" {
			cmd.Printf("      %s\n", r.URL)
		}
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}

	return nil
}

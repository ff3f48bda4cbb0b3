package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	pathPrefix string
	extensions []string
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search indexed documents with ranked full-text matching.

The query is tokenized the same way indexed text was, so conjugated
forms match: searching 走る finds documents containing 走った.
All query terms must appear in a document for it to match.`,
		Example: `  kensaku search 吾輩は猫である
  kensaku search 走る --limit 10
  kensaku search 銀河 --path ~/notes --ext md,txt
  kensaku search 検索 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.pathPrefix, "path", "p", "", "Restrict results to files under this directory")
	cmd.Flags().StringSliceVarP(&opts.extensions, "ext", "e", nil, "Restrict results by extension (repeatable, e.g. --ext md,txt)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// searchJSONResult is one hit in --format json output.
type searchJSONResult struct {
	Path    string  `json:"path"`
	Line    int     `json:"line"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format: %s (use: text, json)", opts.format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.executor.Search(ctx, query, search.Options{
		Limit:      opts.limit,
		PathPrefix: opts.pathPrefix,
		Extensions: opts.extensions,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		out := make([]searchJSONResult, 0, len(results))
		for _, r := range results {
			out = append(out, searchJSONResult{
				Path:    r.Path,
				Line:    r.Line,
				Snippet: r.Snippet,
				Score:   r.Score,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(w, "%d. %s:%d (score: %.2f)\n", i+1, r.Path, r.Line, r.Score)
		fmt.Fprintf(w, "   %s\n", r.Snippet)
	}
	fmt.Fprintf(w, "\n%d result(s) for %q\n", len(results), query)

	return nil
}

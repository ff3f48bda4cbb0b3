package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/store"
)

// StatsOutput is the JSON output format for index stats.
type StatsOutput struct {
	Backend       string         `json:"backend"`
	DataDir       string         `json:"data_dir"`
	DocumentCount int            `json:"document_count"`
	TotalTokens   int64          `json:"total_tokens"`
	IndexBytes    int64          `json:"index_bytes"`
	RootCounts    map[string]int `json:"root_counts"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display index statistics: document and token counts per indexed root.

Query telemetry (top terms, zero-result queries, latency) accumulates
inside a running MCP server and is exposed there via the index_stats
tool.`,
		Example: `  kensaku stats
  kensaku stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			backend := cfg.Search.Backend
			if detected := store.DetectBackend(cfg.Index.DataDir); detected != "" {
				backend = string(detected)
			}

			output := StatsOutput{
				Backend:       backend,
				DataDir:       cfg.Index.DataDir,
				DocumentCount: stats.DocumentCount,
				TotalTokens:   stats.TotalTokens,
				IndexBytes:    store.ArtifactSize(cfg.Index.DataDir, backend),
				RootCounts:    stats.RootCounts,
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(output)
			}

			fmt.Fprintln(w, "Index Statistics")
			fmt.Fprintln(w, "================")
			fmt.Fprintf(w, "Backend:   %s\n", output.Backend)
			fmt.Fprintf(w, "Data dir:  %s\n", output.DataDir)
			fmt.Fprintf(w, "Documents: %d\n", output.DocumentCount)
			fmt.Fprintf(w, "Tokens:    %d\n", output.TotalTokens)
			fmt.Fprintf(w, "Size:      %d bytes\n", output.IndexBytes)

			if len(output.RootCounts) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "Indexed roots:")
				roots := make([]string, 0, len(output.RootCounts))
				for root := range output.RootCounts {
					roots = append(roots, root)
				}
				sort.Strings(roots)
				for _, root := range roots {
					fmt.Fprintf(w, "  %s (%d file(s))\n", root, output.RootCounts[root])
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		limit      int
		offset     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed files",
		Long:  `List indexed file paths in lexical order, with paging.`,
		Example: `  kensaku list
  kensaku list --limit 20 --offset 40
  kensaku list --json`,
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

			paths, total, err := app.store.ListPaths(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				out := struct {
					Paths []string `json:"paths"`
					Total int      `json:"total"`
				}{Paths: paths, Total: total}
				if out.Paths == nil {
					out.Paths = []string{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if total == 0 {
				fmt.Fprintln(w, "No files indexed. Run 'kensaku index' first.")
				return nil
			}

			for _, p := range paths {
				fmt.Fprintln(w, p)
			}
			fmt.Fprintf(w, "\nShowing %d of %d indexed file(s)\n", len(paths), total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of paths to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of paths to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

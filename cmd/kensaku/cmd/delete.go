package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove an indexed directory",
		Long: `Remove every index entry under a directory root.

Files on disk are untouched; only the index entries go away.`,
		Example: `  kensaku delete ~/notes`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
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

			removed, err := app.indexer.DeleteRoot(cmd.Context(), absPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintf(w, "No entries were indexed under %s.\n", absPath)
				return nil
			}
			fmt.Fprintf(w, "Removed %d entr%s for %s.\n", removed, pluralEntry(removed), absPath)
			return nil
		},
	}

	return cmd
}

func pluralEntry(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

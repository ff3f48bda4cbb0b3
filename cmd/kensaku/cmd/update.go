package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/indexer"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <file>",
		Short: "Re-index a single file",
		Long: `Re-index one file without re-scanning its whole directory.

A file that no longer exists on disk has its index entry removed.
The file must live under a previously indexed root.`,
		Example: `  kensaku update ~/notes/memo.md`,
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

			action, err := app.indexer.UpdateFile(cmd.Context(), absPath, "")
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch action {
			case indexer.ActionUpdated:
				fmt.Fprintf(w, "Reindexed %s.\n", absPath)
			case indexer.ActionDeleted:
				fmt.Fprintf(w, "Removed index entry for %s.\n", absPath)
			case indexer.ActionSkipped:
				fmt.Fprintf(w, "Skipped %s: not eligible for indexing.\n", absPath)
			}
			return nil
		},
	}

	return cmd
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching",
		Long: `Index a directory to enable full-text search over its documents.

Files are tokenized with Japanese morphological analysis and stored
under both surface and dictionary base forms. Re-indexing a directory
atomically replaces its previous entries, so deleted files disappear
from results.`,
		Example: `  # Index the current directory
  kensaku index

  # Index a specific directory without the TUI
  kensaku index ~/notes --no-tui`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path, noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, noTUI bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithRootDir(absPath)))

	app, err := newApp(cfg, renderer)
	if err != nil {
		return err
	}
	defer app.Close()

	// The renderer reports progress and the final summary; failures are
	// listed there as warnings.
	_, err = app.indexer.IndexDirectory(ctx, absPath)
	return err
}

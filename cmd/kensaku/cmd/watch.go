package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and keep its index fresh",
		Long: `Watch a directory for changes and update the index incrementally.

Rapid changes to the same file are coalesced. Editing a .gitignore
triggers a full re-index of the root so newly ignored files drop out.
Runs in the foreground until interrupted.`,
		Example: `  # Index then watch the current directory
  kensaku watch

  # Watch without the initial index pass
  kensaku watch ~/notes --no-index`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(ctx, cmd, path, noIndex)
		},
	}

	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Skip the initial index pass")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, noIndex bool) error {
	absPath, err := filepath.Abs(path)
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

	w := cmd.OutOrStdout()

	if !noIndex {
		report, err := app.indexer.IndexDirectory(ctx, absPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Indexed %d file(s) under %s\n", report.Indexed, absPath)
	}

	fw, err := watcher.NewFSWatcher(watcher.Options{
		DebounceWindow: cfg.Watch.Debounce(),
	})
	if err != nil {
		return err
	}

	svc, err := watcher.NewService(watcher.ServiceDeps{
		Indexer: app.indexer,
		Scanner: app.scanner,
		Watcher: fw,
		Root:    absPath,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Watching %s (Ctrl+C to stop)\n", absPath)

	err = svc.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stats := svc.Stats()
	fmt.Fprintf(w, "\nUpdated %d, deleted %d, skipped %d, failed %d, reindexed %d time(s)\n",
		stats.Updated, stats.Deleted, stats.Skipped, stats.Failed, stats.Reindexes)

	return err
}

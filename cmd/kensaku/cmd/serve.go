package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/config"
	"github.com/kensakudev/kensaku/internal/logging"
	"github.com/kensakudev/kensaku/internal/mcp"
	"github.com/kensakudev/kensaku/internal/watcher"
	"github.com/kensakudev/kensaku/pkg/version"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing search tools over stdio.

The server speaks JSON-RPC on stdout, so all logging goes to
~/.kensaku/logs/server.log. Use 'kensaku-logs' to follow it.`,
		Example: `  # Serve over stdio (for MCP client configuration)
  kensaku serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport == "" {
				transport = cfg.Server.Transport
			}
			return runServe(ctx, cfg, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio (default from config)")

	return cmd
}

// runServe builds the full server and blocks until the client
// disconnects or the context is cancelled.
func runServe(ctx context.Context, cfg *config.Config, transport string) error {
	// Stdout belongs to JSON-RPC from here on.
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	app, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	watches := watcher.NewManager(app.indexer, app.scanner, watcher.Options{
		DebounceWindow: cfg.Watch.Debounce(),
	})
	defer watches.StopAll()

	srv, err := mcp.NewServer(mcp.Dependencies{
		Config:   cfg,
		Indexer:  app.indexer,
		Executor: app.executor,
		Store:    app.store,
		Metrics:  app.metrics,
		Watches:  watches,
	})
	if err != nil {
		return err
	}

	slog.Info("starting kensaku MCP server",
		slog.String("version", version.Version),
		slog.String("transport", transport),
		slog.String("data_dir", cfg.Index.DataDir))

	return srv.Serve(ctx, transport)
}

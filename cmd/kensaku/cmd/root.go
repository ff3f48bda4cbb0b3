// Package cmd provides the CLI commands for kensaku.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kensakudev/kensaku/internal/config"
	kerrors "github.com/kensakudev/kensaku/internal/errors"
	"github.com/kensakudev/kensaku/internal/logging"
	"github.com/kensakudev/kensaku/internal/preflight"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/pkg/version"
)

// Debug logging flag, shared across all commands.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the kensaku CLI.
func NewRootCmd() *cobra.Command {
	var skipCheck bool
	var reindex bool

	cmd := &cobra.Command{
		Use:   "kensaku",
		Short: "Japanese full-text search over local documents",
		Long: `Kensaku indexes local documents with Japanese morphological analysis
and serves ranked full-text search, both as a CLI and as an MCP server
for AI assistants.

Queries and documents are normalized to dictionary base forms, so a
search for 走る also finds 走った and 走ります.

Just run 'kensaku' in your project directory to start the MCP server.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), skipCheck, reindex)
		},
	}

	cmd.SetVersionTemplate("kensaku version {{.Version}}\n")

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Force reindex even if index exists")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.kensaku/logs/")
	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startDebugLogging sets up file logging when --debug is passed.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command. Errors are printed in the CLI error
// format before the nonzero exit.
func Execute() error {
	cmd := NewRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, kerrors.FormatForCLI(err))
	}
	return err
}

// runSmartDefault implements the zero-argument flow: silent preflight,
// index the project root if no index exists, then serve MCP over stdio.
//
// The MCP protocol uses stdout exclusively for JSON-RPC messages, so
// nothing here may write to stdout. All status goes to the log file;
// 'kensaku doctor' is the interactive diagnostic surface.
func runSmartDefault(ctx context.Context, skipCheck, reindex bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if !skipCheck {
		checker := preflight.New(cfg, preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx)
		if checker.HasCriticalFailures(results) {
			slog.Error("system check failed, run 'kensaku doctor' for diagnostics")
			return fmt.Errorf("system check failed, run 'kensaku doctor' for diagnostics")
		}
	}

	needsIndex := reindex || store.DetectBackend(cfg.Index.DataDir) == ""
	if needsIndex {
		slog.Info("index not found, indexing project root", slog.String("root", root))
		if err := indexSilently(ctx, cfg, root); err != nil {
			slog.Error("indexing failed", slog.String("error", err.Error()))
			return err
		}
	}

	return runServe(ctx, cfg, "stdio")
}

// indexSilently indexes root with no terminal output.
func indexSilently(ctx context.Context, cfg *config.Config, root string) error {
	app, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	_, err = app.indexer.IndexDirectory(ctx, root)
	return err
}

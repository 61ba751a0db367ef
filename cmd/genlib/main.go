// Package main provides the entry point for the genlib CLI application.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/infrastructure/config"
)

var (
	version       = "0.1.0-dev"
	globalArchive string
	verbose       bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "genlib",
		Short:         "A genealogy archive: import GEDCOM files, explore relationships and family trees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(os.Stderr, configuredLogLevel(), verbose))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalArchive, "archive", "a", "", "Archive to operate on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newInitCmd(),
		newArchivesCmd(),
		newImportCmd(),
		newPersonsCmd(),
		newRelateCmd(),
		newRelationsCmd(),
		newTreeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newHistoryCmd(),
		newServeCmd(),
	)

	return rootCmd
}

// configuredLogLevel reads logging.level from the config in the working
// directory, if there is one.
func configuredLogLevel() string {
	cwd, err := os.Getwd()
	if err != nil || !config.Exists(cwd) {
		return ""
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return ""
	}
	return cfg.Logging.Level
}

// newLogger builds the text logger used by every command. verbose forces debug.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-habits/internal/config"
	"github.com/naka-gawa/pr-habits/internal/gateway"
	"github.com/naka-gawa/pr-habits/internal/storage"
	"github.com/naka-gawa/pr-habits/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "habits",
	Short: "Track a daily pull request habit from GitHub activity.",
	Long: `habits mirrors a GitHub user's pull request activity into a local
store, one entry per calendar day, and derives streak statistics from it.
Run "habits serve" for the HTTP API or use the other commands directly.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
}

// loadConfig reads the config named by --config, plus .env in the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, ".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to stderr at the configured level, or debug with --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// openStore selects and opens the backend. Schema creation is deferred to
// the first operation.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.LazyStore, error) {
	sel := cfg.Selection()
	store, err := storage.Open(ctx, sel, storage.WithMaxOpenConns(cfg.Storage.MaxOpenConns))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Info("store opened", "backend", storage.SelectBackend(sel), "location", store.Path())
	return storage.NewLazyStore(store), nil
}

// newSynchronizer wires the configured searcher to store.
func newSynchronizer(cfg *config.Config, store usecase.EntryWriter, logger *slog.Logger) (*usecase.Synchronizer, error) {
	searcher, err := gateway.NewSearcher(cfg.GitHub.API, cfg.GitHub.Token, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub searcher: %w", err)
	}
	return usecase.NewSynchronizer(searcher, store, cfg.Synchronizer(), logger), nil
}

// printJSON writes v as pretty-printed JSON.
func printJSON(w io.Writer, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

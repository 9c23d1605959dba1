package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/app"
	"github.com/glueous/reader/internal/config"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/home"
	"github.com/glueous/reader/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "glueous",
	Short: "Document reader with incremental OCR enrichment",
	Long: `Glueous opens PDF documents and incrementally recognizes text in their
embedded images, injecting it as an invisible, searchable text layer.

Recognition follows the reader's viewport:
  - Visible pages first, nearest to the current page first
  - Then pages reachable by scrolling
  - One page per tick, so the reader stays responsive
  - Results are cached and replayed when a document is reopened`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.glueous/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "glueous home directory (default: ~/.glueous)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: from config)",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A missing .env is not an error.
		_ = godotenv.Load()
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// localEnv bundles what local commands need.
type localEnv struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
	app    *app.App
}

// loadConfig resolves the home directory, loads configuration and builds the logger.
func loadConfig() (*home.Dir, *config.Manager, *slog.Logger, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, nil, err
	}
	cm, err := config.NewManager(cfgFile, ".", h.Path())
	if err != nil {
		return nil, nil, nil, err
	}

	level := cm.Get().LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return h, cm, logger, nil
}

// newLocalEnv loads configuration and builds the enrichment pipeline.
func newLocalEnv() (*localEnv, error) {
	h, cm, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(app.Config{
		Config: cm.Get(),
		Home:   h,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return &localEnv{home: h, config: cm, logger: logger, app: a}, nil
}

// identity derives the cache identity of path using the configured mode.
func (r *localEnv) identity(path string) (document.Identity, error) {
	return document.IdentityFromFile(path, r.config.Get().Enrichment.Identity)
}

func (r *localEnv) Close() {
	if err := r.app.Close(); err != nil {
		r.logger.Warn("failed to close document", "error", err)
	}
}

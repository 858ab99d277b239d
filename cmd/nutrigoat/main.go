package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/extractor"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	profile     string
	fetcherType string
	headful     bool
	workers     int
	delay       string
	limit       int
	maxRetries  int
	storageType string
	datasetPath string
	urlListPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrigoat",
		Short: "NutriGoat, a nutrition facts scraper",
		Long: `NutriGoat collects product URLs from supplement catalogs, extracts the
nutritional information table of every product page and merges the records
into an incremental dataset.

Features:
  • Scroll and page-index URL collection
  • Table, inline, free-text and exact-label extraction strategies
  • Per-flavor variant records
  • CSV, SQLite and MongoDB datasets with last-write-wins merges
  • Stealth headless browser or plain HTTP fetching
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "catalog profile: "+strings.Join(extractor.ProfileNames(), ", "))
	rootCmd.PersistentFlags().StringVar(&fetcherType, "fetcher", "", "page fetcher: browser, http")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "show the browser window")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "dataset backend: csv, sqlite, mongodb")
	rootCmd.PersistentFlags().StringVarP(&datasetPath, "output", "o", "", "dataset file path (csv storage)")
	rootCmd.PersistentFlags().StringVar(&urlListPath, "urls", "", "product URL list file")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sampleCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addIngestFlags registers the flags shared by commands that ingest pages.
func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "concurrent page workers (0 = use config)")
	cmd.Flags().StringVar(&delay, "delay", "", "minimum delay between page fetches")
	cmd.Flags().IntVarP(&limit, "limit", "m", 0, "maximum product URLs to process (0 = all)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "retries per retryable fetch failure (-1 = use config)")
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if profile != "" {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return err
		}
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if headful {
		cfg.Fetcher.Headless = false
	}
	if workers > 0 {
		cfg.Ingest.Workers = workers
	}
	if delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid --delay %q: %w", delay, err)
		}
		cfg.Ingest.Delay = d
	}
	if limit > 0 {
		cfg.Ingest.Limit = limit
	}
	if maxRetries >= 0 {
		cfg.Ingest.MaxRetries = maxRetries
	}
	if storageType != "" {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if datasetPath != "" {
		cfg.Storage.DatasetPath = datasetPath
	}
	if urlListPath != "" {
		cfg.Storage.URLListPath = urlListPath
	}
	return nil
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg != nil && cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// startMetrics starts the metrics server when enabled.
func startMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) *observability.Metrics {
	metrics := observability.NewMetrics(logger)
	if !cfg.Metrics.Enabled {
		return metrics
	}
	srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return metrics
}

// newExtractor builds the extractor for the configured profile.
func newExtractor(cfg *config.Config, reporter report.Reporter, logger *slog.Logger) (*extractor.Extractor, error) {
	p, err := cfg.ExtractorProfile()
	if err != nil {
		return nil, err
	}
	return extractor.New(p, reporter, logger)
}

// openStore opens the configured dataset backend, with CSV datasets at path.
func openStore(cfg *config.Config, path string, schema types.Schema, logger *slog.Logger) (*storage.Store, error) {
	backend, err := storage.NewBackend(&cfg.Storage, path, logger)
	if err != nil {
		return nil, &types.StorageError{Backend: cfg.Storage.Type, Op: "open", Err: err}
	}
	return storage.NewStore(backend, schema, logger), nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NutriGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyCLIOverrides(cfg); err != nil {
				return err
			}
			fmt.Printf("Site:\n")
			fmt.Printf("  Profile:           %s\n", cfg.Site.Profile)
			fmt.Printf("  Base URL:          %s\n", cfg.Site.BaseURL)
			fmt.Printf("\nCollector:\n")
			fmt.Printf("  Strategy:          %s\n", cfg.Collector.Strategy)
			fmt.Printf("  First Listing:     %s\n", cfg.FirstListingURL())
			fmt.Printf("  Anchor Selector:   %s\n", cfg.Collector.AnchorSelector)
			fmt.Printf("  Wait Selector:     %s\n", cfg.Collector.WaitSelector)
			fmt.Printf("\nExtractor:\n")
			fmt.Printf("  Block Selector:    %s\n", cfg.Extractor.BlockSelector)
			fmt.Printf("  Name Selector:     %s\n", cfg.Extractor.NameSelector)
			fmt.Printf("  Strategies:        %s\n", strings.Join(cfg.Extractor.Strategies, ", "))
			fmt.Printf("  Schema:            %s\n", cfg.Extractor.Schema)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Headless:          %v\n", cfg.Fetcher.Headless)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("\nIngest:\n")
			fmt.Printf("  Workers:           %d\n", cfg.Ingest.Workers)
			fmt.Printf("  Delay:             %s\n", cfg.Ingest.Delay)
			fmt.Printf("  Max Retries:       %d\n", cfg.Ingest.MaxRetries)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Dataset:           %s\n", cfg.Storage.DatasetPath)
			fmt.Printf("  URL List:          %s\n", cfg.Storage.URLListPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return config.Validate(cfg)
		},
	}
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/fetcher"
	"github.com/IshaanNene/NutriGoat/internal/ingest"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/pipeline"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/storage"
)

var sampleSize int

// ingestCmd creates the "ingest" subcommand.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract every URL of the URL list into the dataset",
		Long:  "Fetch every product URL of the URL list, extract its records and merge them into the dataset.",
		Args:  cobra.NoArgs,
		RunE:  runIngest,
	}
	addIngestFlags(cmd)
	return cmd
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect product URLs, then ingest them",
		Args:  cobra.NoArgs,
		RunE:  runAll,
	}
	addIngestFlags(cmd)
	return cmd
}

// sampleCmd creates the "sample" subcommand.
func sampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Ingest the first products of the first listing page into the sample dataset",
		Long: `Read only the first listing page, take its first products and ingest them
into the sample dataset. Useful to check selectors before a full run.`,
		Args: cobra.NoArgs,
		RunE: runSample,
	}
	addIngestFlags(cmd)
	cmd.Flags().IntVar(&sampleSize, "size", 0, "number of products to sample (0 = use config)")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	urls, err := storage.LoadURLList(cfg.Storage.URLListPath)
	if err != nil {
		return fmt.Errorf("load URL list (run \"nutrigoat collect\" first): %w", err)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()
	metrics := startMetrics(ctx, cfg, logger)

	driver, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer driver.Close()

	return ingestURLs(ctx, cfg, driver, urls, cfg.Storage.DatasetPath, metrics, logger)
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	ctx, cancel := signalContext(logger)
	defer cancel()
	metrics := startMetrics(ctx, cfg, logger)

	driver, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer driver.Close()

	urls, err := collectURLs(ctx, cfg, driver, 0, metrics, logger)
	if err != nil {
		if len(urls) == 0 {
			return err
		}
		logger.Warn("collection incomplete, ingesting what was found", "urls", len(urls), "error", err)
	}

	return ingestURLs(ctx, cfg, driver, urls, cfg.Storage.DatasetPath, metrics, logger)
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	size := cfg.Collector.SampleSize
	if sampleSize > 0 {
		size = sampleSize
	}

	ctx, cancel := signalContext(logger)
	defer cancel()
	metrics := startMetrics(ctx, cfg, logger)

	driver, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer driver.Close()

	c := newSampleCollector(cfg, driver, size, logger)
	res, err := c.First(ctx, cfg.FirstListingURL())
	if err != nil {
		return err
	}
	metrics.ListingPages.Add(1)
	metrics.URLsCollected.Add(int64(len(res.URLs)))

	return ingestURLs(ctx, cfg, driver, res.URLs, cfg.Storage.SamplePath, metrics, logger)
}

// ingestURLs runs the ingestion loop into the dataset at path and prints the
// run summary.
func ingestURLs(ctx context.Context, cfg *config.Config, f ingest.Fetcher, urls []string, path string,
	metrics *observability.Metrics, logger *slog.Logger) error {
	reporter := report.NewSlogReporter(logger)

	ext, err := newExtractor(cfg, reporter, logger)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}
	store, err := openStore(cfg, path, ext.Profile().Schema, logger)
	if err != nil {
		return err
	}
	defer store.Backend().Close()

	runner := ingest.New(f, ext, store, ingest.Options{
		Workers:    cfg.Ingest.Workers,
		Delay:      cfg.Ingest.Delay,
		Limit:      cfg.Ingest.Limit,
		MaxRetries: cfg.Ingest.MaxRetries,
		RetryDelay: cfg.Ingest.RetryDelay,
		Pipeline:   pipeline.Default(logger),
	}, reporter, metrics, logger)

	sum, runErr := runner.Run(ctx, urls)
	if sum != nil {
		printSummary(sum, cfg, path)
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Info("run interrupted, dataset holds every merge completed so far")
		return nil
	}
	return runErr
}

func printSummary(sum *ingest.Summary, cfg *config.Config, path string) {
	target := path
	if cfg.Storage.Type != "csv" {
		target = cfg.Storage.Type
	}
	fmt.Printf("\n✅ Ingestion complete in %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Printf("   URLs:      %d total, %d processed, %d skipped\n", sum.Total, sum.Processed, sum.Skipped)
	fmt.Printf("   Records:   %d merged, %d in dataset\n", sum.Records, sum.DatasetSize)
	fmt.Printf("   Output:    %s\n", target)
	if len(sum.Skips) > 0 {
		fmt.Println("\n   Skipped:")
		for _, s := range sum.Skips {
			fmt.Printf("     %s: %s\n", s.URL, s.Reason)
		}
	}
}

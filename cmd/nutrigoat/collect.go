package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/collector"
	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/fetcher"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/storage"
)

var collectLimit int

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect product URLs from the catalog listing",
		Long:  "Walk the catalog listing with the configured strategy and write the product URL list.",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}
	cmd.Flags().IntVarP(&collectLimit, "limit", "m", 0, "maximum URLs to collect (0 = all)")
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
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

	urls, err := collectURLs(ctx, cfg, driver, collectLimit, metrics, logger)
	if err != nil && len(urls) == 0 {
		return err
	}
	fmt.Printf("\n✅ Collected %d product URLs into %s\n", len(urls), cfg.Storage.URLListPath)
	return err
}

// collectURLs runs the configured collection strategy and writes the URL
// list. A partial result is still written when collection fails midway.
func collectURLs(ctx context.Context, cfg *config.Config, listing collector.Listing, maxURLs int,
	metrics *observability.Metrics, logger *slog.Logger) ([]string, error) {
	c := collector.New(listing, collectorOptions(cfg, maxURLs), report.NewSlogReporter(logger), logger)

	var res *collector.Result
	var err error
	switch cfg.Collector.Strategy {
	case "scroll":
		res, err = c.Scroll(ctx, cfg.Collector.ListingURL)
	case "paged":
		res, err = c.Paged(ctx, cfg.PageURL)
	default:
		return nil, fmt.Errorf("unknown collector strategy %q", cfg.Collector.Strategy)
	}
	if res == nil || len(res.URLs) == 0 {
		if err == nil {
			err = fmt.Errorf("no product URLs found on %s", cfg.FirstListingURL())
		}
		return nil, err
	}

	metrics.ListingPages.Add(int64(res.Pages))
	metrics.URLsCollected.Add(int64(len(res.URLs)))
	logger.Info("collection complete",
		"strategy", cfg.Collector.Strategy,
		"urls", len(res.URLs),
		"pages", res.Pages,
		"scrolls", res.Scrolls,
		"discarded", res.Discarded,
		"failures", res.Failures,
	)

	if saveErr := storage.SaveURLList(cfg.Storage.URLListPath, res.URLs); saveErr != nil {
		return nil, errors.Join(saveErr, err)
	}
	return res.URLs, err
}

// newSampleCollector creates a collector keeping at most size URLs.
func newSampleCollector(cfg *config.Config, listing collector.Listing, size int, logger *slog.Logger) *collector.Collector {
	return collector.New(listing, collectorOptions(cfg, size), report.NewSlogReporter(logger), logger)
}

func collectorOptions(cfg *config.Config, maxURLs int) collector.Options {
	return collector.Options{
		BaseURL:                cfg.Site.BaseURL,
		AnchorSelector:         cfg.Collector.AnchorSelector,
		WaitSelector:           cfg.Collector.WaitSelector,
		WaitTimeout:            cfg.Collector.WaitTimeout,
		MaxConsecutiveFailures: cfg.Collector.MaxConsecutiveFailures,
		Limit:                  maxURLs,
	}
}

// Package ingest drives the fetch, extract and merge loop over a list of
// product URLs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/NutriGoat/internal/extractor"
	"github.com/IshaanNene/NutriGoat/internal/observability"
	"github.com/IshaanNene/NutriGoat/internal/pipeline"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/storage"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Fetcher retrieves product pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)
}

// Options tunes a Runner.
type Options struct {
	// Workers bounds the number of URLs fetched and extracted at once.
	Workers int

	// Delay is the minimum interval between two fetches, across workers.
	Delay time.Duration

	// Limit caps the number of URLs processed. 0 means all of them.
	Limit int

	// MaxRetries is how many times a retryable fetch failure is retried.
	MaxRetries int

	// RetryDelay is the pause before each retry.
	RetryDelay time.Duration

	// Pipeline cleans extracted records before they are merged. nil merges
	// them as extracted.
	Pipeline *pipeline.Pipeline
}

// Skip records why a URL produced no records.
type Skip struct {
	URL    string
	Reason string
}

// Summary is the outcome of a run.
type Summary struct {
	// Total is the number of URLs scheduled.
	Total int

	// Processed counts URLs that produced at least one record.
	Processed int

	// Skipped counts URLs that produced none.
	Skipped int

	// Records is the number of records merged.
	Records int

	// DatasetSize is the dataset size after the last merge. Merges never
	// shrink the dataset, so it is the largest size observed.
	DatasetSize int

	Skips   []Skip
	Elapsed time.Duration
}

// Runner processes URLs with a bounded worker pool. Merges go through the
// Store, which serializes them.
type Runner struct {
	fetcher   Fetcher
	extractor *extractor.Extractor
	store     *storage.Store
	opts      Options
	reporter  report.Reporter
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a Runner. metrics and reporter may be nil.
func New(f Fetcher, ext *extractor.Extractor, store *storage.Store, opts Options,
	reporter report.Reporter, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if reporter == nil {
		reporter = report.Discard
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Runner{
		fetcher:   f,
		extractor: ext,
		store:     store,
		opts:      opts,
		reporter:  reporter,
		metrics:   metrics,
		logger:    logger.With("component", "ingest"),
	}
}

// outcome is the result of one URL, stored at the URL's index.
type outcome struct {
	done        bool
	records     int
	datasetSize int
	skip        error
}

// Run fetches, extracts and merges every URL. Per-URL fetch failures and
// pages without data are skipped with a reason. A storage failure cancels
// the remaining work and is returned together with the partial summary;
// everything merged before it stays persisted.
func (r *Runner) Run(ctx context.Context, urls []string) (*Summary, error) {
	start := time.Now()
	if r.opts.Limit > 0 && len(urls) > r.opts.Limit {
		urls = urls[:r.opts.Limit]
	}

	r.logger.Info("ingestion starting",
		"urls", len(urls),
		"workers", r.opts.Workers,
		"delay", r.opts.Delay,
	)

	limit := rate.Inf
	if r.opts.Delay > 0 {
		limit = rate.Every(r.opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	outcomes := make([]outcome, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, u := range urls {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.metrics.ActiveWorkers.Add(1)
			defer r.metrics.ActiveWorkers.Add(-1)

			out, err := r.process(gctx, limiter, u)
			if err != nil {
				return err
			}
			outcomes[i] = out
			r.reporter.Report(report.Event{Kind: report.KindProgress, URL: u, Count: i + 1, Total: len(urls)})
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sum := summarize(urls, outcomes)
	sum.Elapsed = time.Since(start)

	r.logger.Info("ingestion finished",
		"total", sum.Total,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"records", sum.Records,
		"dataset", sum.DatasetSize,
		"elapsed", sum.Elapsed.Round(time.Millisecond),
	)
	return sum, err
}

func summarize(urls []string, outcomes []outcome) *Summary {
	sum := &Summary{Total: len(urls)}
	for i, out := range outcomes {
		switch {
		case !out.done:
		case out.skip != nil:
			sum.Skipped++
			sum.Skips = append(sum.Skips, Skip{URL: urls[i], Reason: out.skip.Error()})
		default:
			sum.Processed++
			sum.Records += out.records
			sum.DatasetSize = max(sum.DatasetSize, out.datasetSize)
		}
	}
	return sum
}

// process handles one URL. It returns an error only for faults that must
// stop the run.
func (r *Runner) process(ctx context.Context, limiter *rate.Limiter, u string) (outcome, error) {
	page, err := r.fetch(ctx, limiter, u)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		r.metrics.FetchesFailed.Add(1)
		r.metrics.ProductsSkipped.Add(1)
		r.logger.Warn("fetch failed, skipping", "url", u, "error", err)
		r.reporter.Report(report.Event{Kind: report.KindSkipped, URL: u, Message: err.Error()})
		return outcome{done: true, skip: err}, nil
	}

	doc, err := page.Document()
	if err != nil {
		r.metrics.ProductsSkipped.Add(1)
		err = fmt.Errorf("parse html: %w", err)
		r.reporter.Report(report.Event{Kind: report.KindSkipped, URL: u, Message: err.Error()})
		return outcome{done: true, skip: err}, nil
	}

	res := r.extractor.Extract(doc, u)
	if len(res.Records) == 0 {
		reason := res.Reason
		if reason == nil {
			reason = types.ErrNoNutritionBlock
		}
		r.metrics.ProductsSkipped.Add(1)
		return outcome{done: true, skip: reason}, nil
	}
	r.metrics.RecordsExtracted.Add(int64(len(res.Records)))
	if res.Tier == extractor.TierDefaults {
		r.metrics.DefaultRecords.Add(1)
	}

	records := res.Records
	if r.opts.Pipeline != nil {
		records, err = r.opts.Pipeline.ProcessAll(records)
		if err == nil && len(records) == 0 {
			err = types.ErrNoProductName
		}
		if err != nil {
			r.metrics.ProductsSkipped.Add(1)
			r.logger.Warn("records rejected, skipping", "url", u, "error", err)
			r.reporter.Report(report.Event{Kind: report.KindSkipped, URL: u, Message: err.Error()})
			return outcome{done: true, skip: err}, nil
		}
	}

	merged, err := r.store.Merge(ctx, records)
	if err != nil {
		if types.IsStorageError(err) {
			r.logger.Error("persist failed, aborting run", "url", u, "error", err)
		}
		return outcome{}, err
	}
	r.metrics.Merges.Add(1)
	r.metrics.DatasetSize.Store(int64(merged.Total))
	r.reporter.Report(report.Event{
		Kind:    report.KindMerged,
		URL:     u,
		Product: records[0].ProductName,
		Count:   merged.Added,
		Total:   merged.Total,
	})

	return outcome{done: true, records: len(records), datasetSize: merged.Total}, nil
}

// fetch waits for the limiter and fetches u, retrying retryable failures.
func (r *Runner) fetch(ctx context.Context, limiter *rate.Limiter, u string) (*types.Page, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			r.metrics.FetchesRetried.Add(1)
			r.logger.Debug("retrying fetch", "url", u, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, r.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := r.fetcher.Fetch(ctx, u)
		if err == nil {
			r.metrics.PagesFetched.Add(1)
			r.metrics.BytesDownloaded.Add(int64(len(page.HTML)))
			return page, nil
		}
		lastErr = err

		var fe *types.FetchError
		if !errors.As(err, &fe) || !fe.IsRetryable() {
			break
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

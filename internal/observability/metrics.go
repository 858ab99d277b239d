package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for collection and ingestion runs.
type Metrics struct {
	// Fetch metrics
	PagesFetched    atomic.Int64
	FetchesFailed   atomic.Int64
	FetchesRetried  atomic.Int64
	BytesDownloaded atomic.Int64

	// Extraction metrics
	RecordsExtracted atomic.Int64
	DefaultRecords   atomic.Int64
	ProductsSkipped  atomic.Int64

	// Storage metrics
	Merges      atomic.Int64
	DatasetSize atomic.Int64

	// Collection metrics
	ListingPages  atomic.Int64
	URLsCollected atomic.Int64

	ActiveWorkers atomic.Int32

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type metric struct {
	name  string
	help  string
	kind  string
	value int64
}

func (m *Metrics) all() []metric {
	return []metric{
		{"nutrigoat_pages_fetched_total", "Total product pages fetched", "counter", m.PagesFetched.Load()},
		{"nutrigoat_fetches_failed_total", "Total failed fetches", "counter", m.FetchesFailed.Load()},
		{"nutrigoat_fetches_retried_total", "Total retried fetches", "counter", m.FetchesRetried.Load()},
		{"nutrigoat_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"nutrigoat_records_extracted_total", "Total records extracted", "counter", m.RecordsExtracted.Load()},
		{"nutrigoat_default_records_total", "Records emitted with default values", "counter", m.DefaultRecords.Load()},
		{"nutrigoat_products_skipped_total", "Product pages skipped", "counter", m.ProductsSkipped.Load()},
		{"nutrigoat_merges_total", "Dataset merges persisted", "counter", m.Merges.Load()},
		{"nutrigoat_dataset_records", "Records in the dataset after the last merge", "gauge", m.DatasetSize.Load()},
		{"nutrigoat_listing_pages_total", "Listing pages read", "counter", m.ListingPages.Load()},
		{"nutrigoat_urls_collected_total", "Product URLs collected", "counter", m.URLsCollected.Load()},
		{"nutrigoat_active_workers", "Currently active workers", "gauge", int64(m.ActiveWorkers.Load())},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.all() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background and returns
// it so the caller can shut it down.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns all metrics as a map keyed by short name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":     m.PagesFetched.Load(),
		"fetches_failed":    m.FetchesFailed.Load(),
		"fetches_retried":   m.FetchesRetried.Load(),
		"bytes_downloaded":  m.BytesDownloaded.Load(),
		"records_extracted": m.RecordsExtracted.Load(),
		"default_records":   m.DefaultRecords.Load(),
		"products_skipped":  m.ProductsSkipped.Load(),
		"merges":            m.Merges.Load(),
		"dataset_records":   m.DatasetSize.Load(),
		"listing_pages":     m.ListingPages.Load(),
		"urls_collected":    m.URLsCollected.Load(),
		"active_workers":    int64(m.ActiveWorkers.Load()),
	}
}

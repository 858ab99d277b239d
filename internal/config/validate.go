package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}

	switch cfg.Collector.Strategy {
	case "scroll":
		if err := ValidateURL(cfg.Collector.ListingURL); err != nil {
			return fmt.Errorf("collector.listing_url: %w", err)
		}
	case "paged":
		if !strings.Contains(cfg.Collector.PageURLTemplate, PagePlaceholder) {
			return fmt.Errorf("collector.page_url_template must contain %s, got %q", PagePlaceholder, cfg.Collector.PageURLTemplate)
		}
		if err := ValidateURL(cfg.PageURL(1)); err != nil {
			return fmt.Errorf("collector.page_url_template: %w", err)
		}
	default:
		return fmt.Errorf("collector.strategy must be 'scroll' or 'paged', got %q", cfg.Collector.Strategy)
	}
	if cfg.Collector.AnchorSelector == "" {
		return fmt.Errorf("collector.anchor_selector must not be empty")
	}
	if cfg.Collector.WaitTimeout <= 0 {
		return fmt.Errorf("collector.wait_timeout must be > 0")
	}
	if cfg.Collector.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("collector.max_consecutive_failures must be >= 1, got %d", cfg.Collector.MaxConsecutiveFailures)
	}
	if cfg.Collector.SampleSize < 1 {
		return fmt.Errorf("collector.sample_size must be >= 1, got %d", cfg.Collector.SampleSize)
	}

	if cfg.Extractor.BlockSelector == "" {
		return fmt.Errorf("extractor.block_selector must not be empty")
	}
	if cfg.Extractor.NameSelector == "" {
		return fmt.Errorf("extractor.name_selector must not be empty")
	}
	if len(cfg.Extractor.Strategies) == 0 {
		return fmt.Errorf("extractor.strategies must not be empty")
	}
	if _, ok := types.SchemaByName(cfg.Extractor.Schema); !ok {
		return fmt.Errorf("extractor.schema must be 'base' or 'extended', got %q", cfg.Extractor.Schema)
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.SettleDelay < 0 {
		return fmt.Errorf("fetcher.settle_delay must be >= 0")
	}
	if cfg.Fetcher.ViewportWidth < 1 || cfg.Fetcher.ViewportHeight < 1 {
		return fmt.Errorf("fetcher viewport must be positive, got %dx%d", cfg.Fetcher.ViewportWidth, cfg.Fetcher.ViewportHeight)
	}
	if cfg.Fetcher.MaxPages < 1 {
		return fmt.Errorf("fetcher.max_pages must be >= 1, got %d", cfg.Fetcher.MaxPages)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be >= 1, got %d", cfg.Ingest.Workers)
	}
	if cfg.Ingest.Workers > 64 {
		return fmt.Errorf("ingest.workers must be <= 64, got %d", cfg.Ingest.Workers)
	}
	if cfg.Ingest.Delay < 0 {
		return fmt.Errorf("ingest.delay must be >= 0")
	}
	if cfg.Ingest.Limit < 0 {
		return fmt.Errorf("ingest.limit must be >= 0, got %d", cfg.Ingest.Limit)
	}
	if cfg.Ingest.MaxRetries < 0 || cfg.Ingest.MaxRetries > 10 {
		return fmt.Errorf("ingest.max_retries must be 0-10, got %d", cfg.Ingest.MaxRetries)
	}
	if cfg.Ingest.RetryDelay < 0 {
		return fmt.Errorf("ingest.retry_delay must be >= 0")
	}

	switch cfg.Storage.Type {
	case "csv":
		if cfg.Storage.DatasetPath == "" {
			return fmt.Errorf("storage.dataset_path must not be empty")
		}
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must not be empty")
		}
	case "mongodb":
		if cfg.Storage.MongoURI == "" || cfg.Storage.MongoDatabase == "" || cfg.Storage.MongoCollection == "" {
			return fmt.Errorf("storage.mongo_uri, mongo_database and mongo_collection are required for mongodb")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: csv, sqlite, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.URLListPath == "" {
		return fmt.Errorf("storage.url_list_path must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", types.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: URL must have a host", types.ErrInvalidURL)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > site
// profile > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable support
	v.SetEnvPrefix("NUTRIGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("nutrigoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".nutrigoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	// The profile seeds the defaults the file and env are layered over.
	cfg := DefaultConfig()
	if err := ApplyProfile(cfg, v.GetString("site.profile")); err != nil {
		return nil, err
	}
	setDefaults(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.profile", cfg.Site.Profile)
	v.SetDefault("site.base_url", cfg.Site.BaseURL)

	v.SetDefault("collector.strategy", cfg.Collector.Strategy)
	v.SetDefault("collector.listing_url", cfg.Collector.ListingURL)
	v.SetDefault("collector.page_url_template", cfg.Collector.PageURLTemplate)
	v.SetDefault("collector.anchor_selector", cfg.Collector.AnchorSelector)
	v.SetDefault("collector.wait_selector", cfg.Collector.WaitSelector)
	v.SetDefault("collector.wait_timeout", cfg.Collector.WaitTimeout)
	v.SetDefault("collector.max_consecutive_failures", cfg.Collector.MaxConsecutiveFailures)
	v.SetDefault("collector.sample_size", cfg.Collector.SampleSize)

	v.SetDefault("extractor.block_selector", cfg.Extractor.BlockSelector)
	v.SetDefault("extractor.name_selector", cfg.Extractor.NameSelector)
	v.SetDefault("extractor.category_selector", cfg.Extractor.CategorySelector)
	v.SetDefault("extractor.category_index", cfg.Extractor.CategoryIndex)
	v.SetDefault("extractor.strategies", cfg.Extractor.Strategies)
	v.SetDefault("extractor.schema", cfg.Extractor.Schema)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.headless", cfg.Fetcher.Headless)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.stable_wait", cfg.Fetcher.StableWait)
	v.SetDefault("fetcher.settle_delay", cfg.Fetcher.SettleDelay)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.viewport_width", cfg.Fetcher.ViewportWidth)
	v.SetDefault("fetcher.viewport_height", cfg.Fetcher.ViewportHeight)
	v.SetDefault("fetcher.max_pages", cfg.Fetcher.MaxPages)
	v.SetDefault("fetcher.user_data_dir", cfg.Fetcher.UserDataDir)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("ingest.workers", cfg.Ingest.Workers)
	v.SetDefault("ingest.delay", cfg.Ingest.Delay)
	v.SetDefault("ingest.limit", cfg.Ingest.Limit)
	v.SetDefault("ingest.max_retries", cfg.Ingest.MaxRetries)
	v.SetDefault("ingest.retry_delay", cfg.Ingest.RetryDelay)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.dataset_path", cfg.Storage.DatasetPath)
	v.SetDefault("storage.sample_path", cfg.Storage.SamplePath)
	v.SetDefault("storage.url_list_path", cfg.Storage.URLListPath)
	v.SetDefault("storage.snapshot_dir", cfg.Storage.SnapshotDir)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

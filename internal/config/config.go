package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for NutriGoat.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"      yaml:"site"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Ingest    IngestConfig    `mapstructure:"ingest"    yaml:"ingest"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// SiteConfig selects the catalog being scraped.
type SiteConfig struct {
	Profile string `mapstructure:"profile"  yaml:"profile"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// CollectorConfig controls product URL discovery.
type CollectorConfig struct {
	Strategy               string        `mapstructure:"strategy"                 yaml:"strategy"` // scroll, paged
	ListingURL             string        `mapstructure:"listing_url"              yaml:"listing_url"`
	PageURLTemplate        string        `mapstructure:"page_url_template"        yaml:"page_url_template"`
	AnchorSelector         string        `mapstructure:"anchor_selector"          yaml:"anchor_selector"`
	WaitSelector           string        `mapstructure:"wait_selector"            yaml:"wait_selector"`
	WaitTimeout            time.Duration `mapstructure:"wait_timeout"             yaml:"wait_timeout"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	SampleSize             int           `mapstructure:"sample_size"              yaml:"sample_size"`
}

// ExtractorConfig controls how product pages are read.
type ExtractorConfig struct {
	BlockSelector    string   `mapstructure:"block_selector"    yaml:"block_selector"`
	NameSelector     string   `mapstructure:"name_selector"     yaml:"name_selector"`
	CategorySelector string   `mapstructure:"category_selector" yaml:"category_selector"`
	CategoryIndex    int      `mapstructure:"category_index"    yaml:"category_index"`
	Strategies       []string `mapstructure:"strategies"        yaml:"strategies"`
	Schema           string   `mapstructure:"schema"            yaml:"schema"` // base, extended
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // browser, http
	Headless        bool          `mapstructure:"headless"          yaml:"headless"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	StableWait      time.Duration `mapstructure:"stable_wait"       yaml:"stable_wait"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"      yaml:"settle_delay"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	ViewportWidth   int           `mapstructure:"viewport_width"    yaml:"viewport_width"`
	ViewportHeight  int           `mapstructure:"viewport_height"   yaml:"viewport_height"`
	MaxPages        int           `mapstructure:"max_pages"         yaml:"max_pages"`
	UserDataDir     string        `mapstructure:"user_data_dir"     yaml:"user_data_dir"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// IngestConfig controls the fetch-extract-merge loop.
type IngestConfig struct {
	Workers    int           `mapstructure:"workers"     yaml:"workers"`
	Delay      time.Duration `mapstructure:"delay"       yaml:"delay"`
	Limit      int           `mapstructure:"limit"       yaml:"limit"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// StorageConfig controls where datasets and URL lists live.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"` // csv, sqlite, mongodb
	DatasetPath     string `mapstructure:"dataset_path"     yaml:"dataset_path"`
	SamplePath      string `mapstructure:"sample_path"      yaml:"sample_path"`
	URLListPath     string `mapstructure:"url_list_path"    yaml:"url_list_path"`
	SnapshotDir     string `mapstructure:"snapshot_dir"     yaml:"snapshot_dir"`
	SQLitePath      string `mapstructure:"sqlite_path"      yaml:"sqlite_path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultUserAgent is a current desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns a Config with sensible defaults and the default
// site profile applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Collector: CollectorConfig{
			WaitTimeout:            10 * time.Second,
			MaxConsecutiveFailures: 3,
			SampleSize:             10,
		},
		Fetcher: FetcherConfig{
			Type:            "browser",
			Headless:        true,
			RequestTimeout:  30 * time.Second,
			StableWait:      300 * time.Millisecond,
			SettleDelay:     2 * time.Second,
			UserAgent:       DefaultUserAgent,
			ViewportWidth:   1920,
			ViewportHeight:  1080,
			MaxPages:        2,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Ingest: IngestConfig{
			Workers:    1,
			Delay:      1 * time.Second,
			MaxRetries: 1,
			RetryDelay: 2 * time.Second,
		},
		Storage: StorageConfig{
			Type:            "csv",
			DatasetPath:     "nutrition_data.csv",
			SamplePath:      "sample.csv",
			URLListPath:     "product_urls.json",
			SnapshotDir:     "snapshots",
			SQLitePath:      "nutrition.db",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "nutrigoat",
			MongoCollection: "records",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
	// The default profile always exists.
	_ = ApplyProfile(cfg, DefaultProfile)
	return cfg
}

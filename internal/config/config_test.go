package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Site.Profile != DefaultProfile {
		t.Errorf("profile = %q, want %q", cfg.Site.Profile, DefaultProfile)
	}
	if cfg.Collector.Strategy != "paged" {
		t.Errorf("strategy = %q, want paged", cfg.Collector.Strategy)
	}
	if cfg.Ingest.Workers != 1 {
		t.Errorf("workers = %d, want 1", cfg.Ingest.Workers)
	}
}

func TestApplyProfile(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyProfile(cfg, "puravida"); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	if cfg.Collector.Strategy != "scroll" {
		t.Errorf("strategy = %q, want scroll", cfg.Collector.Strategy)
	}
	if cfg.Collector.ListingURL != "https://www.puravida.com.br/todos" {
		t.Errorf("listing url = %q", cfg.Collector.ListingURL)
	}
	if cfg.Extractor.Schema != "extended" {
		t.Errorf("schema = %q, want extended", cfg.Extractor.Schema)
	}
	if cfg.Extractor.CategoryIndex != -2 {
		t.Errorf("category index = %d, want -2", cfg.Extractor.CategoryIndex)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("puravida config invalid: %v", err)
	}

	if err := ApplyProfile(cfg, "unknown"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestExtractorProfile(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.ExtractorProfile()
	if err != nil {
		t.Fatalf("ExtractorProfile: %v", err)
	}
	if p.BlockSelector != "div#informacoes.bloco_texto" {
		t.Errorf("block selector = %q", p.BlockSelector)
	}
	if p.Schema.Len() != types.BaseSchema().Len() {
		t.Errorf("schema has %d columns", p.Schema.Len())
	}

	cfg.Extractor.Schema = "huge"
	if _, err := cfg.ExtractorProfile(); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestPageURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collector.PageURLTemplate = "https://shop.example/list?page={page}"
	if got := cfg.PageURL(3); got != "https://shop.example/list?page=3" {
		t.Errorf("PageURL(3) = %q", got)
	}
	if got := cfg.FirstListingURL(); got != "https://shop.example/list?page=1" {
		t.Errorf("FirstListingURL = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad strategy", func(c *Config) { c.Collector.Strategy = "crawl" }},
		{"template without placeholder", func(c *Config) { c.Collector.PageURLTemplate = "https://shop.example/list" }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"negative delay", func(c *Config) { c.Ingest.Delay = -time.Second }},
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "curl" }},
		{"bad storage", func(c *Config) { c.Storage.Type = "parquet" }},
		{"bad schema", func(c *Config) { c.Extractor.Schema = "full" }},
		{"no strategies", func(c *Config) { c.Extractor.Strategies = nil }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/shop" }},
		{"metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://shop.example/x"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, raw := range []string{"ftp://shop.example", "shop.example/x", "https://"} {
		if err := ValidateURL(raw); !errors.Is(err, types.ErrInvalidURL) {
			t.Errorf("ValidateURL(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestLoadFileAndProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nutrigoat.yaml")
	content := `site:
  profile: puravida
ingest:
  workers: 4
  delay: 250ms
storage:
  type: sqlite
  sqlite_path: data.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site.Profile != "puravida" {
		t.Errorf("profile = %q", cfg.Site.Profile)
	}
	if cfg.Collector.Strategy != "scroll" {
		t.Errorf("profile defaults not applied, strategy = %q", cfg.Collector.Strategy)
	}
	if cfg.Ingest.Workers != 4 || cfg.Ingest.Delay != 250*time.Millisecond {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLitePath != "data.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.URLListPath != "product_urls.json" {
		t.Errorf("url list path default lost: %q", cfg.Storage.URLListPath)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NUTRIGOAT_INGEST_WORKERS", "3")
	t.Setenv("NUTRIGOAT_STORAGE_DATASET_PATH", "env.csv")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for an explicit missing config file")
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.Workers != 3 {
		t.Errorf("workers = %d, want 3 from env", cfg.Ingest.Workers)
	}
	if cfg.Storage.DatasetPath != "env.csv" {
		t.Errorf("dataset path = %q, want env.csv", cfg.Storage.DatasetPath)
	}
}

package main

import (
	"testing"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/config"
)

func TestApplyCLIOverrides(t *testing.T) {
	cfg := config.DefaultConfig()

	profile, fetcherType, workers, delay, storageType = "puravida", "HTTP", 4, "250ms", "sqlite"
	defer func() {
		profile, fetcherType, workers, delay, storageType = "", "", 0, "", ""
	}()

	if err := applyCLIOverrides(cfg); err != nil {
		t.Fatalf("applyCLIOverrides: %v", err)
	}
	if cfg.Site.Profile != "puravida" || cfg.Collector.Strategy != "scroll" {
		t.Errorf("profile not applied: %+v", cfg.Site)
	}
	if cfg.Fetcher.Type != "http" || cfg.Ingest.Workers != 4 || cfg.Ingest.Delay != 250*time.Millisecond {
		t.Errorf("overrides = %s / %d / %s", cfg.Fetcher.Type, cfg.Ingest.Workers, cfg.Ingest.Delay)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("storage = %s", cfg.Storage.Type)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("overridden config invalid: %v", err)
	}

	delay = "soon"
	if err := applyCLIOverrides(config.DefaultConfig()); err == nil {
		t.Error("expected error for a bad delay")
	}
}

func TestSnapshotName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	tests := []struct {
		url  string
		want string
	}{
		{"https://shop.example/pasta-de-amendoim?sabor=chocolate", "pasta-de-amendoim-20240309-140506.html"},
		{"https://shop.example/produto.html", "produto-20240309-140506.html"},
		{"https://shop.example/", "shop.example-20240309-140506.html"},
		{"https://shop.example/açaí", "a_a_-20240309-140506.html"},
	}
	for _, tt := range tests {
		if got := snapshotName(tt.url, now); got != tt.want {
			t.Errorf("snapshotName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

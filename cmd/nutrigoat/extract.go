package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/fetcher"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var (
	extractSourceURL string
	snapshotOutput   string
)

// extractCmd creates the "extract" subcommand.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file|url]",
		Short: "Extract the records of one product page and print them as JSON",
		Long: `Run the extractor on a saved HTML file or a live product URL and print the
records as JSON. Nothing is written to the dataset.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}
	cmd.Flags().StringVar(&extractSourceURL, "source-url", "", "source URL recorded for a file input")
	return cmd
}

// snapshotCmd creates the "snapshot" subcommand.
func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [url]",
		Short: "Save the rendered HTML of a page for selector debugging",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshot,
	}
	cmd.Flags().StringVar(&snapshotOutput, "file", "", "output file (default: <snapshot_dir>/<page>.html)")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	target := args[0]

	var (
		html      []byte
		sourceURL = extractSourceURL
	)
	if isURL(target) {
		if err := config.ValidateURL(target); err != nil {
			return fmt.Errorf("invalid URL %q: %w", target, err)
		}
		ctx, cancel := signalContext(logger)
		defer cancel()

		f, err := fetcher.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("create fetcher: %w", err)
		}
		defer f.Close()

		page, err := f.Fetch(ctx, target)
		if err != nil {
			return err
		}
		html = page.HTML
		if sourceURL == "" {
			sourceURL = target
		}
	} else {
		html, err = os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("read page: %w", err)
		}
		// Snapshots are stored as UTF-8 even when their <meta> says otherwise.
		if !utf8.Valid(html) {
			if html, err = fetcher.DecodeHTML(html, ""); err != nil {
				return fmt.Errorf("read page: %w", err)
			}
		}
		if sourceURL == "" {
			sourceURL = "file://" + filepath.ToSlash(target)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	ext, err := newExtractor(cfg, report.NewSlogReporter(logger), logger)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}
	res := ext.Extract(doc, sourceURL)
	if res.Reason != nil {
		return fmt.Errorf("no record extracted: %w", res.Reason)
	}

	out := struct {
		Tier    string          `json:"tier"`
		Records []*types.Record `json:"records"`
	}{Tier: res.Tier.String(), Records: res.Records}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	target := args[0]

	if err := config.ValidateURL(target); err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	page, err := f.Fetch(ctx, target)
	if err != nil {
		return err
	}

	path := snapshotOutput
	if path == "" {
		path = filepath.Join(cfg.Storage.SnapshotDir, snapshotName(page.FinalURL, time.Now()))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, page.HTML, 0o644); err != nil {
		return &types.StorageError{Backend: "snapshot", Op: "save", Err: err}
	}

	logger.Info("snapshot saved", "url", target, "final_url", page.FinalURL, "path", path, "size", len(page.HTML))
	fmt.Printf("\n✅ Snapshot of %s saved to %s\n", target, path)
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// snapshotName derives a file name from the last path segment of rawURL.
func snapshotName(rawURL string, now time.Time) string {
	name := strings.TrimRight(rawURL, "/")
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	if name == "" {
		name = "page"
	}
	return fmt.Sprintf("%s-%s.html", strings.TrimSuffix(name, ".html"), now.Format("20060102-150405"))
}

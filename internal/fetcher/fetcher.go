// Package fetcher provides the page fetchers behind ingestion and URL
// collection: a stealth headless browser and a plain HTTP client.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Fetcher retrieves rendered product pages. Implementations are safe for
// concurrent use.
type Fetcher interface {
	// Fetch retrieves the page at rawURL.
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Driver is a Fetcher that can also walk a listing page: navigate, scroll,
// read anchors and wait for elements. The listing calls share one page and
// are serialized.
type Driver interface {
	Fetcher
	Navigate(ctx context.Context, rawURL string) error
	ScrollAndGetHeight(ctx context.Context) (int, error)
	FindAnchors(ctx context.Context, selector string) ([]types.Anchor, error)
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
}

// New creates the fetcher selected by fetcher.type.
func New(cfg *config.Config, logger *slog.Logger) (Driver, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	case "http":
		return NewHTTPFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Fetcher.Type)
	}
}

// anchors returns the links matching selector, resolved against base.
// Anchors without an href are dropped.
func anchors(doc *goquery.Document, base, selector string) []types.Anchor {
	baseURL, _ := url.Parse(base)

	var out []types.Anchor
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if baseURL != nil {
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			href = baseURL.ResolveReference(ref).String()
		}
		out = append(out, types.Anchor{Href: href, Text: normalize.Collapse(s.Text())})
	})
	return out
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
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

// Package collector discovers product URLs from catalog listing pages, either
// by scrolling one page until its height converges or by walking numbered
// pages until one comes back empty.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Listing drives one listing page.
type Listing interface {
	Navigate(ctx context.Context, rawURL string) error
	ScrollAndGetHeight(ctx context.Context) (int, error)
	FindAnchors(ctx context.Context, selector string) ([]types.Anchor, error)
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
}

// Options configures a Collector.
type Options struct {
	// BaseURL is the site origin. Only URLs under BaseURL + "/" are kept.
	BaseURL string

	// AnchorSelector matches product links on a listing page.
	AnchorSelector string

	// WaitSelector, when set, must appear before a page is read.
	WaitSelector string
	WaitTimeout  time.Duration

	// MaxConsecutiveFailures stops paged collection after that many listing
	// pages in a row fail to load.
	MaxConsecutiveFailures int

	// Limit caps the number of collected URLs. 0 means no limit.
	Limit int
}

// Result is the outcome of a collection run.
type Result struct {
	// URLs is the collected set, sorted.
	URLs []string

	// Pages is the number of listing pages that yielded anchors.
	Pages int

	// Scrolls is the number of height measurements taken.
	Scrolls int

	// Anchors is the number of matching anchors seen, duplicates included.
	Anchors int

	// Discarded counts anchors outside the site origin.
	Discarded int

	// Failures counts listing pages skipped after a fault.
	Failures int
}

// Collector gathers product URLs through a Listing.
type Collector struct {
	listing  Listing
	opts     Options
	prefix   string
	reporter report.Reporter
	logger   *slog.Logger
}

// New creates a Collector over listing.
func New(listing Listing, opts Options, reporter report.Reporter, logger *slog.Logger) *Collector {
	if opts.MaxConsecutiveFailures < 1 {
		opts.MaxConsecutiveFailures = 3
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if reporter == nil {
		reporter = report.Discard
	}
	return &Collector{
		listing:  listing,
		opts:     opts,
		prefix:   strings.TrimRight(opts.BaseURL, "/") + "/",
		reporter: reporter,
		logger:   logger.With("component", "collector"),
	}
}

// urlSet accumulates unique URLs in discovery order.
type urlSet struct {
	seen  map[string]struct{}
	order []string
	limit int
}

func newURLSet(limit int) *urlSet {
	return &urlSet{seen: make(map[string]struct{}), limit: limit}
}

func (s *urlSet) add(u string) bool {
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.order = append(s.order, u)
	return true
}

func (s *urlSet) full() bool { return s.limit > 0 && len(s.order) >= s.limit }

func (s *urlSet) sorted() []string {
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}

// Scroll loads listingURL and scrolls until two consecutive height readings
// are equal, then collects the product anchors. Only convergence and ctx
// bound the loop.
func (c *Collector) Scroll(ctx context.Context, listingURL string) (*Result, error) {
	res := &Result{}

	if err := c.listing.Navigate(ctx, listingURL); err != nil {
		return res, &types.CollectError{URL: listingURL, Err: err}
	}
	if c.opts.WaitSelector != "" {
		if err := c.listing.WaitForElement(ctx, c.opts.WaitSelector, c.opts.WaitTimeout); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.logger.Warn("product selector did not appear, scrolling anyway", "selector", c.opts.WaitSelector, "error", err)
		}
	}

	last := -1
	for {
		height, err := c.listing.ScrollAndGetHeight(ctx)
		if err != nil {
			return res, &types.CollectError{URL: listingURL, Err: err}
		}
		res.Scrolls++
		c.logger.Debug("scrolled", "height", height, "scrolls", res.Scrolls)
		if height == last {
			break
		}
		last = height
	}

	found, err := c.listing.FindAnchors(ctx, c.opts.AnchorSelector)
	if err != nil {
		return res, &types.CollectError{URL: listingURL, Err: err}
	}

	set := newURLSet(c.opts.Limit)
	added := c.addAnchors(set, found, res)
	if len(found) > 0 {
		res.Pages = 1
	}
	res.URLs = set.sorted()

	c.reporter.Report(report.Event{
		Kind:    report.KindCollected,
		URL:     listingURL,
		Message: "listing scrolled to the end",
		Count:   added,
		Total:   len(res.URLs),
	})
	return res, nil
}

// Paged walks pageURL(1), pageURL(2), ... and stops at the first page with no
// product anchors, or whose product selector never appears. A page that fails
// to load is skipped; MaxConsecutiveFailures failures in a row end the run
// with an error alongside the partial result.
func (c *Collector) Paged(ctx context.Context, pageURL func(page int) string) (*Result, error) {
	res := &Result{}
	set := newURLSet(c.opts.Limit)
	failures := 0

	finish := func(err error) (*Result, error) {
		res.URLs = set.sorted()
		c.reporter.Report(report.Event{
			Kind:    report.KindCollected,
			Message: "listing pages exhausted",
			Count:   res.Pages,
			Total:   len(res.URLs),
		})
		return res, err
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		u := pageURL(page)
		found, err := c.readPage(ctx, u)
		switch {
		case errors.Is(err, types.ErrTimeout), errors.Is(err, types.ErrEmptyListing):
			c.logger.Info("listing exhausted", "page", page, "reason", err)
			return finish(nil)
		case err != nil:
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			failures++
			res.Failures++
			c.reporter.Report(report.Event{
				Kind:    report.KindSkipped,
				URL:     u,
				Message: fmt.Sprintf("listing page %d skipped: %v", page, err),
			})
			if failures >= c.opts.MaxConsecutiveFailures {
				return finish(&types.CollectError{
					Page: page,
					URL:  u,
					Err:  fmt.Errorf("%d consecutive listing failures: %w", failures, err),
				})
			}
			continue
		}

		failures = 0
		res.Pages++
		added := c.addAnchors(set, found, res)
		c.reporter.Report(report.Event{
			Kind:    report.KindPage,
			URL:     u,
			Message: fmt.Sprintf("listing page %d read", page),
			Count:   added,
			Total:   len(set.order),
		})

		if set.full() {
			return finish(nil)
		}
	}
}

// First reads only the first listing page, without scrolling, and keeps
// at most Limit URLs from it. It backs sample runs.
func (c *Collector) First(ctx context.Context, listingURL string) (*Result, error) {
	res := &Result{}
	found, err := c.readPage(ctx, listingURL)
	if err != nil {
		return res, &types.CollectError{Page: 1, URL: listingURL, Err: err}
	}

	set := newURLSet(c.opts.Limit)
	added := c.addAnchors(set, found, res)
	res.Pages = 1
	res.URLs = set.sorted()

	c.reporter.Report(report.Event{
		Kind:    report.KindCollected,
		URL:     listingURL,
		Message: "first listing page read",
		Count:   added,
		Total:   len(res.URLs),
	})
	return res, nil
}

// readPage loads one numbered page and returns its product anchors.
func (c *Collector) readPage(ctx context.Context, u string) ([]types.Anchor, error) {
	if err := c.listing.Navigate(ctx, u); err != nil {
		return nil, err
	}
	if c.opts.WaitSelector != "" {
		if err := c.listing.WaitForElement(ctx, c.opts.WaitSelector, c.opts.WaitTimeout); err != nil {
			return nil, err
		}
	}
	found, err := c.listing.FindAnchors(ctx, c.opts.AnchorSelector)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.ErrEmptyListing
	}
	return found, nil
}

// addAnchors adds the on-site anchors to set and returns how many were new.
func (c *Collector) addAnchors(set *urlSet, found []types.Anchor, res *Result) int {
	added := 0
	for _, a := range found {
		res.Anchors++
		href := strings.TrimSpace(a.Href)
		if !strings.HasPrefix(href, c.prefix) {
			res.Discarded++
			continue
		}
		if set.full() {
			continue
		}
		if set.add(href) {
			added++
		}
	}
	return added
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var errFetcherClosed = errors.New("browser fetcher closed")

// BrowserFetcher implements Driver using a headless browser via Rod. Every
// page is created through go-rod/stealth.
type BrowserFetcher struct {
	browser    *rod.Browser
	cfg        *config.FetcherConfig
	stealthCfg *StealthConfig
	logger     *slog.Logger
	pagePool   chan *rod.Page
	maxPages   int

	poolMu    sync.Mutex
	closed    bool
	closeOnce sync.Once

	listingMu sync.Mutex
	listing   *rod.Page
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithStealth replaces the fingerprint derived from configuration.
func WithStealth(cfg *StealthConfig) BrowserOption {
	return func(bf *BrowserFetcher) { bf.stealthCfg = cfg }
}

// WithMaxPages sets the maximum number of pooled browser pages.
func WithMaxPages(n int) BrowserOption {
	return func(bf *BrowserFetcher) { bf.maxPages = n }
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger, opts ...BrowserOption) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:        &cfg.Fetcher,
		stealthCfg: NewStealthConfig(&cfg.Fetcher),
		logger:     logger.With("component", "browser_fetcher"),
		maxPages:   cfg.Fetcher.MaxPages,
	}

	for _, opt := range opts {
		opt(bf)
	}
	if bf.maxPages < 1 {
		bf.maxPages = 1
	}

	// Launch browser
	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	// Connect to browser
	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, bf.maxPages)

	bf.logger.Info("browser fetcher ready",
		"max_pages", bf.maxPages,
		"headless", bf.cfg.Headless,
		"viewport", bf.stealthCfg.WindowSize(),
	)

	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", bf.stealthCfg.WindowSize()).
		Set("lang", bf.stealthCfg.Language)

	if bf.stealthCfg.UserDataDir != "" {
		l = l.UserDataDir(bf.stealthCfg.UserDataDir)
	}

	return l.Launch()
}

// newPage creates a stealth page with the configured fingerprint.
func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	page, err := stealth.Page(bf.browser)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             bf.stealthCfg.ViewportWidth,
		Height:            bf.stealthCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		bf.logger.Warn("failed to set viewport", "error", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      bf.stealthCfg.UserAgent,
		AcceptLanguage: bf.stealthCfg.Language,
		Platform:       bf.stealthCfg.Platform,
	}); err != nil {
		bf.logger.Warn("failed to set user agent", "error", err)
	}

	if _, err := page.EvalOnNewDocument(bf.stealthCfg.StealthJS()); err != nil {
		bf.logger.Warn("failed to inject fingerprint script", "error", err)
	}

	return page, nil
}

// Fetch navigates a pooled page to rawURL and returns the rendered content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*types.Page, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: !errors.Is(err, errFetcherClosed)}
	}
	defer bf.putPage(page)

	p := page.Context(ctx)
	if err := p.Timeout(bf.cfg.RequestTimeout).Navigate(rawURL); err != nil {
		return nil, bf.navError(rawURL, err)
	}

	// Wait for page load
	if err := p.Timeout(bf.cfg.RequestTimeout).WaitStable(bf.cfg.StableWait); err != nil {
		if ctx.Err() != nil {
			return nil, &types.FetchError{URL: rawURL, Err: ctx.Err()}
		}
		bf.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	// Get final URL (after any redirects)
	finalURL := rawURL
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", rawURL,
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	// Rod does not expose the document status code.
	return types.NewPage(rawURL, finalURL, 200, []byte(html), duration), nil
}

// Navigate loads rawURL into the listing page.
func (bf *BrowserFetcher) Navigate(ctx context.Context, rawURL string) error {
	bf.listingMu.Lock()
	defer bf.listingMu.Unlock()

	page, err := bf.listingPage()
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	p := page.Context(ctx)
	if err := p.Timeout(bf.cfg.RequestTimeout).Navigate(rawURL); err != nil {
		return bf.navError(rawURL, err)
	}
	if err := p.Timeout(bf.cfg.RequestTimeout).WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return &types.FetchError{URL: rawURL, Err: ctx.Err()}
		}
		bf.logger.Warn("listing load timeout, continuing", "url", rawURL, "error", err)
	}
	return nil
}

// ScrollAndGetHeight scrolls the listing page to the bottom, waits the
// settle delay and returns the new document height.
func (bf *BrowserFetcher) ScrollAndGetHeight(ctx context.Context) (int, error) {
	bf.listingMu.Lock()
	defer bf.listingMu.Unlock()

	if bf.listing == nil {
		return 0, types.ErrNoListingPage
	}
	p := bf.listing.Context(ctx)

	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return 0, fmt.Errorf("scroll: %w", err)
	}
	if err := sleepCtx(ctx, bf.cfg.SettleDelay); err != nil {
		return 0, err
	}

	result, err := p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	return result.Value.Int(), nil
}

// FindAnchors returns the links of the listing page matching selector.
func (bf *BrowserFetcher) FindAnchors(ctx context.Context, selector string) ([]types.Anchor, error) {
	bf.listingMu.Lock()
	defer bf.listingMu.Unlock()

	if bf.listing == nil {
		return nil, types.ErrNoListingPage
	}
	p := bf.listing.Context(ctx)

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read listing html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	base := ""
	if info, err := p.Info(); err == nil && info != nil {
		base = info.URL
	}
	return anchors(doc, base, selector), nil
}

// WaitForElement blocks until selector appears on the listing page.
// It returns ErrTimeout when it does not appear within timeout.
func (bf *BrowserFetcher) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	bf.listingMu.Lock()
	defer bf.listingMu.Unlock()

	if bf.listing == nil {
		return types.ErrNoListingPage
	}

	_, err := bf.listing.Context(ctx).Timeout(timeout).Element(selector)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", types.ErrTimeout, selector)
	}
	return err
}

// Close shuts down the browser and releases resources. Calls after the
// first are no-ops.
func (bf *BrowserFetcher) Close() error {
	var err error
	bf.closeOnce.Do(func() {
		bf.poolMu.Lock()
		bf.closed = true
		close(bf.pagePool)
		bf.poolMu.Unlock()

		for page := range bf.pagePool {
			_ = page.Close()
		}
		bf.listingMu.Lock()
		if bf.listing != nil {
			_ = bf.listing.Close()
		}
		bf.listingMu.Unlock()
		if bf.browser != nil {
			err = bf.browser.Close()
		}
	})
	return err
}

func (bf *BrowserFetcher) isClosed() bool {
	bf.poolMu.Lock()
	defer bf.poolMu.Unlock()
	return bf.closed
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

func (bf *BrowserFetcher) navError(rawURL string, err error) error {
	return &types.FetchError{
		URL:       rawURL,
		Err:       err,
		Retryable: !errors.Is(err, context.Canceled),
	}
}

// listingPage returns the dedicated listing page, creating it on first use.
// Callers hold listingMu.
func (bf *BrowserFetcher) listingPage() (*rod.Page, error) {
	if bf.listing != nil {
		return bf.listing, nil
	}
	page, err := bf.newPage()
	if err != nil {
		return nil, err
	}
	bf.listing = page
	return page, nil
}

// getPage retrieves a page from the pool or creates a new one.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	if bf.isClosed() {
		return nil, errFetcherClosed
	}
	select {
	case page, ok := <-bf.pagePool:
		if !ok {
			return nil, errFetcherClosed
		}
		return page, nil
	default:
		return bf.newPage()
	}
}

// putPage returns a page to the pool. After Close the page is left to the
// browser shutdown.
func (bf *BrowserFetcher) putPage(page *rod.Page) {
	if bf.isClosed() {
		return
	}
	// Navigate to blank to free memory from the last page
	_ = page.Navigate("about:blank")

	bf.poolMu.Lock()
	defer bf.poolMu.Unlock()
	if bf.closed {
		return
	}
	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close() // Pool full, close the page
	}
}

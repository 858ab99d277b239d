package fetcher

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/IshaanNene/NutriGoat/internal/config"
)

// StealthConfig configures anti-detection and fingerprint spoofing.
type StealthConfig struct {
	// Viewport dimensions applied to every page.
	ViewportWidth  int
	ViewportHeight int

	// UserAgent overrides the browser user agent.
	UserAgent string

	// UserDataDir for persistent browser profile
	UserDataDir string

	// Language override (e.g., "pt-BR")
	Language string

	// Platform override (e.g., "Win32")
	Platform string

	// Hardware concurrency (number of CPU cores to report)
	HardwareConcurrency int

	// DeviceMemory (GB of RAM to report)
	DeviceMemory int
}

// NewStealthConfig returns a fixed desktop fingerprint sized from cfg.
func NewStealthConfig(cfg *config.FetcherConfig) *StealthConfig {
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &StealthConfig{
		ViewportWidth:       cfg.ViewportWidth,
		ViewportHeight:      cfg.ViewportHeight,
		UserAgent:           ua,
		UserDataDir:         cfg.UserDataDir,
		Language:            "pt-BR",
		Platform:            "Win32",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
	}
}

// WindowSize renders the viewport as a Chromium window-size flag value.
func (sc *StealthConfig) WindowSize() string {
	return fmt.Sprintf("%d,%d", sc.ViewportWidth, sc.ViewportHeight)
}

// StealthJS returns JavaScript injected into every page before any other
// script runs. It complements the go-rod/stealth patches with the locale and
// hardware of the configured fingerprint.
func (sc *StealthConfig) StealthJS() string {
	return fmt.Sprintf(`
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'pt', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
Object.defineProperty(navigator, 'webdriver', { get: () => false });
`, sc.Platform, sc.Language, sc.Language, sc.HardwareConcurrency, sc.DeviceMemory)
}

// browserTransport adds the headers a desktop browser sends on navigation.
type browserTransport struct {
	inner     http.RoundTripper
	userAgent string
	language  string
}

// RoundTrip implements http.RoundTripper.
func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", t.language+",pt;q=0.9,en-US;q=0.8,en;q=0.7")
	}
	if req.Header.Get("Sec-Fetch-Dest") == "" {
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Sec-Fetch-User", "?1")
	}
	if req.Header.Get("Upgrade-Insecure-Requests") == "" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
	return t.inner.RoundTrip(req)
}

// browserTLSConfig mimics the Chrome cipher suite order.
func browserTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}

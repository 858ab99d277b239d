package types

import (
	"bytes"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ProductURL is a discovered product page. Name is only used for progress
// reporting.
type ProductURL struct {
	URL  string
	Name string
}

// Anchor is a link found on a listing page.
type Anchor struct {
	Href string
	Text string
}

// Page is a fetched, rendered document.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after any redirects.
	FinalURL string

	// StatusCode is the HTTP status, 200 for browser fetches.
	StatusCode int

	// HTML is the rendered markup.
	HTML []byte

	// FetchDuration is how long the fetch took.
	FetchDuration time.Duration

	// FetchedAt is when the page was received.
	FetchedAt time.Time

	doc *goquery.Document
}

// NewPage creates a Page from rendered markup.
func NewPage(requestURL, finalURL string, statusCode int, html []byte, duration time.Duration) *Page {
	if finalURL == "" {
		finalURL = requestURL
	}
	return &Page{
		URL:           requestURL,
		FinalURL:      finalURL,
		StatusCode:    statusCode,
		HTML:          html,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// Document returns the parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.HTML))
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}

// IsSuccess returns true if the status is 2xx.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

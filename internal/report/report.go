// Package report defines the event sink the extraction and ingestion core
// writes progress to. Core packages receive a Reporter instead of writing to
// a shared console.
package report

import (
	"log/slog"
	"sync"
)

// Kind classifies an event.
type Kind string

const (
	KindExtracted Kind = "extracted"
	KindSkipped   Kind = "skipped"
	KindFallback  Kind = "fallback"
	KindMerged    Kind = "merged"
	KindProgress  Kind = "progress"
	KindPage      Kind = "page"
	KindCollected Kind = "collected"
)

// Event is one reportable occurrence.
type Event struct {
	Kind    Kind
	URL     string
	Product string
	Message string
	Count   int
	Total   int
}

// Reporter receives events.
type Reporter interface {
	Report(Event)
}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = Func(func(Event) {})

// SlogReporter writes events to a structured logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a reporter backed by logger.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{logger: logger.With("component", "reporter")}
}

func (r *SlogReporter) Report(e Event) {
	attrs := []any{"kind", string(e.Kind)}
	if e.URL != "" {
		attrs = append(attrs, "url", e.URL)
	}
	if e.Product != "" {
		attrs = append(attrs, "product", e.Product)
	}
	if e.Count != 0 || e.Total != 0 {
		attrs = append(attrs, "count", e.Count, "total", e.Total)
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	switch e.Kind {
	case KindSkipped:
		r.logger.Warn(msg, attrs...)
	case KindFallback:
		r.logger.Debug(msg, attrs...)
	default:
		r.logger.Info(msg, attrs...)
	}
}

// Collector keeps every event in memory. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Count returns how many events of kind were recorded.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

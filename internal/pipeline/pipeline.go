// Package pipeline cleans extracted records before they are merged.
package pipeline

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop the record.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline every ingestion run uses.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredNameMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:   mw.Name(),
				Product: current.ProductName,
				Err:     err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "url", rec.SourceURL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every record of batch through the pipeline and returns the
// survivors in order.
func (p *Pipeline) ProcessAll(batch []*types.Record) ([]*types.Record, error) {
	out := make([]*types.Record, 0, len(batch))
	for _, rec := range batch {
		result, err := p.Process(rec)
		if err != nil {
			return nil, err
		}
		if result != nil {
			out = append(out, result)
		}
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware collapses whitespace in the text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.ProductName = normalize.Collapse(rec.ProductName)
	rec.Category = normalize.Collapse(rec.Category)
	rec.SourceURL = strings.TrimSpace(rec.SourceURL)
	return rec, nil
}

// HTMLSanitizeMiddleware strips markup and decodes entities left in the
// product name and category.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.ProductName = html.UnescapeString(m.stripRe.ReplaceAllString(rec.ProductName, ""))
	rec.Category = html.UnescapeString(m.stripRe.ReplaceAllString(rec.Category, ""))
	return rec, nil
}

// RequiredNameMiddleware drops records whose name is empty. The name is the
// dataset identity key.
type RequiredNameMiddleware struct{}

func (m *RequiredNameMiddleware) Name() string { return "required_name" }

func (m *RequiredNameMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if rec.ProductName == "" {
		return nil, nil
	}
	return rec, nil
}

// SchemaMiddleware rejects records carrying nutrients outside Schema.
type SchemaMiddleware struct {
	Schema types.Schema
}

func (m *SchemaMiddleware) Name() string { return "schema" }

func (m *SchemaMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for name := range rec.Nutrients {
		if !m.Schema.Has(name) {
			return nil, fmt.Errorf("unknown nutrient column %q", name)
		}
	}
	return rec, nil
}

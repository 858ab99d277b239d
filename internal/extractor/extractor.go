// Package extractor turns a product page into nutrition records.
//
// The nutrition block is read by an ordered chain of strategies (table rows,
// inline "label: value unit" elements, whole-block text, exact-label xpath).
// Every strategy reports only the nutrients it found; earlier findings are
// never overwritten. Pages listing several flavors under their own headings
// fall back to one record per flavor.
package extractor

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Product is the context a page is extracted under.
type Product struct {
	Name     string
	Category string
	URL      string
}

// Tier tells which pass produced the records.
type Tier int

const (
	// TierNone means no record was produced.
	TierNone Tier = iota
	// TierBlock means the block as a whole yielded data.
	TierBlock
	// TierVariants means per-variant sections yielded data.
	TierVariants
	// TierDefaults means nothing was found and an all-zero record was emitted.
	TierDefaults
)

func (t Tier) String() string {
	switch t {
	case TierBlock:
		return "block"
	case TierVariants:
		return "variants"
	case TierDefaults:
		return "defaults"
	default:
		return "none"
	}
}

// Result is the outcome of extracting one page.
type Result struct {
	Records []*types.Record
	Tier    Tier

	// Reason is set when no record was produced: ErrNoProductName or
	// ErrNoNutritionBlock. It is an outcome, not a failure.
	Reason error
}

var (
	variantHeading = regexp.MustCompile(`(?i)^\s*(?:informa[çc][ãa]o nutricional|nutrition information)\s*[–—-]?\s*(.*)$`)
	portionMarker  = regexp.MustCompile(`porcao(?:\s+de|\s*:)\s*(.{0,24})`)
)

// maxHeadingLen bounds the text of an element treated as a variant heading,
// so a wrapper holding the whole table is never mistaken for one.
const maxHeadingLen = 120

type step struct {
	name string
	run  strategyFunc
}

// Extractor extracts records for one catalog profile. It holds no per-page
// state and is safe for concurrent use.
type Extractor struct {
	profile  Profile
	table    synonymTable
	chain    []step
	reporter report.Reporter
	logger   *slog.Logger
}

// New creates an Extractor for profile.
func New(profile Profile, reporter report.Reporter, logger *slog.Logger) (*Extractor, error) {
	if profile.BlockSelector == "" {
		return nil, fmt.Errorf("profile %q has no block selector", profile.Name)
	}
	if profile.Schema.Len() == 0 {
		profile.Schema = types.BaseSchema()
	}
	if len(profile.Strategies) == 0 {
		return nil, fmt.Errorf("profile %q has no strategies", profile.Name)
	}

	chain := make([]step, 0, len(profile.Strategies))
	for _, name := range profile.Strategies {
		fn, ok := strategies[name]
		if !ok {
			return nil, fmt.Errorf("profile %q: unknown strategy %q", profile.Name, name)
		}
		chain = append(chain, step{name: name, run: fn})
	}

	if reporter == nil {
		reporter = report.Discard
	}

	return &Extractor{
		profile:  profile,
		table:    newSynonymTable(profile.Schema, Definitions),
		chain:    chain,
		reporter: reporter,
		logger:   logger.With("component", "extractor", "profile", profile.Name),
	}, nil
}

// Profile returns the profile the extractor reads pages with.
func (e *Extractor) Profile() Profile { return e.profile }

// Extract reads the product name and category from doc with the profile's
// selectors and extracts the page.
func (e *Extractor) Extract(doc *goquery.Document, sourceURL string) Result {
	return e.ExtractProduct(doc, Product{
		Name:     normalize.Collapse(doc.Find(e.profile.NameSelector).First().Text()),
		Category: e.category(doc),
		URL:      sourceURL,
	})
}

func (e *Extractor) category(doc *goquery.Document) string {
	if e.profile.CategorySelector == "" {
		return ""
	}
	matches := doc.Find(e.profile.CategorySelector)
	idx := e.profile.CategoryIndex
	if idx < 0 {
		idx += matches.Length()
	}
	if idx < 0 || idx >= matches.Length() {
		return ""
	}
	return normalize.Collapse(matches.Eq(idx).Text())
}

// ExtractProduct extracts the page under an explicit product context.
func (e *Extractor) ExtractProduct(doc *goquery.Document, p Product) Result {
	p.Name = normalize.Collapse(p.Name)
	if p.Name == "" {
		return e.skip(p, types.ErrNoProductName)
	}

	block := doc.Find(e.profile.BlockSelector).First()
	if block.Length() == 0 {
		return e.skip(p, types.ErrNoNutritionBlock)
	}

	base, variants := partition(block)
	blockText := spacedText(block)

	if values := e.runChain(base); len(values) > 0 {
		rec := e.record(p.Name, p.URL, p.Category, values, portionOf(blockText))
		e.extracted(rec)
		return Result{Records: []*types.Record{rec}, Tier: TierBlock}
	}

	if len(variants) > 0 {
		e.reporter.Report(report.Event{
			Kind:    report.KindFallback,
			URL:     p.URL,
			Product: p.Name,
			Message: "no data outside variant sections, reading variants",
			Count:   len(variants),
		})

		var records []*types.Record
		for _, v := range variants {
			values := e.runChain(v)
			if len(values) == 0 {
				continue
			}
			rec := e.record(p.Name+" - "+v.variant, variantURL(p.URL, v.variant), p.Category, values, portionOf(v.text()))
			e.extracted(rec)
			records = append(records, rec)
		}
		if len(records) > 0 {
			return Result{Records: records, Tier: TierVariants}
		}
	}

	e.reporter.Report(report.Event{
		Kind:    report.KindFallback,
		URL:     p.URL,
		Product: p.Name,
		Message: "no nutrient found, emitting defaults",
	})
	rec := e.record(p.Name, p.URL, p.Category, nil, portionOf(blockText))
	e.extracted(rec)
	return Result{Records: []*types.Record{rec}, Tier: TierDefaults}
}

// runChain folds the strategy partials; the first strategy to find a
// nutrient owns it.
func (e *Extractor) runChain(sec section) found {
	acc := make(found, len(e.table))
	for _, s := range e.chain {
		partial := s.run(sec, e.table)
		added := 0
		for col, v := range partial {
			if _, ok := acc[col]; ok {
				continue
			}
			acc[col] = v
			added++
		}
		e.logger.Debug("strategy finished", "strategy", s.name, "variant", sec.variant, "found", len(partial), "added", added)
		if len(acc) == len(e.table) {
			break
		}
	}
	return acc
}

func (e *Extractor) record(name, sourceURL, category string, values found, portion float64) *types.Record {
	rec := types.NewRecord(e.profile.Schema, name, sourceURL, category)
	for col, v := range values {
		rec.Set(col, v)
	}
	rec.PortionGrams = portion
	return rec
}

func (e *Extractor) extracted(rec *types.Record) {
	e.reporter.Report(report.Event{
		Kind:    report.KindExtracted,
		URL:     rec.SourceURL,
		Product: rec.ProductName,
		Message: "record extracted",
	})
}

func (e *Extractor) skip(p Product, reason error) Result {
	e.reporter.Report(report.Event{
		Kind:    report.KindSkipped,
		URL:     p.URL,
		Product: p.Name,
		Message: reason.Error(),
	})
	return Result{Tier: TierNone, Reason: reason}
}

// partition splits the block's direct children at named variant headings.
// Content before the first heading, and after an unnamed heading, belongs to
// the base section. Headings nested in a lone wrapper element are found by
// descending into it. With fewer than two named headings the base is the
// block itself.
func partition(block *goquery.Selection) (section, []section) {
	contents := variantRoot(block).Contents()
	owner := make([]int, contents.Length()) // -1 base, else index into variants
	var variants []section
	current := -1

	contents.Each(func(i int, child *goquery.Selection) {
		if name, ok := headingVariant(child); ok {
			if name == "" {
				current = -1
			} else {
				variants = append(variants, section{variant: name})
				current = len(variants) - 1
			}
		}
		owner[i] = current
	})

	if len(variants) < 2 {
		return section{nodes: block}, nil
	}

	for vi := range variants {
		variants[vi].nodes = contents.FilterFunction(func(i int, _ *goquery.Selection) bool {
			return owner[i] == vi
		})
	}
	base := section{nodes: contents.FilterFunction(func(i int, _ *goquery.Selection) bool {
		return owner[i] == -1
	})}
	return base, variants
}

// variantRoot descends through wrappers that are the only element child of
// their parent (ignoring blank text) until the children carry a heading.
func variantRoot(sel *goquery.Selection) *goquery.Selection {
	for {
		contents := sel.Contents()
		var wrapper *goquery.Selection
		lone := true
		contents.EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if _, ok := headingVariant(child); ok {
				lone = false
				return false
			}
			switch child.Nodes[0].Type {
			case html.ElementNode:
				if wrapper != nil || goquery.NodeName(child) == "table" {
					lone = false
					return false
				}
				wrapper = child
			case html.TextNode:
				if strings.TrimSpace(child.Text()) != "" {
					lone = false
					return false
				}
			}
			return true
		})
		if !lone || wrapper == nil {
			return sel
		}
		sel = wrapper
	}
}

// headingVariant reports whether node is a nutrition heading and returns the
// variant it names, which may be empty.
func headingVariant(node *goquery.Selection) (string, bool) {
	if len(node.Nodes) == 0 || node.Nodes[0].Type != html.ElementNode {
		return "", false
	}
	if goquery.NodeName(node) == "table" || node.Find("table").Length() > 0 {
		return "", false
	}
	text := normalize.Collapse(node.Text())
	if text == "" || len(text) > maxHeadingLen {
		return "", false
	}
	m := variantHeading.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(m[1]), "–—-: "), true
}

// variantURL appends sabor=<slug> to the product URL.
func variantURL(sourceURL, variant string) string {
	sep := "?"
	if strings.Contains(sourceURL, "?") {
		sep = "&"
	}
	return sourceURL + sep + "sabor=" + url.QueryEscape(variantSlug(variant))
}

// variantSlug lower-cases and hyphenates a variant name.
func variantSlug(variant string) string {
	slug := strings.ToLower(strings.TrimSpace(variant))
	slug = strings.NewReplacer(" ", "-", "–", "-", "—", "-").Replace(slug)
	return slug
}

// portionOf reads the serving size announced by "Porção de 30 g" or
// "Porção: 30 g".
func portionOf(text string) float64 {
	m := portionMarker.FindStringSubmatch(normalize.Fold(text))
	if m == nil {
		return 0
	}
	return normalize.Portion(m[1])
}

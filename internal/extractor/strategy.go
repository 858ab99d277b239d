package extractor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/NutriGoat/internal/normalize"
)

// section is a slice of the nutrition block the strategies run over. variant
// is empty for the block content outside any variant heading.
type section struct {
	variant string
	nodes   *goquery.Selection
}

// find matches selector against the section's top-level nodes and their
// descendants.
func (s section) find(selector string) *goquery.Selection {
	return s.nodes.Filter(selector).AddSelection(s.nodes.Find(selector))
}

func (s section) text() string { return spacedText(s.nodes) }

// found is a partial record: the nutrients a strategy located, by column.
// Presence matters, a found 0 is still found.
type found map[string]float64

// strategyFunc inspects one section and reports the nutrients it could read.
type strategyFunc func(sec section, table synonymTable) found

var strategies = map[string]strategyFunc{
	StrategyTable:  tableStrategy,
	StrategyInline: inlineStrategy,
	StrategyText:   textStrategy,
	StrategyXPath:  xpathStrategy,
}

// tableStrategy reads (label, value) rows. The first row per nutrient wins.
func tableStrategy(sec section, table synonymTable) found {
	out := make(found)
	sec.find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td, th")
		if cells.Length() < 2 {
			return
		}
		n, ok := table.match(cells.Eq(0).Text())
		if !ok {
			return
		}
		if _, done := out[n.Column]; done {
			return
		}
		if v, ok := cellValue(cells.Eq(1).Text()); ok {
			out[n.Column] = v
		}
	})
	return out
}

// inlineStrategy searches each text-bearing element for "label: 12 g".
func inlineStrategy(sec section, table synonymTable) found {
	out := make(found)
	sec.find("p, strong, span, div, li").Each(func(_ int, el *goquery.Selection) {
		if len(out) == len(table) {
			return
		}
		matchPatterns(normalize.Fold(spacedText(el)), table, out)
	})
	return out
}

// textStrategy runs the inline patterns over the whole section text.
func textStrategy(sec section, table synonymTable) found {
	out := make(found)
	matchPatterns(normalize.Fold(sec.text()), table, out)
	return out
}

// xpathStrategy looks table rows up by their exact, unit-qualified label.
func xpathStrategy(sec section, table synonymTable) found {
	out := make(found)
	for _, root := range sec.nodes.Nodes {
		if root.Type != html.ElementNode {
			continue
		}
		for _, n := range table {
			if _, done := out[n.Column]; done {
				continue
			}
			for _, label := range n.ExactLabels {
				if v, ok := exactLabelValue(root, label); ok {
					out[n.Column] = v
					break
				}
			}
		}
	}
	return out
}

func exactLabelValue(root *html.Node, label string) (float64, bool) {
	if strings.Contains(label, "'") {
		return 0, false
	}
	expr := fmt.Sprintf(".//tbody/tr[td[1][normalize-space()='%s']]/td[2]", label)
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil || len(nodes) == 0 {
		return 0, false
	}
	return cellValue(htmlquery.InnerText(nodes[0]))
}

// matchPatterns fills out with the first pattern hit per nutrient in text.
func matchPatterns(text string, table synonymTable, out found) {
	for _, n := range table {
		if n.pattern == nil {
			continue
		}
		if _, done := out[n.Column]; done {
			continue
		}
		m := n.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		out[n.Column] = normalize.Number(normalize.StripUnitOnly(m[1]+string(n.Unit), string(n.Unit)))
	}
}

// cellValue reads the first number of a value cell. Cells without digits
// ("Traços", "**") are not a reading.
func cellValue(text string) (float64, bool) {
	if !strings.ContainsFunc(text, unicode.IsDigit) {
		return 0, false
	}
	return normalize.FirstNumber(text), true
}

// spacedText concatenates the text nodes under sel, separated by spaces, so
// adjacent cells do not run together.
func spacedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

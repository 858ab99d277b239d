// Package normalize converts locale-formatted text fragments found on product
// pages into canonical numeric values.
//
// Pages use the Brazilian convention: comma is the decimal separator
// ("12,5 g"). Every function is pure and returns 0 rather than failing.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonNumeric  = regexp.MustCompile(`[^\d,.]`)
	firstNumber = regexp.MustCompile(`\d+[.,]?\d*`)
	gramPortion = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:gramas?|gr|g)\b`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Number strips everything but digits, commas and periods, reads comma as
// the decimal separator and parses the rest. Empty or unparseable input
// yields 0.
func Number(text string) float64 {
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(text, ",", "."), "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FirstNumber returns the first numeric token of text, normalized by Number.
func FirstNumber(text string) float64 {
	tok := firstNumber.FindString(text)
	if tok == "" {
		return 0
	}
	return Number(tok)
}

// Portion returns the first number followed by a gram marker, or 0.
func Portion(text string) float64 {
	m := gramPortion.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return Number(m[1])
}

// StripUnitOnly collapses a captured value that holds no digits (a bare unit
// such as "g" or "kcal", a lone separator, or nothing) to "0".
func StripUnitOnly(value, unit string) string {
	compact := strings.Join(strings.Fields(value), "")
	compact = strings.TrimSuffix(compact, unit)
	compact = strings.Trim(compact, ",.")
	if compact == "" || !strings.ContainsFunc(compact, unicode.IsDigit) {
		return "0"
	}
	return value
}

// Fold lower-cases text, removes diacritics and collapses whitespace so that
// "Proteínas", "PROTEINAS" and " proteinas " compare equal.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	return strings.TrimSpace(spaces.ReplaceAllString(folded, " "))
}

// Collapse trims text and reduces every whitespace run to one space.
func Collapse(text string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}

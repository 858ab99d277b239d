package extractor

import (
	"fmt"
	"sort"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Profile describes how one catalog lays out its product pages.
type Profile struct {
	// Name identifies the profile in configuration.
	Name string

	// BlockSelector locates the nutritional information container.
	BlockSelector string

	// NameSelector locates the product name.
	NameSelector string

	// CategorySelector locates the category element(s).
	CategorySelector string

	// CategoryIndex picks one of the matched category elements. Negative
	// values count from the end (-2 is the second-to-last breadcrumb item).
	CategoryIndex int

	// Strategies is the ordered strategy chain.
	Strategies []string

	// Schema is the nutrient column set records carry.
	Schema types.Schema
}

// Built-in strategy names.
const (
	StrategyTable  = "table"
	StrategyInline = "inline"
	StrategyText   = "text"
	StrategyXPath  = "xpath"
)

var profiles = map[string]Profile{
	"corpoevida": {
		Name:             "corpoevida",
		BlockSelector:    "div#informacoes.bloco_texto",
		NameSelector:     "h1[itemprop=name]",
		CategorySelector: "[itemprop=category]",
		Strategies:       []string{StrategyTable, StrategyInline, StrategyText},
		Schema:           types.BaseSchema(),
	},
	"puravida": {
		Name:             "puravida",
		BlockSelector:    "div.tabela_nutricional",
		NameSelector:     "h1.product-name",
		CategorySelector: "nav.breadcrumb li",
		CategoryIndex:    -2,
		Strategies:       []string{StrategyXPath, StrategyTable, StrategyInline, StrategyText},
		Schema:           types.ExtendedSchema(),
	},
}

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "corpoevida"

// LookupProfile returns a built-in profile by name.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown extractor profile %q (available: %v)", name, ProfileNames())
	}
	p.Strategies = append([]string(nil), p.Strategies...)
	p.Schema = types.Schema{Columns: append([]types.Column(nil), p.Schema.Columns...)}
	return p, nil
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

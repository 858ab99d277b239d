package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/extractor"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// DefaultProfile is the site profile used when none is configured.
const DefaultProfile = extractor.DefaultProfile

// PagePlaceholder is replaced by the 1-based page index in
// collector.page_url_template.
const PagePlaceholder = "{page}"

// siteDefaults holds the collection settings of a catalog. Extraction
// settings come from the extractor profile of the same name.
type siteDefaults struct {
	baseURL         string
	strategy        string
	listingURL      string
	pageURLTemplate string
	anchorSelector  string
	waitSelector    string
}

var sites = map[string]siteDefaults{
	"corpoevida": {
		baseURL:         "https://www.corpoevidasuplementos.com.br",
		strategy:        "paged",
		pageURLTemplate: "https://www.corpoevidasuplementos.com.br/advanced_search_result.php?keywords=Pura%20Vida&page={page}",
		anchorSelector:  "a.produto",
		waitSelector:    "a.produto",
	},
	"puravida": {
		baseURL:        "https://www.puravida.com.br",
		strategy:       "scroll",
		listingURL:     "https://www.puravida.com.br/todos",
		anchorSelector: "a.spot-product-info",
		waitSelector:   ".spot-product-info",
	},
}

// ApplyProfile overwrites the site, collector and extractor sections of cfg
// with a built-in profile.
func ApplyProfile(cfg *Config, name string) error {
	if name == "" {
		name = DefaultProfile
	}
	site, ok := sites[name]
	if !ok {
		return fmt.Errorf("unknown site profile %q (available: %s)", name, strings.Join(extractor.ProfileNames(), ", "))
	}
	ext, err := extractor.LookupProfile(name)
	if err != nil {
		return err
	}

	cfg.Site.Profile = name
	cfg.Site.BaseURL = site.baseURL

	cfg.Collector.Strategy = site.strategy
	cfg.Collector.ListingURL = site.listingURL
	cfg.Collector.PageURLTemplate = site.pageURLTemplate
	cfg.Collector.AnchorSelector = site.anchorSelector
	cfg.Collector.WaitSelector = site.waitSelector

	cfg.Extractor.BlockSelector = ext.BlockSelector
	cfg.Extractor.NameSelector = ext.NameSelector
	cfg.Extractor.CategorySelector = ext.CategorySelector
	cfg.Extractor.CategoryIndex = ext.CategoryIndex
	cfg.Extractor.Strategies = ext.Strategies
	cfg.Extractor.Schema = schemaName(ext.Schema)
	return nil
}

// ExtractorProfile builds the extractor profile described by cfg.
func (c *Config) ExtractorProfile() (extractor.Profile, error) {
	schema, ok := types.SchemaByName(c.Extractor.Schema)
	if !ok {
		return extractor.Profile{}, fmt.Errorf("unknown schema %q", c.Extractor.Schema)
	}
	return extractor.Profile{
		Name:             c.Site.Profile,
		BlockSelector:    c.Extractor.BlockSelector,
		NameSelector:     c.Extractor.NameSelector,
		CategorySelector: c.Extractor.CategorySelector,
		CategoryIndex:    c.Extractor.CategoryIndex,
		Strategies:       append([]string(nil), c.Extractor.Strategies...),
		Schema:           schema,
	}, nil
}

// PageURL renders the listing URL of a 1-based page index.
func (c *Config) PageURL(page int) string {
	return strings.ReplaceAll(c.Collector.PageURLTemplate, PagePlaceholder, fmt.Sprint(page))
}

// FirstListingURL returns the first listing page for either strategy.
func (c *Config) FirstListingURL() string {
	if c.Collector.Strategy == "paged" {
		return c.PageURL(1)
	}
	return c.Collector.ListingURL
}

func schemaName(s types.Schema) string {
	if slices.Equal(s.Names(), types.ExtendedSchema().Names()) {
		return "extended"
	}
	return "base"
}

package types

import (
	"encoding/json"
	"strconv"
)

// Record is one row of nutritional facts for a product (or product variant).
type Record struct {
	// ProductName is the display name, variant-qualified when the page
	// describes several flavors. It is the record's identity key.
	ProductName string

	// SourceURL is the page the record was extracted from.
	SourceURL string

	// Category is the catalog category, possibly empty.
	Category string

	// PortionGrams is the serving size in grams, 0 when unknown.
	PortionGrams float64

	// Nutrients maps column name to value. Every column of the record's
	// schema is present.
	Nutrients map[string]float64

	schema Schema
}

// NewRecord creates a record with every schema column set to 0.
func NewRecord(schema Schema, name, sourceURL, category string) *Record {
	r := &Record{
		ProductName: name,
		SourceURL:   sourceURL,
		Category:    category,
		Nutrients:   make(map[string]float64, schema.Len()),
		schema:      schema,
	}
	for _, c := range schema.Columns {
		r.Nutrients[c.Name] = 0
	}
	return r
}

// Key returns the identity key used for deduplication.
func (r *Record) Key() string { return r.ProductName }

// Schema returns the columns the record was built with.
func (r *Record) Schema() Schema { return r.schema }

// Get returns a nutrient value, 0 when absent.
func (r *Record) Get(name string) float64 { return r.Nutrients[name] }

// Set assigns a nutrient value. Negative values are clamped to 0.
func (r *Record) Set(name string, v float64) {
	if r.Nutrients == nil {
		r.Nutrients = make(map[string]float64)
	}
	if v < 0 {
		v = 0
	}
	r.Nutrients[name] = v
}

// Conform fills every column of schema missing from the record with 0 and
// adopts schema as the record's column order.
func (r *Record) Conform(schema Schema) {
	if r.Nutrients == nil {
		r.Nutrients = make(map[string]float64, schema.Len())
	}
	for _, c := range schema.Columns {
		if _, ok := r.Nutrients[c.Name]; !ok {
			r.Nutrients[c.Name] = 0
		}
	}
	r.schema = schema
}

// Row renders the record as a header-ordered row of strings.
func (r *Record) Row(schema Schema) []string {
	row := []string{r.ProductName, r.SourceURL, r.Category, FormatNumber(r.PortionGrams)}
	for _, c := range schema.Columns {
		row = append(row, FormatNumber(r.Nutrients[c.Name]))
	}
	return row
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	clone.Nutrients = make(map[string]float64, len(r.Nutrients))
	for k, v := range r.Nutrients {
		clone.Nutrients[k] = v
	}
	clone.schema = Schema{Columns: append([]Column(nil), r.schema.Columns...)}
	return &clone
}

// MarshalJSON renders the record with its columns flattened.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Nutrients)+4)
	out[ColumnProductName] = r.ProductName
	out[ColumnSourceURL] = r.SourceURL
	out[ColumnCategory] = r.Category
	out[ColumnPortionGrams] = r.PortionGrams
	for k, v := range r.Nutrients {
		out[k] = v
	}
	return json.Marshal(out)
}

// FormatNumber renders a value with the shortest exact representation.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

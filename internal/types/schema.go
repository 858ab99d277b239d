package types

// Unit is the implicit unit of a nutrient column.
type Unit string

const (
	UnitKcal Unit = "kcal"
	UnitGram Unit = "g"
	UnitMg   Unit = "mg"
)

// Base nutrient column names, in output order.
const (
	Calories      = "calories"
	Carbohydrates = "carbohydrates"
	Protein       = "protein"
	TotalFat      = "total_fat"
	SaturatedFat  = "saturated_fat"
	Fiber         = "fiber"
	Sugar         = "sugar"
	Sodium        = "sodium"
)

// Extended catalog nutrient column names.
const (
	TransFat                 = "trans_fat"
	TotalSugars              = "total_sugars"
	AddedSugars              = "added_sugars"
	HyaluronicAcid           = "hyaluronic_acid"
	MSM                      = "msm"
	CoenzymeQ10              = "coenzyme_q10"
	ChickenCollagen          = "chicken_collagen"
	UndenaturedType2Collagen = "undenatured_type2_collagen"
)

// Fixed leading columns of every dataset header.
const (
	ColumnProductName  = "product_name"
	ColumnSourceURL    = "source_url"
	ColumnCategory     = "category"
	ColumnPortionGrams = "portion_grams"
)

// Column describes one nutrient column.
type Column struct {
	Name string `json:"name"`
	Unit Unit   `json:"unit"`
}

// Schema is the ordered set of nutrient columns a record carries.
// It is open: catalogs append columns without disturbing existing ones.
type Schema struct {
	Columns []Column
}

// BaseSchema returns the nutrient columns shared by every catalog.
func BaseSchema() Schema {
	return Schema{Columns: []Column{
		{Calories, UnitKcal},
		{Carbohydrates, UnitGram},
		{Protein, UnitGram},
		{TotalFat, UnitGram},
		{SaturatedFat, UnitGram},
		{Fiber, UnitGram},
		{Sugar, UnitGram},
		{Sodium, UnitMg},
	}}
}

// ExtendedSchema returns the base columns followed by the specialty columns
// used by supplement catalogs.
func ExtendedSchema() Schema {
	s := BaseSchema()
	s.Columns = append(s.Columns,
		Column{TransFat, UnitGram},
		Column{TotalSugars, UnitGram},
		Column{AddedSugars, UnitGram},
		Column{HyaluronicAcid, UnitMg},
		Column{MSM, UnitMg},
		Column{CoenzymeQ10, UnitMg},
		Column{ChickenCollagen, UnitMg},
		Column{UndenaturedType2Collagen, UnitMg},
	)
	return s
}

// SchemaByName resolves a schema name from configuration.
func SchemaByName(name string) (Schema, bool) {
	switch name {
	case "", "base":
		return BaseSchema(), true
	case "extended":
		return ExtendedSchema(), true
	default:
		return Schema{}, false
	}
}

// Names returns the nutrient column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the schema carries the named column.
func (s Schema) Has(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Len returns the number of nutrient columns.
func (s Schema) Len() int { return len(s.Columns) }

// Union returns s followed by the columns of other that s lacks.
func (s Schema) Union(other Schema) Schema {
	out := Schema{Columns: append([]Column(nil), s.Columns...)}
	for _, c := range other.Columns {
		if !out.Has(c.Name) {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// Header returns the full dataset header row.
func (s Schema) Header() []string {
	header := []string{ColumnProductName, ColumnSourceURL, ColumnCategory, ColumnPortionGrams}
	return append(header, s.Names()...)
}

// IsFixedColumn reports whether name is one of the leading non-nutrient columns.
func IsFixedColumn(name string) bool {
	switch name {
	case ColumnProductName, ColumnSourceURL, ColumnCategory, ColumnPortionGrams:
		return true
	}
	return false
}

// KnownColumn returns the definition of a built-in nutrient column.
func KnownColumn(name string) (Column, bool) {
	for _, c := range ExtendedSchema().Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/IshaanNene/NutriGoat/internal/normalize"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Definition maps one nutrient column to the labels that announce it.
type Definition struct {
	// Column is the record column the nutrient is written to.
	Column string

	// Unit is the unit suffix expected after the value in free text.
	Unit types.Unit

	// Synonyms are folded label fragments; a label matches when it contains
	// one of them.
	Synonyms []string

	// Excludes are folded fragments that disqualify a label, e.g. "saturad"
	// keeps "gorduras saturadas" away from total fat.
	Excludes []string

	// ExactLabels are verbatim table labels used by the xpath strategy.
	ExactLabels []string
}

// Definitions is the synonym table for every known nutrient column.
var Definitions = []Definition{
	{
		Column:      types.Calories,
		Unit:        types.UnitKcal,
		Synonyms:    []string{"valor energetico", "valor calorico", "calorias", "energia"},
		ExactLabels: []string{"Valor energético (kcal)"},
	},
	{
		Column:   types.Carbohydrates,
		Unit:     types.UnitGram,
		Synonyms: []string{"carboidratos", "carboidrato"},
		ExactLabels: []string{
			"Carboidratos (g)",
		},
	},
	{
		Column:      types.Protein,
		Unit:        types.UnitGram,
		Synonyms:    []string{"proteinas", "proteina"},
		ExactLabels: []string{"Proteínas (g)"},
	},
	{
		Column:      types.TotalFat,
		Unit:        types.UnitGram,
		Synonyms:    []string{"gorduras totais", "gordura total", "gorduras", "gordura"},
		Excludes:    []string{"saturad", "trans", "insaturad"},
		ExactLabels: []string{"Gorduras totais (g)"},
	},
	{
		Column:      types.SaturatedFat,
		Unit:        types.UnitGram,
		Synonyms:    []string{"gorduras saturadas", "gordura saturada"},
		ExactLabels: []string{"Gorduras saturadas (g)"},
	},
	{
		Column:      types.TransFat,
		Unit:        types.UnitGram,
		Synonyms:    []string{"gorduras trans", "gordura trans"},
		ExactLabels: []string{"Gorduras trans (g)"},
	},
	{
		Column:      types.Fiber,
		Unit:        types.UnitGram,
		Synonyms:    []string{"fibra alimentar", "fibras alimentares", "fibras", "fibra"},
		ExactLabels: []string{"Fibras alimentares (g)", "Fibra alimentar (g)"},
	},
	{
		Column:   types.Sugar,
		Unit:     types.UnitGram,
		Synonyms: []string{"acucares", "acucar"},
		Excludes: []string{"adicionad", "alcool"},
	},
	{
		Column:      types.TotalSugars,
		Unit:        types.UnitGram,
		Synonyms:    []string{"acucares totais", "acucar total"},
		ExactLabels: []string{"Açúcares totais (g)"},
	},
	{
		Column:      types.AddedSugars,
		Unit:        types.UnitGram,
		Synonyms:    []string{"acucares adicionados", "acucar adicionado"},
		ExactLabels: []string{"Açúcares adicionados (g)"},
	},
	{
		Column:      types.Sodium,
		Unit:        types.UnitMg,
		Synonyms:    []string{"sodio"},
		ExactLabels: []string{"Sódio (mg)"},
	},
	{
		Column:      types.HyaluronicAcid,
		Unit:        types.UnitMg,
		Synonyms:    []string{"acido hialuronico"},
		ExactLabels: []string{"Ácido hialurônico (mg)"},
	},
	{
		Column:      types.MSM,
		Unit:        types.UnitMg,
		Synonyms:    []string{"metilsulfonilmetano", "msm"},
		ExactLabels: []string{"Metilsulfonilmetano (mg)"},
	},
	{
		Column:      types.CoenzymeQ10,
		Unit:        types.UnitMg,
		Synonyms:    []string{"coenzima q10", "coq10"},
		ExactLabels: []string{"Coenzima Q10 (mg)"},
	},
	{
		Column:      types.ChickenCollagen,
		Unit:        types.UnitMg,
		Synonyms:    []string{"colageno de frango"},
		ExactLabels: []string{"Colágeno de frango com colágeno tipo II não desnaturado (mg)"},
	},
	{
		Column:      types.UndenaturedType2Collagen,
		Unit:        types.UnitMg,
		Synonyms:    []string{"colageno tipo ii nao desnaturado"},
		Excludes:    []string{"colageno de frango"},
		ExactLabels: []string{"Colágeno tipo II não desnaturado (mg)"},
	},
}

// nutrient is a Definition bound to a schema, with its free-text pattern
// compiled.
type nutrient struct {
	Definition
	pattern *regexp.Regexp
}

// synonymTable is the set of nutrients a profile's schema can hold.
type synonymTable []nutrient

// newSynonymTable keeps the definitions whose column is in schema, in schema
// order. Schema columns without a definition are carried with no synonyms so
// they still default to 0.
func newSynonymTable(schema types.Schema, defs []Definition) synonymTable {
	byColumn := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byColumn[d.Column] = d
	}

	table := make(synonymTable, 0, schema.Len())
	for _, c := range schema.Columns {
		d, ok := byColumn[c.Name]
		if !ok {
			continue
		}
		if d.Unit == "" {
			d.Unit = c.Unit
		}
		table = append(table, nutrient{Definition: d, pattern: inlinePattern(d)})
	}
	return table
}

// inlinePattern builds `(?:syn|...)[:\s]*(<number>)\s*<unit>` over folded text,
// longest synonym first.
func inlinePattern(d Definition) *regexp.Regexp {
	if len(d.Synonyms) == 0 {
		return nil
	}
	syns := append([]string(nil), d.Synonyms...)
	sort.SliceStable(syns, func(i, j int) bool { return len(syns[i]) > len(syns[j]) })
	quoted := make([]string, len(syns))
	for i, s := range syns {
		quoted[i] = regexp.QuoteMeta(s)
	}
	expr := `(?:` + strings.Join(quoted, "|") + `)[:\s]*(\d+[.,]?\d*)\s*` + regexp.QuoteMeta(string(d.Unit))
	return regexp.MustCompile(expr)
}

// match returns the nutrient whose longest synonym is contained in the raw
// table label. Labels carrying an excluded fragment never match that nutrient.
func (t synonymTable) match(label string) (nutrient, bool) {
	folded := normalize.Fold(label)
	var best nutrient
	bestLen := 0
	for _, n := range t {
		if containsAny(folded, n.Excludes) {
			continue
		}
		for _, syn := range n.Synonyms {
			if len(syn) > bestLen && strings.Contains(folded, syn) {
				best, bestLen = n, len(syn)
			}
		}
	}
	return best, bestLen > 0
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

package extractor

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NutriGoat/internal/report"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func newExtractor(t *testing.T, profile string, r report.Reporter) *Extractor {
	t.Helper()
	p, err := LookupProfile(profile)
	if err != nil {
		t.Fatalf("LookupProfile(%q): %v", profile, err)
	}
	ext, err := New(p, r, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ext
}

const tablePage = `<html><body>
<h1 itemprop="name">Pasta de Amendoim Integral</h1>
<div itemprop="category">Pastas</div>
<div id="informacoes" class="bloco_texto">
  <p>Porção de 30 g (2 colheres de sopa)</p>
  <table>
    <tr><th>Quantidade por porção</th><th>%VD</th></tr>
    <tr><td>Valor energético</td><td>250 kcal = 1046 kJ</td></tr>
    <tr><td>Carboidratos</td><td>12,5 g</td></tr>
    <tr><td>Proteínas</td><td>8 g</td></tr>
    <tr><td>Gorduras totais</td><td>15 g</td></tr>
    <tr><td>Gorduras saturadas</td><td>3,2 g</td></tr>
    <tr><td>Fibra alimentar</td><td>2 g</td></tr>
    <tr><td>Sódio</td><td>45 mg</td></tr>
  </table>
</div>
</body></html>`

func TestExtractTable(t *testing.T) {
	ext := newExtractor(t, "corpoevida", nil)
	res := ext.Extract(parse(t, tablePage), "https://shop.example/pasta")

	if res.Reason != nil {
		t.Fatalf("unexpected reason: %v", res.Reason)
	}
	if res.Tier != TierBlock {
		t.Errorf("tier = %s, want block", res.Tier)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}

	rec := res.Records[0]
	if rec.ProductName != "Pasta de Amendoim Integral" {
		t.Errorf("name = %q", rec.ProductName)
	}
	if rec.Category != "Pastas" {
		t.Errorf("category = %q", rec.Category)
	}
	if rec.SourceURL != "https://shop.example/pasta" {
		t.Errorf("source url = %q", rec.SourceURL)
	}
	if rec.PortionGrams != 30 {
		t.Errorf("portion = %v, want 30", rec.PortionGrams)
	}

	want := map[string]float64{
		types.Calories:      250,
		types.Carbohydrates: 12.5,
		types.Protein:       8,
		types.TotalFat:      15,
		types.SaturatedFat:  3.2,
		types.Fiber:         2,
		types.Sugar:         0,
		types.Sodium:        45,
	}
	for col, v := range want {
		if got := rec.Get(col); got != v {
			t.Errorf("%s = %v, want %v", col, got, v)
		}
	}
	if len(rec.Nutrients) != types.BaseSchema().Len() {
		t.Errorf("record has %d nutrients, want %d", len(rec.Nutrients), types.BaseSchema().Len())
	}
}

func TestExtractVariants(t *testing.T) {
	page := `<html><body>
<h1 itemprop="name">Whey Protein</h1>
<div id="informacoes" class="bloco_texto">
  <h3>INFORMAÇÃO NUTRICIONAL – Sabor Chocolate</h3>
  <p>Porção de 30 g</p>
  <table><tr><td>Proteínas</td><td>20 g</td></tr><tr><td>Carboidratos</td><td>4 g</td></tr></table>
  <h3>INFORMAÇÃO NUTRICIONAL – Sabor Morango</h3>
  <p>Porção de 32 g</p>
  <table><tr><td>Proteínas</td><td>18 g</td></tr></table>
</div>
</body></html>`

	collector := &report.Collector{}
	ext := newExtractor(t, "corpoevida", collector)
	res := ext.Extract(parse(t, page), "https://shop.example/whey")

	if res.Tier != TierVariants {
		t.Fatalf("tier = %s, want variants", res.Tier)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}

	tests := []struct {
		name    string
		url     string
		protein float64
		portion float64
	}{
		{"Whey Protein - Sabor Chocolate", "https://shop.example/whey?sabor=sabor-chocolate", 20, 30},
		{"Whey Protein - Sabor Morango", "https://shop.example/whey?sabor=sabor-morango", 18, 32},
	}
	for i, tt := range tests {
		rec := res.Records[i]
		if rec.ProductName != tt.name {
			t.Errorf("record %d name = %q, want %q", i, rec.ProductName, tt.name)
		}
		if rec.SourceURL != tt.url {
			t.Errorf("record %d url = %q, want %q", i, rec.SourceURL, tt.url)
		}
		if got := rec.Get(types.Protein); got != tt.protein {
			t.Errorf("record %d protein = %v, want %v", i, got, tt.protein)
		}
		if rec.PortionGrams != tt.portion {
			t.Errorf("record %d portion = %v, want %v", i, rec.PortionGrams, tt.portion)
		}
	}

	if got := res.Records[1].Get(types.Carbohydrates); got != 0 {
		t.Errorf("morango carbohydrates = %v, want 0", got)
	}
	if collector.Count(report.KindFallback) != 1 {
		t.Errorf("expected 1 fallback event, got %d", collector.Count(report.KindFallback))
	}
	if collector.Count(report.KindExtracted) != 2 {
		t.Errorf("expected 2 extracted events, got %d", collector.Count(report.KindExtracted))
	}
}

func TestExtractBlockDataWinsOverVariants(t *testing.T) {
	page := `<html><body>
<h1 itemprop="name">Granola</h1>
<div id="informacoes" class="bloco_texto">
  <table><tr><td>Proteínas</td><td>5 g</td></tr></table>
  <h3>INFORMAÇÃO NUTRICIONAL – Sabor Mel</h3>
  <table><tr><td>Proteínas</td><td>6 g</td></tr></table>
</div>
</body></html>`

	res := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/granola")
	if res.Tier != TierBlock || len(res.Records) != 1 {
		t.Fatalf("tier = %s records = %d, want block with 1 record", res.Tier, len(res.Records))
	}
	if res.Records[0].ProductName != "Granola" {
		t.Errorf("name = %q", res.Records[0].ProductName)
	}
	if got := res.Records[0].Get(types.Protein); got != 5 {
		t.Errorf("protein = %v, want 5", got)
	}
}

func TestExtractVariantLayouts(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		tier     Tier
		names    []string
		proteins []float64
	}{
		{
			name: "english headings",
			block: `<h3>NUTRITION INFORMATION – Vanilla</h3>
  <table><tr><td>Proteínas</td><td>22 g</td></tr></table>
  <h3>NUTRITION INFORMATION - Cookies</h3>
  <table><tr><td>Proteínas</td><td>21 g</td></tr></table>`,
			tier:     TierVariants,
			names:    []string{"Whey - Vanilla", "Whey - Cookies"},
			proteins: []float64{22, 21},
		},
		{
			name: "headings inside a wrapper",
			block: `<div class="conteudo"><div>
  <h3>INFORMAÇÃO NUTRICIONAL – Sabor Baunilha</h3>
  <table><tr><td>Proteínas</td><td>24 g</td></tr></table>
  <h3>INFORMAÇÃO NUTRICIONAL – Sabor Morango</h3>
  <table><tr><td>Proteínas</td><td>23 g</td></tr></table>
</div></div>`,
			tier:     TierVariants,
			names:    []string{"Whey - Sabor Baunilha", "Whey - Sabor Morango"},
			proteins: []float64{24, 23},
		},
		{
			name: "single heading is the product",
			block: `<h3>INFORMAÇÃO NUTRICIONAL – Sabor Baunilha</h3>
  <table><tr><td>Proteínas</td><td>24 g</td></tr></table>`,
			tier:     TierBlock,
			names:    []string{"Whey"},
			proteins: []float64{24},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<html><body><h1 itemprop="name">Whey</h1>
<div id="informacoes" class="bloco_texto">` + tt.block + `</div></body></html>`
			res := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/whey")

			if res.Tier != tt.tier {
				t.Fatalf("tier = %s, want %s", res.Tier, tt.tier)
			}
			if len(res.Records) != len(tt.names) {
				t.Fatalf("got %d records, want %d", len(res.Records), len(tt.names))
			}
			for i, rec := range res.Records {
				if rec.ProductName != tt.names[i] {
					t.Errorf("record %d name = %q, want %q", i, rec.ProductName, tt.names[i])
				}
				if got := rec.Get(types.Protein); got != tt.proteins[i] {
					t.Errorf("record %d protein = %v, want %v", i, got, tt.proteins[i])
				}
			}
			if tt.tier == TierBlock && res.Records[0].SourceURL != "https://shop.example/whey" {
				t.Errorf("url = %q, want the plain product URL", res.Records[0].SourceURL)
			}
		})
	}
}

func TestExtractNoBlock(t *testing.T) {
	page := `<html><body><h1 itemprop="name">Sem Tabela</h1><p>Descrição</p></body></html>`

	collector := &report.Collector{}
	res := newExtractor(t, "corpoevida", collector).Extract(parse(t, page), "https://shop.example/x")

	if len(res.Records) != 0 {
		t.Fatalf("expected no record, got %d", len(res.Records))
	}
	if !errors.Is(res.Reason, types.ErrNoNutritionBlock) {
		t.Errorf("reason = %v, want ErrNoNutritionBlock", res.Reason)
	}
	if collector.Count(report.KindSkipped) != 1 {
		t.Errorf("expected 1 skipped event, got %d", collector.Count(report.KindSkipped))
	}
}

func TestExtractNoName(t *testing.T) {
	page := `<html><body><div id="informacoes" class="bloco_texto"><p>Proteínas: 3 g</p></div></body></html>`

	res := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/x")
	if len(res.Records) != 0 {
		t.Fatalf("expected no record, got %d", len(res.Records))
	}
	if !errors.Is(res.Reason, types.ErrNoProductName) {
		t.Errorf("reason = %v, want ErrNoProductName", res.Reason)
	}
}

func TestExtractDefaults(t *testing.T) {
	page := `<html><body>
<h1 itemprop="name">Chá Verde</h1>
<div id="informacoes" class="bloco_texto"><p>Não contém quantidades significativas.</p></div>
</body></html>`

	res := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/cha")
	if res.Tier != TierDefaults {
		t.Fatalf("tier = %s, want defaults", res.Tier)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if len(rec.Nutrients) != types.BaseSchema().Len() {
		t.Fatalf("record has %d nutrients", len(rec.Nutrients))
	}
	for col, v := range rec.Nutrients {
		if v != 0 {
			t.Errorf("%s = %v, want 0", col, v)
		}
	}
}

func TestExtractInline(t *testing.T) {
	page := `<html><body>
<h1 itemprop="name">Barra de Proteína</h1>
<div id="informacoes" class="bloco_texto">
  <p><strong>Proteínas:</strong> 12,5 g</p>
  <p>Carboidratos: 3 g</p>
  <span>Sódio 120 mg</span>
  <li>Valor energético: 190 kcal</li>
</div>
</body></html>`

	rec := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/barra").Records[0]
	want := map[string]float64{
		types.Protein:       12.5,
		types.Carbohydrates: 3,
		types.Sodium:        120,
		types.Calories:      190,
	}
	for col, v := range want {
		if got := rec.Get(col); got != v {
			t.Errorf("%s = %v, want %v", col, got, v)
		}
	}
}

func TestEarlierStrategyIsNeverOverwritten(t *testing.T) {
	page := `<html><body>
<h1 itemprop="name">Aveia</h1>
<div id="informacoes" class="bloco_texto">
  <table>
    <tr><td>Proteínas</td><td>10 g</td></tr>
    <tr><td>Açúcares</td><td>0 g</td></tr>
  </table>
  <p>Proteínas: 99 g</p>
  <p>Açúcares: 5 g</p>
  <p>Fibras: 4 g</p>
</div>
</body></html>`

	rec := newExtractor(t, "corpoevida", nil).Extract(parse(t, page), "https://shop.example/aveia").Records[0]
	if got := rec.Get(types.Protein); got != 10 {
		t.Errorf("protein = %v, want 10 from the table", got)
	}
	if got := rec.Get(types.Sugar); got != 0 {
		t.Errorf("sugar = %v, want the table's 0", got)
	}
	if got := rec.Get(types.Fiber); got != 4 {
		t.Errorf("fiber = %v, want 4 filled by a later strategy", got)
	}
}

func TestTableFirstRowWins(t *testing.T) {
	page := `<div id="informacoes" class="bloco_texto"><table>
<tr><td>Proteínas</td><td>10 g</td></tr>
<tr><td>Proteína</td><td>12 g</td></tr>
<tr><td>Carboidratos</td><td>Traços</td></tr>
<tr><td>Carboidrato</td><td>7 g</td></tr>
</table></div>`

	doc := parse(t, page)
	table := newSynonymTable(types.BaseSchema(), Definitions)
	got := tableStrategy(section{nodes: doc.Find("div")}, table)

	if got[types.Protein] != 10 {
		t.Errorf("protein = %v, want 10", got[types.Protein])
	}
	if got[types.Carbohydrates] != 7 {
		t.Errorf("carbohydrates = %v, want 7 (digitless cell is not a reading)", got[types.Carbohydrates])
	}
}

func TestTextStrategy(t *testing.T) {
	doc := parse(t, `<div>Valor energético: 90 kcal | Gorduras totais 1,5 g | Sódio: 10 mg</div>`)
	table := newSynonymTable(types.BaseSchema(), Definitions)
	got := textStrategy(section{nodes: doc.Find("div")}, table)

	want := found{types.Calories: 90, types.TotalFat: 1.5, types.Sodium: 10}
	if len(got) != len(want) {
		t.Fatalf("found %v, want %v", got, want)
	}
	for col, v := range want {
		if got[col] != v {
			t.Errorf("%s = %v, want %v", col, got[col], v)
		}
	}
}

func TestSynonymSpecificity(t *testing.T) {
	base := newSynonymTable(types.BaseSchema(), Definitions)
	extended := newSynonymTable(types.ExtendedSchema(), Definitions)

	tests := []struct {
		table synonymTable
		label string
		want  string
	}{
		{base, "Gorduras saturadas", types.SaturatedFat},
		{base, "Gorduras totais", types.TotalFat},
		{base, "GORDURAS", types.TotalFat},
		{base, "Açúcares totais", types.Sugar},
		{extended, "Açúcares totais (g)", types.TotalSugars},
		{extended, "Açúcares adicionados (g)", types.AddedSugars},
		{extended, "Gorduras trans (g)", types.TransFat},
		{extended, "Colágeno tipo II não desnaturado (mg)", types.UndenaturedType2Collagen},
		{extended, "Colágeno de frango com colágeno tipo II não desnaturado (mg)", types.ChickenCollagen},
		{base, "Valor Energético", types.Calories},
	}

	for _, tt := range tests {
		n, ok := tt.table.match(tt.label)
		if !ok {
			t.Errorf("match(%q) found nothing, want %s", tt.label, tt.want)
			continue
		}
		if n.Column != tt.want {
			t.Errorf("match(%q) = %s, want %s", tt.label, n.Column, tt.want)
		}
	}

	if _, ok := base.match("Gorduras trans"); ok {
		t.Error("trans fat label should not match in the base schema")
	}
	if _, ok := base.match("Ingredientes"); ok {
		t.Error("unrelated label should not match")
	}
}

const extendedPage = `<html><body>
<nav class="breadcrumb"><ul><li>Início</li><li>Colágenos</li><li>Collagen Joint</li></ul></nav>
<h1 class="product-name">Collagen Joint</h1>
<div class="tabela_nutricional">
  <p>Porção: 10 g (1 colher medida)</p>
  <table><tbody>
    <tr><td>Valor energético (kcal)</td><td>35</td></tr>
    <tr><td>Gorduras totais (g)</td><td>0,5</td></tr>
    <tr><td>Gorduras saturadas (g)</td><td>0</td></tr>
    <tr><td>Ácido hialurônico (mg)</td><td>40</td></tr>
    <tr><td>Colágeno tipo II não desnaturado (mg)</td><td>40</td></tr>
    <tr><td>Colágeno de frango com colágeno tipo II não desnaturado (mg)</td><td>100</td></tr>
    <tr><td>Sódio (mg)</td><td>15</td></tr>
  </tbody></table>
</div>
</body></html>`

func TestExtractExtendedProfile(t *testing.T) {
	res := newExtractor(t, "puravida", nil).Extract(parse(t, extendedPage), "https://puravida.example/collagen-joint")
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d (reason %v)", len(res.Records), res.Reason)
	}
	rec := res.Records[0]

	if rec.Category != "Colágenos" {
		t.Errorf("category = %q, want second-to-last breadcrumb", rec.Category)
	}
	if rec.PortionGrams != 10 {
		t.Errorf("portion = %v, want 10", rec.PortionGrams)
	}
	if len(rec.Nutrients) != types.ExtendedSchema().Len() {
		t.Errorf("record has %d nutrients, want %d", len(rec.Nutrients), types.ExtendedSchema().Len())
	}

	want := map[string]float64{
		types.Calories:                 35,
		types.TotalFat:                 0.5,
		types.SaturatedFat:             0,
		types.HyaluronicAcid:           40,
		types.UndenaturedType2Collagen: 40,
		types.ChickenCollagen:          100,
		types.Sodium:                   15,
		types.MSM:                      0,
	}
	for col, v := range want {
		if got := rec.Get(col); got != v {
			t.Errorf("%s = %v, want %v", col, got, v)
		}
	}
}

func TestXPathStrategyExactLabels(t *testing.T) {
	doc := parse(t, extendedPage)
	table := newSynonymTable(types.ExtendedSchema(), Definitions)
	got := xpathStrategy(section{nodes: doc.Find("div.tabela_nutricional")}, table)

	if got[types.ChickenCollagen] != 100 {
		t.Errorf("chicken collagen = %v, want 100", got[types.ChickenCollagen])
	}
	if _, ok := got[types.Protein]; ok {
		t.Error("protein has no row and should not be found")
	}
}

func TestExtractProductExplicitContext(t *testing.T) {
	ext := newExtractor(t, "corpoevida", nil)
	res := ext.ExtractProduct(parse(t, tablePage), Product{Name: "  Custom   Name ", Category: "Outros", URL: "https://shop.example/c"})
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Records[0].ProductName != "Custom Name" || res.Records[0].Category != "Outros" {
		t.Errorf("got name %q category %q", res.Records[0].ProductName, res.Records[0].Category)
	}
}

func TestVariantURL(t *testing.T) {
	tests := []struct {
		url, variant, want string
	}{
		{"https://x.example/p", "Sabor Chocolate", "https://x.example/p?sabor=sabor-chocolate"},
		{"https://x.example/p?id=1", "Baunilha", "https://x.example/p?id=1&sabor=baunilha"},
		{"https://x.example/p", "Frutas – Vermelhas", "https://x.example/p?sabor=frutas---vermelhas"},
	}
	for _, tt := range tests {
		if got := variantURL(tt.url, tt.variant); got != tt.want {
			t.Errorf("variantURL(%q, %q) = %q, want %q", tt.url, tt.variant, got, tt.want)
		}
	}
}

func TestPortionOf(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Porção de 30 g (1 scoop)", 30},
		{"PORÇÃO: 12,5g", 12.5},
		{"Porção de 2 cápsulas", 0},
		{"sem informação", 0},
	}
	for _, tt := range tests {
		if got := portionOf(tt.text); got != tt.want {
			t.Errorf("portionOf(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	p, _ := LookupProfile("corpoevida")
	p.Strategies = []string{"table", "ocr"}
	if _, err := New(p, nil, testLogger); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if _, err := LookupProfile("nope"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

package plotspec

import (
	"testing"

	"github.com/antoniostano/datachat/internal/agents"
)

func salesRows() []map[string]any {
	return []map[string]any{
		{"region": "north", "amount": 120.5, "year": int64(2023)},
		{"region": "south", "amount": 80.0, "year": int64(2023)},
		{"region": "north", "amount": 45.25, "year": int64(2024)},
	}
}

func encodingOf(t *testing.T, spec map[string]any) map[string]any {
	t.Helper()
	enc, ok := spec["encoding"].(map[string]any)
	if !ok {
		t.Fatalf("spec has no encoding: %v", spec)
	}
	return enc
}

func fieldOf(t *testing.T, enc map[string]any, channel string) map[string]any {
	t.Helper()
	ch, ok := enc[channel].(map[string]any)
	if !ok {
		t.Fatalf("encoding has no %s channel: %v", channel, enc)
	}
	return ch
}

func TestGenerateBarChart(t *testing.T) {
	spec, err := Generate(salesRows(), agents.PlotBar, "average amount by region", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if spec["$schema"] == nil || spec["mark"] != "bar" {
		t.Fatalf("spec missing $schema or bar mark: %v", spec)
	}
	enc := encodingOf(t, spec)
	x := fieldOf(t, enc, "x")
	if x["field"] != "region" || x["type"] != typeNominal {
		t.Fatalf("x channel = %v, want nominal region", x)
	}
	y := fieldOf(t, enc, "y")
	if y["aggregate"] != "mean" || y["field"] != "amount" {
		t.Fatalf("y channel = %v, want mean(amount)", y)
	}

	data := spec["data"].(map[string]any)
	if rows := data["values"].([]map[string]any); len(rows) != 3 {
		t.Fatalf("embedded rows = %d, want 3", len(rows))
	}
}

func TestGenerateBarChartCountsWithoutNumericColumn(t *testing.T) {
	rows := []map[string]any{
		{"region": "north"}, {"region": "south"}, {"region": "north"},
	}
	spec, err := Generate(rows, agents.PlotBar, "orders by region", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	y := fieldOf(t, encodingOf(t, spec), "y")
	if y["aggregate"] != "count" {
		t.Fatalf("y channel = %v, want count aggregate", y)
	}
}

func TestGenerateLineChartColoredByGroup(t *testing.T) {
	rows := []map[string]any{
		{"year": int64(2023), "amount": 120.5, "region": "north"},
		{"year": int64(2024), "amount": 45.25, "region": "north"},
		{"year": int64(2023), "amount": 80.0, "region": "south"},
	}
	spec, err := Generate(rows, agents.PlotLine, "amount over time colored by region", []string{"amount", "year"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	enc := encodingOf(t, spec)
	color := fieldOf(t, enc, "color")
	if color["field"] != "region" {
		t.Fatalf("color channel = %v, want region", color)
	}
	if y := fieldOf(t, enc, "y"); y["field"] != "amount" {
		t.Fatalf("y channel = %v, want amount", y)
	}
}

func TestGenerateScatterPicksQuantitativePair(t *testing.T) {
	spec, err := Generate(salesRows(), agents.PlotScatter, "amount against year", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if spec["mark"] != "circle" {
		t.Fatalf("mark = %v, want circle", spec["mark"])
	}
	enc := encodingOf(t, spec)
	x := fieldOf(t, enc, "x")
	y := fieldOf(t, enc, "y")
	if x["type"] != typeQuantitative || y["type"] != typeQuantitative {
		t.Fatalf("scatter axes must be quantitative: x=%v y=%v", x, y)
	}
}

func TestGenerateHistogramBinsAndCounts(t *testing.T) {
	spec, err := Generate(salesRows(), agents.PlotHistogram, "distribution of amount", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	enc := encodingOf(t, spec)
	x := fieldOf(t, enc, "x")
	if x["bin"] != true || x["field"] != "amount" {
		t.Fatalf("x channel = %v, want binned amount", x)
	}
}

func TestGenerateHistogramFacetsManyCategories(t *testing.T) {
	rows := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, map[string]any{
			"value":    float64(i),
			"category": string(rune('a' + i)),
		})
	}
	spec, err := Generate(rows, agents.PlotHistogram, "distributions of value for category", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if spec["facet"] == nil {
		t.Fatalf("expected faceted spec for %d categories, got %v", 12, spec)
	}
}

func TestGenerateEmptyRowsFails(t *testing.T) {
	if _, err := Generate(nil, agents.PlotBar, "anything", nil); err == nil {
		t.Fatalf("empty rows should fail")
	}
}

func TestGroupingHintPatterns(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"sales colored by region", "region"},
		{"mean petal width for each species", "species"},
		{"distributions of amount for category", "category"},
		{"revenue per country", "country"},
		{"just show revenue", ""},
	}
	for _, tc := range cases {
		if got := groupingHint(tc.question); got != tc.want {
			t.Fatalf("groupingHint(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestFindGroupingColumnPrefersExactMatch(t *testing.T) {
	cols := []string{"amount", "region_name", "region"}
	types := map[string]string{
		"amount":      typeQuantitative,
		"region_name": typeNominal,
		"region":      typeNominal,
	}
	if got := findGroupingColumn(cols, types, "region"); got != "region" {
		t.Fatalf("findGroupingColumn = %q, want exact match region", got)
	}
	if got := findGroupingColumn(cols, types, "name"); got != "region_name" {
		t.Fatalf("findGroupingColumn partial = %q, want region_name", got)
	}
}

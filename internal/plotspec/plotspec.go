// Package plotspec builds Vega-Lite specifications from query result rows.
// The output is a plain JSON-marshalable map a frontend can hand straight to
// a Vega-Lite renderer.
package plotspec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/antoniostano/datachat/internal/agents"
)

const schemaURL = "https://vega.github.io/schema/vega-lite/v5.17.0.json"

var axisStyle = map[string]any{
	"labelFontSize":   12,
	"titleFontSize":   14,
	"labelFontStyle":  "italic",
	"labelFontWeight": "bold",
}

const (
	typeQuantitative = "quantitative"
	typeNominal      = "nominal"
)

// color encoding is only legible up to this many categories; histograms
// switch to faceting even earlier.
const (
	maxColorCategories = 10
	maxHistogramColors = 5
)

var (
	colorByPattern = regexp.MustCompile(`\b(?:colored|grouped|color)\s+by\s+(\w+)`)
	forEachPattern = regexp.MustCompile(`\bfor each\s+(\w+)(?:'s|')?`)
	distForPattern = regexp.MustCompile(`\bdistributions?\s+(?:of\s+)?\w+\s+for\s+(\w+)`)
	byPattern      = regexp.MustCompile(`\b(?:by|across|per)\s+(\w+)`)
)

// Generate builds a chart spec of the given kind from rows. The question text
// supplies grouping hints ("colored by region", "for each species"); columns,
// when non-empty, narrows which result columns the chart may use. Returns an
// error when the rows cannot support the requested chart; callers treat that
// as "answer without a chart", not as a turn failure.
func Generate(rows []map[string]any, kind agents.PlotKind, question string, columns []string) (map[string]any, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to plot")
	}

	all := columnOrder(rows)
	cols := filterColumns(columns, all)
	if len(cols) == 0 {
		cols = all
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no usable columns")
	}

	types := inferColumnTypes(rows, all)
	groupCol := ""
	if hint := groupingHint(question); hint != "" {
		groupCol = findGroupingColumn(all, types, hint)
	}

	var spec map[string]any
	var err error
	switch kind {
	case agents.PlotBar:
		spec, err = barSpec(rows, cols, types, groupCol)
	case agents.PlotLine:
		spec, err = lineSpec(rows, cols, types, groupCol)
	case agents.PlotScatter:
		spec, err = scatterSpec(rows, cols, types, groupCol)
	case agents.PlotHistogram:
		spec, err = histogramSpec(rows, cols, types, groupCol)
	default:
		return nil, fmt.Errorf("unknown plot kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	spec["$schema"] = schemaURL
	spec["data"] = map[string]any{"values": rows}
	spec["config"] = map[string]any{"axis": axisStyle}
	return spec, nil
}

func barSpec(rows []map[string]any, cols []string, types map[string]string, groupCol string) (map[string]any, error) {
	xCol := firstOfType(cols, types, typeNominal)
	if xCol == "" {
		xCol = cols[0]
	}
	yCol := ""
	for _, c := range cols {
		if c != xCol && types[c] == typeQuantitative {
			yCol = c
			break
		}
	}

	encoding := map[string]any{
		"x": map[string]any{"field": xCol, "type": types[xCol]},
	}
	if yCol == "" {
		encoding["y"] = map[string]any{"aggregate": "count", "type": typeQuantitative, "title": "Count"}
	} else {
		encoding["y"] = map[string]any{
			"aggregate": "mean",
			"field":     yCol,
			"type":      typeQuantitative,
			"title":     "Mean " + yCol,
		}
	}
	if groupCol != "" && groupCol != xCol && uniqueCount(rows, groupCol) <= maxColorCategories {
		encoding["color"] = colorEncoding(groupCol)
	}
	return map[string]any{"mark": "bar", "encoding": encoding}, nil
}

func lineSpec(rows []map[string]any, cols []string, types map[string]string, groupCol string) (map[string]any, error) {
	yCol := firstOfType(cols, types, typeQuantitative)
	xCol := ""
	for _, c := range cols {
		if c != yCol {
			xCol = c
			break
		}
	}
	if xCol == "" || yCol == "" {
		if len(cols) < 2 {
			return nil, fmt.Errorf("line plot needs two columns, have %d", len(cols))
		}
		xCol, yCol = cols[0], cols[1]
	}

	xType := types[xCol]
	if xType == "" {
		xType = typeQuantitative
	}
	encoding := map[string]any{
		"x": map[string]any{"field": xCol, "type": xType},
		"y": map[string]any{"field": yCol, "type": typeQuantitative},
	}
	if groupCol != "" && uniqueCount(rows, groupCol) <= maxColorCategories {
		encoding["color"] = colorEncoding(groupCol)
	}
	return map[string]any{"mark": "line", "encoding": encoding}, nil
}

func scatterSpec(rows []map[string]any, cols []string, types map[string]string, groupCol string) (map[string]any, error) {
	var quantCols []string
	for _, c := range cols {
		if types[c] == typeQuantitative {
			quantCols = append(quantCols, c)
		}
	}

	var xCol, yCol string
	if len(quantCols) >= 2 {
		xCol, yCol = quantCols[0], quantCols[1]
	} else if len(cols) >= 2 {
		xCol, yCol = cols[0], cols[1]
	} else {
		return nil, fmt.Errorf("scatter plot needs two columns, have %d", len(cols))
	}

	encoding := map[string]any{
		"x": map[string]any{"field": xCol, "type": typeQuantitative},
		"y": map[string]any{"field": yCol, "type": typeQuantitative},
	}
	if groupCol != "" && uniqueCount(rows, groupCol) <= maxColorCategories {
		encoding["color"] = colorEncoding(groupCol)
	}
	return map[string]any{"mark": "circle", "encoding": encoding}, nil
}

func histogramSpec(rows []map[string]any, cols []string, types map[string]string, groupCol string) (map[string]any, error) {
	col := firstOfType(cols, types, typeQuantitative)
	if col == "" {
		col = cols[0]
	}

	binnedX := map[string]any{"field": col, "type": typeQuantitative, "bin": true}
	countY := map[string]any{"aggregate": "count", "type": typeQuantitative, "title": "Count"}

	if groupCol == "" {
		return map[string]any{
			"mark":     "bar",
			"encoding": map[string]any{"x": binnedX, "y": countY},
		}, nil
	}

	if uniqueCount(rows, groupCol) <= maxHistogramColors {
		return map[string]any{
			"mark": map[string]any{"type": "bar", "opacity": 0.7},
			"encoding": map[string]any{
				"x":     binnedX,
				"y":     countY,
				"color": colorEncoding(groupCol),
			},
		}, nil
	}

	// Too many categories for overlaid colors: facet per category instead.
	return map[string]any{
		"facet": map[string]any{
			"column": map[string]any{
				"field":  groupCol,
				"type":   typeNominal,
				"header": map[string]any{"title": groupCol},
			},
		},
		"spec": map[string]any{
			"mark":     "bar",
			"encoding": map[string]any{"x": binnedX, "y": countY},
		},
	}, nil
}

func colorEncoding(col string) map[string]any {
	return map[string]any{
		"field":  col,
		"type":   typeNominal,
		"legend": map[string]any{"title": col},
	}
}

// groupingHint extracts a grouping column name from the question, most
// specific pattern first.
func groupingHint(question string) string {
	q := strings.ToLower(question)
	if m := colorByPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	if m := forEachPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	if m := distForPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	if m := byPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	return ""
}

// findGroupingColumn matches the hint against categorical columns: exact
// name, then substring either way, then the first categorical column.
func findGroupingColumn(cols []string, types map[string]string, hint string) string {
	var categorical []string
	for _, c := range cols {
		if types[c] == typeNominal {
			categorical = append(categorical, c)
		}
	}
	if len(categorical) == 0 {
		return ""
	}

	hintLower := strings.ToLower(hint)
	for _, c := range categorical {
		if strings.ToLower(c) == hintLower {
			return c
		}
	}
	for _, c := range categorical {
		cl := strings.ToLower(c)
		if strings.Contains(cl, hintLower) || strings.Contains(hintLower, cl) {
			return c
		}
	}
	return categorical[0]
}

// columnOrder returns every column seen across the rows, sorted for
// determinism since row maps carry no order.
func columnOrder(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func filterColumns(requested, available []string) []string {
	if len(requested) == 0 {
		return nil
	}
	avail := make(map[string]bool, len(available))
	for _, c := range available {
		avail[c] = true
	}
	var out []string
	for _, c := range requested {
		if avail[c] {
			out = append(out, c)
		}
	}
	return out
}

// inferColumnTypes classifies each column as quantitative when every non-nil
// value is numeric, nominal otherwise.
func inferColumnTypes(rows []map[string]any, cols []string) map[string]string {
	types := make(map[string]string, len(cols))
	for _, col := range cols {
		numeric := false
		for _, row := range rows {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			if !isNumeric(v) {
				numeric = false
				break
			}
			numeric = true
		}
		if numeric {
			types[col] = typeQuantitative
		} else {
			types[col] = typeNominal
		}
	}
	return types
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}

func firstOfType(cols []string, types map[string]string, want string) string {
	for _, c := range cols {
		if types[c] == want {
			return c
		}
	}
	return ""
}

func uniqueCount(rows []map[string]any, col string) int {
	seen := make(map[string]bool)
	for _, row := range rows {
		seen[fmt.Sprint(row[col])] = true
	}
	return len(seen)
}

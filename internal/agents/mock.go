package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// MockProvider is a deterministic, model-free provider used when no API key is
// configured and in tests. Planning and SQL generation are keyword driven, so
// the full pipeline stays exercisable offline.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

var (
	dataWords = []string{
		"average", "mean", "sum", "count", "how many", "max", "min",
		"show", "list", "rows", "table", "per ", "by ", "distribution",
	}
	plotWords = map[PlotKind][]string{
		PlotBar:       {"bar chart", "bar plot", "barplot", "bar graph"},
		PlotLine:      {"line chart", "line plot", "over time", "trend"},
		PlotScatter:   {"scatter", "correlation", "against"},
		PlotHistogram: {"histogram", "distribution of"},
	}
	cachedWords = []string{"same data", "that data", "previous result", "the data you", "again"}

	firstTablePattern = regexp.MustCompile(`(?m)^TABLE\s+(\w+)`)
)

func (p *MockProvider) CreatePlan(_ context.Context, input string, _ []Message) (PlanResult, error) {
	lower := strings.ToLower(input)

	plan := &Plan{
		Intent:    IntentGeneral,
		Reasoning: "keyword heuristics (mock provider)",
	}
	for _, w := range dataWords {
		if strings.Contains(lower, w) {
			plan.Intent = IntentDataQuery
			break
		}
	}
	for kind, words := range plotWords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				plan.NeedsPlot = true
				plan.PlotKind = kind
				break
			}
		}
		if plan.NeedsPlot {
			break
		}
	}
	if !plan.NeedsPlot && (strings.Contains(lower, "plot") || strings.Contains(lower, "chart") || strings.Contains(lower, "graph")) {
		plan.NeedsPlot = true
		plan.PlotKind = PlotBar
	}
	for _, w := range cachedWords {
		if strings.Contains(lower, w) {
			plan.UseCachedData = true
			plan.CacheKey = "latest"
			break
		}
	}

	// A bare plot request with no subject cannot be planned.
	if plan.NeedsPlot && len(strings.Fields(lower)) < 3 && !plan.UseCachedData {
		return PlanResult{Clarification: "What data would you like me to plot?"}, nil
	}
	return PlanResult{Plan: plan}, nil
}

func (p *MockProvider) GenerateQuery(_ context.Context, input, schema string, _ []Message) (GeneratedQuery, error) {
	if m := firstTablePattern.FindStringSubmatch(schema); m != nil {
		table := m[1]
		return GeneratedQuery{
			SQL:         fmt.Sprintf("SELECT * FROM %s LIMIT 50", table),
			Explanation: fmt.Sprintf("Sampled rows from %s for: %s", table, strings.TrimSpace(input)),
		}, nil
	}
	return GeneratedQuery{
		NeedsClarification:    true,
		ClarificationQuestion: "The datasource has no tables yet. What data should I look at?",
	}, nil
}

func (p *MockProvider) Synthesize(_ context.Context, input string, plan *Plan, outcome *QueryOutcome, _ []Message) (Synthesis, error) {
	if outcome == nil {
		return Synthesis{Message: "I can help with questions about the configured datasource. " + strings.TrimSpace(input)}, nil
	}
	if !outcome.Result.Success {
		return Synthesis{Message: "The query could not be executed: " + outcome.Result.Error}, nil
	}
	msg := fmt.Sprintf("The query returned %d rows.", outcome.Result.RowCount)
	if plan != nil && plan.NeedsPlot {
		msg += fmt.Sprintf(" A %s chart of the result is attached.", plan.PlotKind)
	}
	return Synthesis{Message: msg}, nil
}

func (p *MockProvider) Summarize(_ context.Context, text string) (string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) > 6 {
		lines = append(lines[:3], lines[len(lines)-3:]...)
	}
	summary := strings.Join(lines, " / ")
	const maxLen = 400
	if len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	return summary, nil
}

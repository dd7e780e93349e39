package chat

import (
	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/plotspec"
)

func plotFromOutcome(outcome *agents.QueryOutcome, kind agents.PlotKind, question string, columns []string) (map[string]any, error) {
	return plotspec.Generate(outcome.Result.Rows, kind, question, columns)
}

package agents

import (
	"context"
	"fmt"
	"strings"
)

// Planner produces an execution plan, or a clarification question when the
// user's request cannot be planned yet.
type Planner interface {
	CreatePlan(ctx context.Context, input string, history []Message) (PlanResult, error)
}

// QueryGenerator turns a natural-language request into SQL for the configured
// datasource. The schema text is the datasource's introspected description.
// Like the planner, it may ask for clarification instead of producing SQL.
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, input, schema string, history []Message) (GeneratedQuery, error)
}

// Synthesizer renders the final user-facing answer from the plan, the fetched
// data (if any), and the conversation so far.
type Synthesizer interface {
	Synthesize(ctx context.Context, input string, plan *Plan, outcome *QueryOutcome, history []Message) (Synthesis, error)
}

// Summarizer condenses a stretch of conversation into a short summary used
// when history is compacted.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Provider bundles every model-backed capability the orchestrator consumes.
type Provider interface {
	Planner
	QueryGenerator
	Synthesizer
	Summarizer
}

// Config controls provider construction.
type Config struct {
	Mode            string
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int
}

// NewProvider resolves the capability backend. "auto" prefers Anthropic when
// an API key is configured and falls back to the deterministic mock provider.
func NewProvider(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, fmt.Errorf("agent provider %q requires ANTHROPIC_API_KEY", mode)
		}
		return NewAnthropicProvider(cfg), nil
	case "mock":
		return NewMockProvider(), nil
	case "auto":
		if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
			return NewAnthropicProvider(cfg), nil
		}
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported agent provider mode %q", cfg.Mode)
	}
}

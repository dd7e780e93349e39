package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/antoniostano/datachat/internal/reliability"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultMaxTokens      = 1024

	// completionRetries bounds transport-level retries on rate limits and
	// upstream 5xx responses, separate from the pipeline's corrective loop.
	completionRetries    = 2
	completionRetryBase  = 500 * time.Millisecond
	completionRetryLimit = 4 * time.Second
)

// AnthropicProvider backs every capability with the Anthropic Messages API.
// Each capability is a single JSON-constrained completion; the conversation
// history is replayed as alternating user/assistant messages.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	model := strings.TrimSpace(cfg.AnthropicModel)
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (p *AnthropicProvider) complete(ctx context.Context, system, input string, history []Message) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  msgs,
	}

	var resp *anthropic.Message
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = p.client.Messages.New(ctx, params)
		if err == nil {
			break
		}
		var apiErr *anthropic.Error
		if attempt == completionRetries || !errors.As(err, &apiErr) || !reliability.IsRetryableHTTPStatus(apiErr.StatusCode) {
			return "", fmt.Errorf("anthropic completion: %w", err)
		}
		timer := time.NewTimer(reliability.ExponentialBackoff(attempt, completionRetryBase, completionRetryLimit))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// extractJSON tolerates models wrapping the JSON object in prose or fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func (p *AnthropicProvider) CreatePlan(ctx context.Context, input string, history []Message) (PlanResult, error) {
	text, err := p.complete(ctx, plannerSystemPrompt, input, history)
	if err != nil {
		return PlanResult{}, err
	}

	raw := extractJSON(text)
	if raw == "" {
		// A bare non-JSON reply is the planner asking its own question.
		return PlanResult{Clarification: text}, nil
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return PlanResult{}, fmt.Errorf("decode plan: %w", err)
	}
	if plan.NeedsClarification {
		q := plan.ClarificationQuestion
		if q == "" {
			q = "Could you please clarify your question?"
		}
		return PlanResult{Clarification: q}, nil
	}
	if plan.Intent != IntentDataQuery && plan.Intent != IntentGeneral {
		plan.Intent = IntentGeneral
	}
	return PlanResult{Plan: &plan}, nil
}

func (p *AnthropicProvider) GenerateQuery(ctx context.Context, input, schema string, history []Message) (GeneratedQuery, error) {
	prompt := fmt.Sprintf("Schema:\n%s\n\nQuestion:\n%s", schema, input)
	text, err := p.complete(ctx, queryGeneratorSystemPrompt, prompt, history)
	if err != nil {
		return GeneratedQuery{}, err
	}
	raw := extractJSON(text)
	if raw == "" {
		return GeneratedQuery{}, fmt.Errorf("query generator returned no JSON: %q", text)
	}
	var out GeneratedQuery
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return GeneratedQuery{}, fmt.Errorf("decode generated query: %w", err)
	}
	if out.NeedsClarification {
		if strings.TrimSpace(out.ClarificationQuestion) == "" {
			out.ClarificationQuestion = "Could you clarify what data you are looking for?"
		}
		return out, nil
	}
	if strings.TrimSpace(out.SQL) == "" {
		return GeneratedQuery{}, fmt.Errorf("query generator returned empty sql")
	}
	return out, nil
}

func (p *AnthropicProvider) Synthesize(ctx context.Context, input string, plan *Plan, outcome *QueryOutcome, history []Message) (Synthesis, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User question:\n%s\n", input)
	if plan != nil {
		fmt.Fprintf(&b, "\nIntent: %s", plan.Intent)
		if plan.NeedsPlot {
			fmt.Fprintf(&b, " (a %s chart will be attached)", plan.PlotKind)
		}
		b.WriteString("\n")
	}
	if outcome != nil {
		fmt.Fprintf(&b, "\nSQL executed:\n%s\n\nExplanation: %s\n", outcome.SQL, outcome.Explanation)
		if outcome.Result.Success {
			rows, err := json.Marshal(truncateRows(outcome.Result.Rows, 50))
			if err == nil {
				fmt.Fprintf(&b, "\nResult (%d rows):\n%s\n", outcome.Result.RowCount, rows)
			}
		} else {
			fmt.Fprintf(&b, "\nThe query failed: %s\n", outcome.Result.Error)
		}
	}

	text, err := p.complete(ctx, synthesizerSystemPrompt, b.String(), history)
	if err != nil {
		return Synthesis{}, err
	}
	var out struct {
		Message string `json:"message"`
	}
	if raw := extractJSON(text); raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err == nil && strings.TrimSpace(out.Message) != "" {
			return Synthesis{Message: out.Message}, nil
		}
	}
	return Synthesis{Message: text}, nil
}

func (p *AnthropicProvider) Summarize(ctx context.Context, text string) (string, error) {
	return p.complete(ctx, summarizerSystemPrompt, text, nil)
}

func truncateRows(rows []map[string]any, n int) []map[string]any {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// Package history keeps conversation histories bounded by folding older turns
// into a model-written summary while leaving the recent tail verbatim.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/session"
)

const (
	// DefaultMaxTurns is the history length that triggers compaction.
	DefaultMaxTurns = 20
	// DefaultKeepRecent is how many trailing turns survive verbatim.
	DefaultKeepRecent = 10
)

// SummaryPrefix marks the synthetic turn that replaces compacted history.
const SummaryPrefix = "[Previous conversation summary]: "

type Compactor struct {
	summarizer agents.Summarizer
	maxTurns   int
	keepRecent int
}

func NewCompactor(summarizer agents.Summarizer, maxTurns, keepRecent int) *Compactor {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if keepRecent <= 0 || keepRecent >= maxTurns {
		keepRecent = DefaultKeepRecent
	}
	return &Compactor{summarizer: summarizer, maxTurns: maxTurns, keepRecent: keepRecent}
}

// CompactIfNeeded returns the history unchanged while it fits within
// maxTurns. Past that, everything but the trailing keepRecent turns is
// summarized into a single summary turn. Summarization failure is not fatal:
// the original history comes back untouched and the next turn retries.
func (c *Compactor) CompactIfNeeded(ctx context.Context, turns []session.Turn) ([]session.Turn, error) {
	if len(turns) <= c.maxTurns {
		return turns, nil
	}

	split := len(turns) - c.keepRecent
	older := turns[:split]
	recent := turns[split:]

	summary, err := c.summarizer.Summarize(ctx, renderTurns(older))
	if err != nil || strings.TrimSpace(summary) == "" {
		if err == nil {
			err = fmt.Errorf("summarizer returned empty summary")
		}
		return turns, fmt.Errorf("compact history: %w", err)
	}

	out := make([]session.Turn, 0, 1+len(recent))
	out = append(out, session.Turn{
		Role:    session.RoleSummary,
		Content: SummaryPrefix + strings.TrimSpace(summary),
	})
	out = append(out, recent...)
	return out, nil
}

func renderTurns(turns []session.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

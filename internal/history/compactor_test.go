package history

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/antoniostano/datachat/internal/session"
)

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
	lastIn  string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.calls++
	f.lastIn = text
	return f.summary, f.err
}

func makeTurns(n int) []session.Turn {
	turns := make([]session.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		turns = append(turns, session.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return turns
}

func TestCompactNoOpUnderLimit(t *testing.T) {
	sum := &fakeSummarizer{summary: "unused"}
	c := NewCompactor(sum, 20, 10)

	turns := makeTurns(20)
	got, err := c.CompactIfNeeded(context.Background(), turns)
	if err != nil {
		t.Fatalf("CompactIfNeeded() error = %v", err)
	}
	if !reflect.DeepEqual(got, turns) {
		t.Fatalf("history at the limit should pass through unchanged")
	}
	if sum.calls != 0 {
		t.Fatalf("summarizer called %d times, want 0", sum.calls)
	}
}

func TestCompactFoldsOlderTurns(t *testing.T) {
	sum := &fakeSummarizer{summary: "user asked about sales, assistant reported totals"}
	c := NewCompactor(sum, 20, 10)

	turns := makeTurns(25)
	got, err := c.CompactIfNeeded(context.Background(), turns)
	if err != nil {
		t.Fatalf("CompactIfNeeded() error = %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("compacted length = %d, want 11", len(got))
	}
	if got[0].Role != session.RoleSummary {
		t.Fatalf("first turn role = %q, want summary", got[0].Role)
	}
	if !strings.HasPrefix(got[0].Content, SummaryPrefix) {
		t.Fatalf("summary turn = %q, want %q prefix", got[0].Content, SummaryPrefix)
	}
	if !reflect.DeepEqual(got[1:], turns[15:]) {
		t.Fatalf("last 10 turns must survive verbatim")
	}
	if !strings.Contains(sum.lastIn, "turn 0") || strings.Contains(sum.lastIn, "turn 15") {
		t.Fatalf("summarizer input should cover only the older turns, got %q", sum.lastIn)
	}
}

func TestCompactFailureLeavesHistoryUntouched(t *testing.T) {
	sum := &fakeSummarizer{err: fmt.Errorf("model unavailable")}
	c := NewCompactor(sum, 20, 10)

	turns := makeTurns(25)
	got, err := c.CompactIfNeeded(context.Background(), turns)
	if err == nil {
		t.Fatalf("expected error from failed summarization")
	}
	if !reflect.DeepEqual(got, turns) {
		t.Fatalf("failed compaction must return the original history")
	}
}

func TestCompactEmptySummaryIsFailure(t *testing.T) {
	sum := &fakeSummarizer{summary: "   "}
	c := NewCompactor(sum, 20, 10)

	turns := makeTurns(21)
	got, err := c.CompactIfNeeded(context.Background(), turns)
	if err == nil {
		t.Fatalf("expected error for empty summary")
	}
	if len(got) != 21 {
		t.Fatalf("history length = %d, want 21", len(got))
	}
}

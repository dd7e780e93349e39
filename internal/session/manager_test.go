package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager(time.Minute)

	s, created := m.GetOrCreate("s1", nil)
	if !created {
		t.Fatalf("first GetOrCreate should create")
	}
	if s.ID != "s1" {
		t.Fatalf("ID = %q, want s1", s.ID)
	}

	again, created := m.GetOrCreate("s1", nil)
	if created {
		t.Fatalf("second GetOrCreate should not create")
	}
	if again != s {
		t.Fatalf("GetOrCreate returned a different session for the same ID")
	}
}

func TestManagerGeneratesIDWhenEmpty(t *testing.T) {
	m := NewManager(time.Minute)
	s, created := m.GetOrCreate("", nil)
	if !created || s.ID == "" {
		t.Fatalf("empty ID should create a session with a generated ID")
	}
}

func TestSeedAppliesOnlyOnCreation(t *testing.T) {
	m := NewManager(time.Minute)
	seed := []Turn{{Role: RoleUser, Content: "earlier question"}}

	s, _ := m.GetOrCreate("s1", seed)
	if got := len(s.History()); got != 1 {
		t.Fatalf("seeded history length = %d, want 1", got)
	}

	s.CommitTurn(s.History(), Turn{Role: RoleUser, Content: "hi"})

	again, _ := m.GetOrCreate("s1", []Turn{{Role: RoleUser, Content: "other seed"}})
	hist := again.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2 (seed must not reapply)", len(hist))
	}
	if hist[0].Content != "earlier question" {
		t.Fatalf("hist[0].Content = %q, want original seed", hist[0].Content)
	}
}

func TestManagerReset(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.GetOrCreate("s1", nil)
	s.CommitTurn(nil, Turn{Role: RoleUser, Content: "hi"})

	if err := m.Reset("s1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := m.Reset("s1"); err != ErrNotFound {
		t.Fatalf("second Reset() error = %v, want ErrNotFound", err)
	}

	fresh, created := m.GetOrCreate("s1", nil)
	if !created {
		t.Fatalf("session should be recreated after reset")
	}
	if len(fresh.History()) != 0 {
		t.Fatalf("reset session should have empty history")
	}
}

func TestTakePendingClearsAtomically(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.GetOrCreate("s1", nil)

	s.SetPending(PendingClarification{OriginalText: "plot sales"})
	p := s.TakePending()
	if p == nil || p.OriginalText != "plot sales" {
		t.Fatalf("TakePending() = %+v, want original_text=plot sales", p)
	}
	if s.TakePending() != nil {
		t.Fatalf("second TakePending() should return nil")
	}
	if s.Pending() != nil {
		t.Fatalf("Pending() should be nil after take")
	}
}

func TestCommitTurnReplacesAndAppends(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.GetOrCreate("s1", nil)
	s.CommitTurn(nil,
		Turn{Role: RoleUser, Content: "q1"},
		Turn{Role: RoleAssistant, Content: "a1"},
	)

	compacted := []Turn{{Role: RoleSummary, Content: "[Previous conversation summary]: q1/a1"}}
	s.CommitTurn(compacted,
		Turn{Role: RoleUser, Content: "q2"},
		Turn{Role: RoleAssistant, Content: "a2"},
	)

	hist := s.History()
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[0].Role != RoleSummary || hist[2].Content != "a2" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestConcurrentCommitsKeepAllTurns(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.GetOrCreate("s1", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.BeginTurn()
			defer s.EndTurn()
			s.CommitTurn(s.History(),
				Turn{Role: RoleUser, Content: "q"},
				Turn{Role: RoleAssistant, Content: "a"},
			)
		}()
	}
	wg.Wait()

	if got := len(s.History()); got != 16 {
		t.Fatalf("history length = %d, want 16", got)
	}
}

func TestJanitorEvictsIdleSessions(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	m.GetOrCreate("s1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := m.Get("s1"); err != ErrNotFound {
		t.Fatalf("Get() after idle timeout error = %v, want ErrNotFound", err)
	}
}

package session

import (
	"sync"
	"time"

	"github.com/antoniostano/datachat/internal/cache"
)

// Session is one conversation: its turn history, its per-session result
// cache, and the clarification state machine. All state mutations go through
// methods so the pipeline can stage changes and commit them atomically at a
// turn's terminal point.
type Session struct {
	ID string

	// turnMu serializes whole turns within a session. The pipeline holds it
	// from BeginTurn to EndTurn so concurrent messages to the same session
	// observe consistent history.
	turnMu sync.Mutex

	mu             sync.RWMutex
	history        []Turn
	pending        *PendingClarification
	cache          *cache.ResultCache
	createdAt      time.Time
	lastActivityAt time.Time
}

func newSession(id string, seed []Turn) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             id,
		cache:          cache.NewResultCache(),
		createdAt:      now,
		lastActivityAt: now,
	}
	if len(seed) > 0 {
		s.history = append(s.history, seed...)
	}
	return s
}

// BeginTurn blocks until no other turn is running on this session.
func (s *Session) BeginTurn() { s.turnMu.Lock() }

func (s *Session) EndTurn() { s.turnMu.Unlock() }

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// CommitTurn replaces the stored history with compacted (the history the turn
// started from, possibly summarized) and appends the turn's new entries. The
// pipeline calls this exactly once per turn, at a terminal point; a cancelled
// turn never reaches it.
func (s *Session) CommitTurn(compacted []Turn, newTurns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := make([]Turn, 0, len(compacted)+len(newTurns))
	hist = append(hist, compacted...)
	hist = append(hist, newTurns...)
	s.history = hist
	s.lastActivityAt = time.Now().UTC()
}

// Pending returns the outstanding clarification, or nil.
func (s *Session) Pending() *PendingClarification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// SetPending records an outstanding clarification question.
func (s *Session) SetPending(p PendingClarification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
	s.lastActivityAt = time.Now().UTC()
}

// TakePending returns the outstanding clarification and clears it in one
// step, so a crash between read and clear cannot replay the same answer.
func (s *Session) TakePending() *PendingClarification {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// Cache returns the session's query result cache.
func (s *Session) Cache() *cache.ResultCache {
	return s.cache
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = time.Now().UTC()
}

// LastActivityAt reports when the session last saw a commit or touch.
func (s *Session) LastActivityAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivityAt
}

func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// Package memory is the durable turn log. Sessions live in process; this is
// what survives a restart and reseeds conversation context.
package memory

import (
	"context"
	"time"
)

// TurnRecord stores a single committed conversational turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves the turn log.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	// SessionHistory returns up to limit most recent turns for the session,
	// oldest first.
	SessionHistory(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}

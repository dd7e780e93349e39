package datastore

import (
	"context"
	"strings"
)

// NewStore picks a backend from the database URL: postgres URLs get the
// pgx-backed store, anything else is treated as a SQLite path. Empty means an
// in-memory SQLite database.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresStore(ctx, url)
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(url, "sqlite://"))
	default:
		return NewSQLiteStore(url)
	}
}

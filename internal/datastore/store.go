// Package datastore is the read-only analytical database the assistant
// answers questions from. It abstracts over SQLite and PostgreSQL behind a
// row-map query interface plus a schema description fed to the query
// generator.
package datastore

import "context"

// Store executes SQL against the analytical database.
type Store interface {
	// Query runs sql and returns every row as a column-name keyed map.
	Query(ctx context.Context, sql string) ([]map[string]any, error)
	// Schema renders the database's tables and columns as text for prompts.
	Schema(ctx context.Context) (string, error)
	Close() error
}

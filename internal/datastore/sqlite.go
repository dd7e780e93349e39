package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore serves queries from a SQLite file, or from an in-memory
// database when no path is given. The default for local development.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// In-memory databases vanish per connection; a single connection keeps
	// the dataset stable and SQLite is serialized anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Exec runs a statement. Used for seeding local datasets, not by the
// question-answering path.
func (s *SQLiteStore) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("exec sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sqlite: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Schema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate tables: %w", err)
	}

	var b strings.Builder
	for _, table := range tables {
		fmt.Fprintf(&b, "TABLE %s\n", table)
		cols, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
		if err != nil {
			return "", fmt.Errorf("table info %s: %w", table, err)
		}
		for cols.Next() {
			var (
				cid     int
				name    string
				ctype   string
				notNull int
				dflt    any
				pk      int
			)
			if err := cols.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
				cols.Close()
				return "", fmt.Errorf("scan column: %w", err)
			}
			fmt.Fprintf(&b, "  %s %s\n", name, ctype)
		}
		if err := cols.Err(); err != nil {
			cols.Close()
			return "", fmt.Errorf("iterate columns: %w", err)
		}
		cols.Close()
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// normalizeValue makes driver-specific scan types JSON-friendly.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}

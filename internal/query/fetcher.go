// Package query implements the data fetch capability: natural language in,
// executed SQL and rows out.
package query

import (
	"context"
	"fmt"

	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/datastore"
)

// Fetcher resolves a natural-language request to data. Execution failures are
// reported inside the outcome, not as a Go error: the retry loop needs the
// failed SQL and the database's error text to build corrective feedback. A
// non-nil error means the capability itself broke (schema introspection or
// the generator call), which no retry of the same input can fix.
type Fetcher interface {
	Fetch(ctx context.Context, input string, history []agents.Message) (agents.QueryOutcome, error)
}

// SQLFetcher generates SQL against the datastore's schema and executes it.
type SQLFetcher struct {
	gen   agents.QueryGenerator
	store datastore.Store
}

func NewSQLFetcher(gen agents.QueryGenerator, store datastore.Store) *SQLFetcher {
	return &SQLFetcher{gen: gen, store: store}
}

func (f *SQLFetcher) Fetch(ctx context.Context, input string, history []agents.Message) (agents.QueryOutcome, error) {
	schema, err := f.store.Schema(ctx)
	if err != nil {
		return agents.QueryOutcome{}, fmt.Errorf("introspect schema: %w", err)
	}

	gq, err := f.gen.GenerateQuery(ctx, input, schema, history)
	if err != nil {
		return agents.QueryOutcome{}, fmt.Errorf("generate query: %w", err)
	}
	if gq.NeedsClarification {
		return agents.QueryOutcome{
			NeedsClarification:    true,
			ClarificationQuestion: gq.ClarificationQuestion,
		}, nil
	}

	outcome := agents.QueryOutcome{SQL: gq.SQL, Explanation: gq.Explanation}
	rows, err := f.store.Query(ctx, gq.SQL)
	if err != nil {
		outcome.Result = agents.FetchResult{Success: false, Error: err.Error()}
		return outcome, nil
	}
	outcome.Result = agents.FetchResult{Success: true, Rows: rows, RowCount: len(rows)}
	return outcome, nil
}

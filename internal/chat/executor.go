package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/cancel"
	"github.com/antoniostano/datachat/internal/query"
	"github.com/antoniostano/datachat/internal/reliability"
)

const (
	// DefaultMaxRetries is how many corrective re-generations follow a failed
	// query, so the default attempt budget is three.
	DefaultMaxRetries = 2

	retryBackoffBase = 200 * time.Millisecond
	retryBackoffCap  = 2 * time.Second
)

// FetchExecutor drives the fetch capability with a bounded corrective retry
// loop. A failed execution is fed back to the query generator together with
// the SQL and the database's error text; each retry works from the original
// input so corrections do not compound.
type FetchExecutor struct {
	fetcher    query.Fetcher
	maxRetries int
}

func NewFetchExecutor(fetcher query.Fetcher, maxRetries int) *FetchExecutor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &FetchExecutor{fetcher: fetcher, maxRetries: maxRetries}
}

// Execute runs up to maxRetries+1 fetch attempts. Every failed outcome with
// attempts remaining gets a corrective retry; the generator sees the error
// text and decides for itself whether the query can be repaired. Execute
// returns the first successful or clarification outcome, or the last failed
// outcome once the budget is spent. The token is polled before every attempt;
// a set token aborts with cancel.ErrCancelled. The returned attempt count is
// how many attempts actually ran.
func (e *FetchExecutor) Execute(ctx context.Context, input string, hist []agents.Message, tok *cancel.Token) (agents.QueryOutcome, int, error) {
	budget := e.maxRetries + 1
	attemptInput := input

	var outcome agents.QueryOutcome
	for attempt := 1; attempt <= budget; attempt++ {
		if tok.Cancelled() {
			return agents.QueryOutcome{}, attempt - 1, cancel.ErrCancelled
		}

		out, err := e.fetcher.Fetch(ctx, attemptInput, hist)
		if err != nil {
			return agents.QueryOutcome{}, attempt, err
		}
		outcome = out
		if out.NeedsClarification || out.Result.Success {
			return outcome, attempt, nil
		}

		if attempt == budget {
			return outcome, attempt, nil
		}

		attemptInput = correctiveInput(input, out)
		if err := sleep(ctx, reliability.ExponentialBackoff(attempt-1, retryBackoffBase, retryBackoffCap)); err != nil {
			return outcome, attempt, err
		}
	}
	return outcome, budget, nil
}

// correctiveInput rebuilds the generator input from the original question plus
// the failure, so the next attempt sees what went wrong without inheriting a
// previous correction's phrasing.
func correctiveInput(original string, out agents.QueryOutcome) string {
	return fmt.Sprintf(
		"%s\n\nThe previous query attempt failed.\nSQL: %s\nError: %s\nRe-check the schema and write a corrected query answering the original question.",
		original, out.SQL, out.Result.Error)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

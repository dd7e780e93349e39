// Package cancel provides the cooperative cancellation signal threaded through
// a turn's pipeline. Cancellation is polled at stage boundaries, never
// preemptive: in-flight model calls finish, but no further work starts.
package cancel

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled marks a turn aborted by user request. It is a distinct signal,
// not a fetch failure: callers must not treat it as retryable.
var ErrCancelled = errors.New("turn cancelled")

// Token is a set-once, read-many cancellation flag shared by reference across
// one turn's pipeline invocation.
type Token struct {
	set atomic.Bool
}

func NewToken() *Token { return &Token{} }

// Set requests cancellation. Safe to call multiple times and from any
// goroutine; later calls are no-ops.
func (t *Token) Set() {
	if t == nil {
		return
	}
	t.set.Store(true)
}

// Cancelled reports whether cancellation was requested. A nil token never
// cancels, so optional call sites need no guard.
func (t *Token) Cancelled() bool {
	return t != nil && t.set.Load()
}

// Err returns ErrCancelled when the token is set, nil otherwise.
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Package cache holds per-session query results so follow-up questions can
// reuse data without re-fetching.
package cache

import (
	"sync"

	"github.com/antoniostano/datachat/internal/agents"
)

// LatestKey is the reserved alias that always points at the most recent
// successful fetch in a session.
const LatestKey = "latest"

type entry struct {
	key     string
	outcome agents.QueryOutcome
}

// ResultCache is an insertion-ordered map of cache key to query outcome.
// Insertion order is the sole recency signal: two fetches can complete within
// the same clock tick, so timestamps are never used for ordering.
type ResultCache struct {
	mu      sync.Mutex
	entries []entry
}

func NewResultCache() *ResultCache { return &ResultCache{} }

// Put stores an outcome under key. Re-putting an existing key updates the
// value in place without changing its insertion position.
func (c *ResultCache) Put(key string, outcome agents.QueryOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].key == key {
			c.entries[i].outcome = outcome
			return
		}
	}
	c.entries = append(c.entries, entry{key: key, outcome: outcome})
}

// Get returns the outcome stored under key, or nil.
func (c *ResultCache) Get(key string) *agents.QueryOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].key == key {
			out := c.entries[i].outcome
			return &out
		}
	}
	return nil
}

// GetLatest returns the "latest"-keyed outcome if present, otherwise the most
// recently inserted entry, otherwise nil.
func (c *ResultCache) GetLatest() *agents.QueryOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].key == LatestKey {
			out := c.entries[i].outcome
			return &out
		}
	}
	if len(c.entries) == 0 {
		return nil
	}
	out := c.entries[len(c.entries)-1].outcome
	return &out
}

// EvictKeepLastN drops old entries, keeping "latest" unconditionally plus the
// most recent n-1 others (n when no "latest" exists). Idempotent; safe to call
// after every successful fetch.
func (c *ResultCache) EvictKeepLastN(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) <= n {
		return
	}

	var latest *entry
	rest := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.key == LatestKey {
			ecopy := e
			latest = &ecopy
			continue
		}
		rest = append(rest, e)
	}

	keep := n
	if latest != nil {
		keep = n - 1
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}

	out := make([]entry, 0, keep+1)
	if latest != nil {
		out = append(out, *latest)
	}
	out = append(out, rest...)
	c.entries = out
}

// Len reports the number of cached entries, the "latest" alias included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cache keys in insertion order.
func (c *ResultCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.key
	}
	return keys
}

package cache

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/antoniostano/datachat/internal/agents"
)

func outcome(sql string) agents.QueryOutcome {
	return agents.QueryOutcome{
		SQL:    sql,
		Result: agents.FetchResult{Success: true, RowCount: 1},
	}
}

func TestPutGet(t *testing.T) {
	c := NewResultCache()
	c.Put("abc_1", outcome("SELECT 1"))

	got := c.Get("abc_1")
	if got == nil || got.SQL != "SELECT 1" {
		t.Fatalf("Get(abc_1) = %+v, want SELECT 1", got)
	}
	if c.Get("missing") != nil {
		t.Fatalf("Get(missing) should be nil")
	}
}

func TestGetLatestPrefersAlias(t *testing.T) {
	c := NewResultCache()
	c.Put("a_1", outcome("SELECT a"))
	c.Put(LatestKey, outcome("SELECT a"))
	c.Put("b_2", outcome("SELECT b"))
	c.Put(LatestKey, outcome("SELECT b"))

	got := c.GetLatest()
	if got == nil || got.SQL != "SELECT b" {
		t.Fatalf("GetLatest() = %+v, want SELECT b", got)
	}
}

func TestGetLatestFallsBackToLastInserted(t *testing.T) {
	c := NewResultCache()
	if c.GetLatest() != nil {
		t.Fatalf("GetLatest() on empty cache should be nil")
	}

	c.Put("a_1", outcome("SELECT a"))
	c.Put("b_2", outcome("SELECT b"))
	got := c.GetLatest()
	if got == nil || got.SQL != "SELECT b" {
		t.Fatalf("GetLatest() = %+v, want last inserted SELECT b", got)
	}
}

func TestPutExistingKeyKeepsPosition(t *testing.T) {
	c := NewResultCache()
	c.Put("a_1", outcome("SELECT a"))
	c.Put("b_2", outcome("SELECT b"))
	c.Put("a_1", outcome("SELECT a2"))

	if got := c.Get("a_1"); got == nil || got.SQL != "SELECT a2" {
		t.Fatalf("Get(a_1) = %+v, want updated SELECT a2", got)
	}
	want := []string{"a_1", "b_2"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
}

func TestEvictKeepLastN(t *testing.T) {
	c := NewResultCache()
	for i := 1; i <= 7; i++ {
		c.Put(fmt.Sprintf("k%d", i), outcome(fmt.Sprintf("SELECT %d", i)))
	}
	c.Put(LatestKey, outcome("SELECT 7"))

	c.EvictKeepLastN(5)

	if c.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", c.Len())
	}
	if c.Get(LatestKey) == nil {
		t.Fatalf("latest alias must survive eviction")
	}
	for _, key := range []string{"k4", "k5", "k6", "k7"} {
		if c.Get(key) == nil {
			t.Fatalf("recent key %s should survive eviction", key)
		}
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if c.Get(key) != nil {
			t.Fatalf("old key %s should be evicted", key)
		}
	}
}

func TestEvictIsIdempotent(t *testing.T) {
	c := NewResultCache()
	for i := 1; i <= 7; i++ {
		c.Put(fmt.Sprintf("k%d", i), outcome("SELECT 1"))
	}
	c.Put(LatestKey, outcome("SELECT 1"))

	c.EvictKeepLastN(5)
	first := c.Keys()
	c.EvictKeepLastN(5)
	if got := c.Keys(); !reflect.DeepEqual(got, first) {
		t.Fatalf("second eviction changed keys: %v != %v", got, first)
	}
}

func TestEvictNoOpWhenUnderLimit(t *testing.T) {
	c := NewResultCache()
	c.Put("k1", outcome("SELECT 1"))
	c.Put(LatestKey, outcome("SELECT 1"))

	c.EvictKeepLastN(5)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

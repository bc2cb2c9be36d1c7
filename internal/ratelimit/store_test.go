package ratelimit

import (
	"testing"
	"time"
)

func TestMemoryStore_Basics(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	store.Set("a", &Entry{Hits: []time.Time{now}, Reset: now.Add(time.Minute)})
	entry, ok := store.Get("a")
	if !ok || len(entry.Hits) != 1 {
		t.Fatalf("expected stored entry with 1 hit, got ok=%v", ok)
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Fatal("expected deleted key to miss")
	}
}

func TestMemoryStore_ForEach(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	store.Set("a", &Entry{Reset: now})
	store.Set("b", &Entry{Reset: now})

	seen := map[string]bool{}
	store.ForEach(func(key string, _ *Entry) {
		seen[key] = true
	})
	if !seen["a"] || !seen["b"] || len(seen) != 2 {
		t.Fatalf("expected to visit both keys, saw %v", seen)
	}
}

func TestMemoryStore_SweepDeletesStaleEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	store.Set("stale", &Entry{Reset: now.Add(-time.Second)})
	store.Set("fresh", &Entry{Reset: now.Add(time.Minute)})

	store.sweep(now)

	if _, ok := store.Get("stale"); ok {
		t.Fatal("expected stale entry to be swept")
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatal("expected fresh entry to survive the sweep")
	}
}

func TestMemoryStore_SweepLifecycle(t *testing.T) {
	store := NewMemoryStore()

	store.StartSweep(10 * time.Millisecond)
	store.StartSweep(10 * time.Millisecond) // second start is a no-op

	store.Set("stale", &Entry{Reset: time.Unix(0, 0)})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := store.Get("stale"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweep did not remove stale entry in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.StopSweep()
	store.StopSweep() // second stop is a no-op
}

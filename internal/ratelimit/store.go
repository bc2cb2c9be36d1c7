package ratelimit

import (
	"sync"
	"time"
)

// Entry tracks the counted hits for one partition key.
type Entry struct {
	Hits  []time.Time // Accepted hit times within the tracked window, oldest first.
	Reset time.Time   // Advisory purge time; counting never depends on it.
}

// Store persists rate limit entries per partition key.
type Store interface {
	Get(key string) (*Entry, bool)
	Set(key string, entry *Entry)
	Delete(key string)
	ForEach(fn func(key string, entry *Entry))
}

// MemoryStore is an in-process Store with an optional background sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the entry for key.
func (s *MemoryStore) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Set stores the entry for key.
func (s *MemoryStore) Set(key string, entry *Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// ForEach visits every stored entry.
func (s *MemoryStore) ForEach(fn func(key string, entry *Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		fn(key, entry)
	}
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartSweep launches a background task that deletes fully stale entries
// every interval, bounding memory growth from abandoned keys. Correctness
// never depends on it: checks prune lazily. Calling StartSweep twice is a
// no-op until StopSweep runs.
func (s *MemoryStore) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	if s.sweepStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.sweepStop = stop
	s.sweepDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

// StopSweep stops the background sweep and waits for it to exit.
func (s *MemoryStore) StopSweep() {
	s.mu.Lock()
	stop := s.sweepStop
	done := s.sweepDone
	s.sweepStop = nil
	s.sweepDone = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// sweep deletes entries whose advisory reset time has passed.
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if entry == nil || now.After(entry.Reset) {
			delete(s.entries, key)
		}
	}
}

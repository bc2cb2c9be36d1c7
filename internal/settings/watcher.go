package settings

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Default timings for the refresh loop.
const (
	// DefaultPollInterval controls how often the DB snapshot is refreshed.
	DefaultPollInterval = 15 * time.Second
	// defaultQueryTimeout bounds DB query duration per refresh.
	defaultQueryTimeout = 10 * time.Second
)

// Watcher periodically reloads the settings snapshot from the database so
// changes made by another instance become visible without a restart.
type Watcher struct {
	db       *gorm.DB
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewWatcher constructs a Watcher. A non-positive interval falls back to
// DefaultPollInterval.
func NewWatcher(db *gorm.DB, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{db: db, interval: interval}
}

// Start launches the refresh loop. Starting a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.refresh()
			case <-stop:
				return
			}
		}
	}(w.stop, w.done)
}

// Stop halts the refresh loop and waits for it to exit. Stopping a stopped
// watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *Watcher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if errRefresh := Refresh(ctx, w.db); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: snapshot refresh failed")
	}
}

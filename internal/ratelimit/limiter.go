package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// globalKey buckets requests whose partition key could not be resolved.
const globalKey = "global"

// Limiter enforces a sliding-window request quota per partition key.
//
// Every counted request is remembered as a timestamp; a request is rejected
// once the number of timestamps inside the trailing window reaches the
// configured quota. The window trails the evaluation instant, so clients
// cannot burst across a fixed-window boundary.
type Limiter struct {
	opts  Options
	store Store
	now   func() time.Time

	// mu serializes the read-prune-compare-append sequence so two
	// concurrent requests cannot both take the last remaining slot.
	mu sync.Mutex
}

// New constructs a Limiter. Non-positive Window or MaxRequests is a
// programmer error and is rejected here, never at request time.
func New(opts Options) (*Limiter, error) {
	if opts.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: non-positive window %s", opts.Window)
	}
	if opts.MaxRequests <= 0 {
		return nil, fmt.Errorf("ratelimit: non-positive max requests %d", opts.MaxRequests)
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = ClientIPKey
	}
	if opts.Message == "" {
		opts.Message = defaultMessage
	}
	if opts.Headers <= HeaderStyleDefault || opts.Headers > HeaderStyleBoth {
		opts.Headers = HeaderStyleBoth
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}
	return &Limiter{opts: opts, store: opts.Store, now: opts.NowFunc}, nil
}

// Options returns a copy of the limiter configuration.
func (l *Limiter) Options() Options {
	return l.opts
}

// Check decides whether the request may proceed. It always produces a
// decision: a failing key generator degrades to the configured failure
// mode instead of propagating.
func (l *Limiter) Check(r *http.Request) Result {
	key, ok := l.resolveKey(r)
	if !ok || key == "" {
		if l.opts.FailClosed {
			now := l.now()
			return l.rejected(globalKey, now.Add(l.opts.Window), now)
		}
		key = globalKey
	}

	var ctx context.Context = context.Background()
	if r != nil {
		ctx = r.Context()
	}
	return l.CheckKey(ctx, key)
}

// CheckKey runs the quota check for an already-resolved partition key.
func (l *Limiter) CheckKey(ctx context.Context, key string) Result {
	now := l.now()
	if key == "" {
		key = globalKey
	}

	if l.opts.Remote != nil {
		if result, ok := l.opts.Remote.Allow(ctx, key, l.opts.MaxRequests, l.opts.Window, now); ok {
			return result
		}
	}
	return l.checkLocal(key, now)
}

// checkLocal runs the sliding-window check against the local store.
func (l *Limiter) checkLocal(key string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store.Get(key)
	if ok && now.After(entry.Reset) {
		l.store.Delete(key)
		ok = false
	}
	if !ok || entry == nil {
		entry = &Entry{Reset: now.Add(l.opts.Window)}
	}

	cutoff := now.Add(-l.opts.Window)
	kept := entry.Hits[:0]
	for _, ts := range entry.Hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	entry.Hits = kept

	if len(entry.Hits) >= l.opts.MaxRequests {
		// Rejected attempts are not recorded.
		l.store.Set(key, entry)
		return l.rejected(key, entry.Reset, now)
	}

	entry.Hits = append(entry.Hits, now)
	l.store.Set(key, entry)
	return Result{
		Allowed:   true,
		Key:       key,
		Limit:     l.opts.MaxRequests,
		Remaining: l.opts.MaxRequests - len(entry.Hits),
		Reset:     entry.Reset,
	}
}

// rejected builds a rejection result from the stored reset time, so repeated
// rejections report a shrinking retry time instead of restarting the clock.
func (l *Limiter) rejected(key string, reset, now time.Time) Result {
	retryAfter := int(math.Ceil(reset.Sub(now).Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Result{
		Allowed:    false,
		Key:        key,
		Limit:      l.opts.MaxRequests,
		Remaining:  0,
		Reset:      reset,
		RetryAfter: retryAfter,
	}
}

// resolveKey applies the key generator, recovering a panic so a partitioning
// defect can never crash the request pipeline.
func (l *Limiter) resolveKey(r *http.Request) (key string, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.WithField("panic", recovered).Warn("rate limit: key generator panicked")
			key = ""
			ok = false
		}
	}()
	return l.opts.KeyFunc(r), true
}

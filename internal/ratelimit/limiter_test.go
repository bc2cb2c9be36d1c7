package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// testClock is a hand-advanced clock for deterministic window tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, opts Options) (*Limiter, *testClock) {
	t.Helper()
	clock := newTestClock()
	opts.NowFunc = clock.Now
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	limiter, err := New(opts)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, clock
}

func TestNew_RejectsMisconfiguration(t *testing.T) {
	if _, err := New(Options{Window: 0, MaxRequests: 5}); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := New(Options{Window: -time.Second, MaxRequests: 5}); err == nil {
		t.Fatal("expected error for negative window")
	}
	if _, err := New(Options{Window: time.Minute, MaxRequests: 0}); err == nil {
		t.Fatal("expected error for zero max requests")
	}
}

func TestNew_HeaderStyleDefaults(t *testing.T) {
	limiter, err := New(Options{Window: time.Minute, MaxRequests: 5})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if got := limiter.Options().Headers; got != HeaderStyleBoth {
		t.Fatalf("unset headers: expected HeaderStyleBoth, got %d", got)
	}

	limiter, err = New(Options{Window: time.Minute, MaxRequests: 5, Headers: HeaderStyleNone})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if got := limiter.Options().Headers; got != HeaderStyleNone {
		t.Fatalf("explicit none: expected HeaderStyleNone, got %d", got)
	}
}

func TestCheckKey_WindowCorrectness(t *testing.T) {
	limiter, clock := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 3})
	ctx := context.Background()

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		result := limiter.CheckKey(ctx, "ip:1.2.3.4")
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if result.Remaining != want {
			t.Fatalf("request %d: expected remaining=%d, got %d", i, want, result.Remaining)
		}
		clock.Advance(10 * time.Millisecond)
	}

	result := limiter.CheckKey(ctx, "ip:1.2.3.4")
	if result.Allowed {
		t.Fatal("expected rejection once quota is exhausted")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected remaining=0 on rejection, got %d", result.Remaining)
	}
	if result.RetryAfter != 60 {
		t.Fatalf("expected retryAfter=60, got %d", result.RetryAfter)
	}
}

func TestCheckKey_WindowSlides(t *testing.T) {
	store := NewMemoryStore()
	limiter, clock := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 3, Store: store})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if result := limiter.CheckKey(ctx, "k"); !result.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		clock.Advance(10 * time.Millisecond)
	}
	if result := limiter.CheckKey(ctx, "k"); result.Allowed {
		t.Fatal("expected rejection before the oldest hit expires")
	}

	// Once the oldest hit has aged out, the quota reopens and only one
	// hit is tracked afterwards, proving the window slides rather than
	// resetting in bulk.
	clock.Advance(61 * time.Second)
	result := limiter.CheckKey(ctx, "k")
	if !result.Allowed {
		t.Fatal("expected acceptance after the window slid past the oldest hit")
	}
	if result.Remaining != 2 {
		t.Fatalf("expected remaining=2 after sliding, got %d", result.Remaining)
	}
	entry, ok := store.Get("k")
	if !ok {
		t.Fatal("expected entry for key")
	}
	if len(entry.Hits) != 1 {
		t.Fatalf("expected 1 tracked hit after sliding, got %d", len(entry.Hits))
	}
}

func TestCheckKey_RejectionDoesNotCount(t *testing.T) {
	store := NewMemoryStore()
	limiter, _ := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 3, Store: store})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		limiter.CheckKey(ctx, "k")
	}
	entry, ok := store.Get("k")
	if !ok {
		t.Fatal("expected entry for key")
	}
	if len(entry.Hits) != 3 {
		t.Fatalf("expected 3 stored hits after 8 rapid requests, got %d", len(entry.Hits))
	}
}

func TestCheckKey_IndependentKeys(t *testing.T) {
	limiter, _ := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 2})
	ctx := context.Background()

	limiter.CheckKey(ctx, "a")
	limiter.CheckKey(ctx, "a")
	if result := limiter.CheckKey(ctx, "a"); result.Allowed {
		t.Fatal("expected key a to be exhausted")
	}

	result := limiter.CheckKey(ctx, "b")
	if !result.Allowed {
		t.Fatal("expected key b to be unaffected")
	}
	if result.Remaining != 1 {
		t.Fatalf("expected key b remaining=1, got %d", result.Remaining)
	}
}

func TestCheckKey_RetryAfterShrinks(t *testing.T) {
	limiter, clock := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	limiter.CheckKey(ctx, "k")
	first := limiter.CheckKey(ctx, "k")
	if first.Allowed || first.RetryAfter != 60 {
		t.Fatalf("expected rejection with retryAfter=60, got allowed=%v retryAfter=%d", first.Allowed, first.RetryAfter)
	}

	clock.Advance(25 * time.Second)
	second := limiter.CheckKey(ctx, "k")
	if second.Allowed {
		t.Fatal("expected rejection while the hit is still in window")
	}
	if second.RetryAfter != 35 {
		t.Fatalf("expected retryAfter to shrink to 35, got %d", second.RetryAfter)
	}
	if !second.Reset.Equal(first.Reset) {
		t.Fatalf("expected stored reset to stay fixed, got %s then %s", first.Reset, second.Reset)
	}
}

func TestCheckKey_ConcreteScenario(t *testing.T) {
	limiter, clock := newTestLimiter(t, Options{Window: 60000 * time.Millisecond, MaxRequests: 3})
	ctx := context.Background()

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		result := limiter.CheckKey(ctx, "ip:1.2.3.4")
		if !result.Allowed || result.Remaining != want {
			t.Fatalf("request %d: expected allowed with remaining=%d, got allowed=%v remaining=%d",
				i, want, result.Allowed, result.Remaining)
		}
		clock.Advance(10 * time.Millisecond)
	}

	rejected := limiter.CheckKey(ctx, "ip:1.2.3.4")
	if rejected.Allowed {
		t.Fatal("expected rejection at 30ms")
	}
	if rejected.RetryAfter != 60 {
		t.Fatalf("expected retryAfter=60s, got %d", rejected.RetryAfter)
	}

	clock.Advance(60970 * time.Millisecond) // now at 61000ms
	accepted := limiter.CheckKey(ctx, "ip:1.2.3.4")
	if !accepted.Allowed {
		t.Fatal("expected acceptance at 61000ms")
	}
	if accepted.Remaining != 2 {
		t.Fatalf("expected remaining=2 at 61000ms, got %d", accepted.Remaining)
	}
}

func TestCheckKey_SweepNotRequired(t *testing.T) {
	// The sweep never runs here; lazy pruning alone must produce every
	// outcome above. Spot-check the slide scenario.
	store := NewMemoryStore()
	limiter, clock := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 2, Store: store})
	ctx := context.Background()

	limiter.CheckKey(ctx, "k")
	limiter.CheckKey(ctx, "k")
	if result := limiter.CheckKey(ctx, "k"); result.Allowed {
		t.Fatal("expected rejection")
	}
	clock.Advance(2 * time.Minute)
	if result := limiter.CheckKey(ctx, "k"); !result.Allowed {
		t.Fatal("expected acceptance after expiry without any sweep")
	}
}

func TestCheck_EmptyKeyFailOpen(t *testing.T) {
	limiter, _ := newTestLimiter(t, Options{
		Window:      time.Minute,
		MaxRequests: 5,
		KeyFunc:     func(*http.Request) string { return "" },
	})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	result := limiter.Check(req)
	if !result.Allowed {
		t.Fatal("expected fail-open acceptance for empty key")
	}
	if result.Key != "global" {
		t.Fatalf("expected global bucket, got %q", result.Key)
	}
}

func TestCheck_EmptyKeyFailClosed(t *testing.T) {
	limiter, _ := newTestLimiter(t, Options{
		Window:      time.Minute,
		MaxRequests: 5,
		KeyFunc:     func(*http.Request) string { return "" },
		FailClosed:  true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	result := limiter.Check(req)
	if result.Allowed {
		t.Fatal("expected fail-closed rejection for empty key")
	}
}

func TestCheck_PanickingKeyGeneratorFailsOpen(t *testing.T) {
	store := NewMemoryStore()
	limiter, _ := newTestLimiter(t, Options{
		Window:      time.Minute,
		MaxRequests: 5,
		KeyFunc:     func(*http.Request) string { panic("boom") },
		Store:       store,
	})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	result := limiter.Check(req)
	if !result.Allowed {
		t.Fatal("expected fail-open acceptance when the key generator panics")
	}
	if result.Key != "global" {
		t.Fatalf("expected global bucket, got %q", result.Key)
	}
}

func TestCheckKey_ConcurrentCeiling(t *testing.T) {
	limiter, _ := newTestLimiter(t, Options{Window: time.Minute, MaxRequests: 50})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckKey(ctx, "shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 accepted requests, got %d", allowed)
	}
}

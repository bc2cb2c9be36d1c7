package ratelimit

import (
	"context"
	"testing"
)

func TestNewSet(t *testing.T) {
	store := NewMemoryStore()
	set, err := NewSet(store, nil)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}

	for name, limiter := range map[string]*Limiter{
		"auth":      set.Auth,
		"api":       set.API,
		"upload":    set.Upload,
		"sensitive": set.Sensitive,
		"per-user":  set.PerUser,
	} {
		if limiter == nil {
			t.Fatalf("expected %s limiter", name)
		}
	}

	if !set.Auth.Options().FailClosed || !set.Sensitive.Options().FailClosed {
		t.Fatal("expected auth and sensitive limiters to fail closed")
	}
	if set.API.Options().FailClosed {
		t.Fatal("expected api limiter to fail open")
	}
}

func TestNewSet_LimitersEmitQuotaHeaders(t *testing.T) {
	set, err := NewSet(NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}

	// None of the presets picks a header style, so all of them must land
	// on the default and attach quota metadata to responses.
	for name, limiter := range map[string]*Limiter{
		"auth":      set.Auth,
		"api":       set.API,
		"upload":    set.Upload,
		"sensitive": set.Sensitive,
		"per-user":  set.PerUser,
	} {
		if got := limiter.Options().Headers; got != HeaderStyleBoth {
			t.Fatalf("%s limiter: expected HeaderStyleBoth, got %d", name, got)
		}
	}
}

func TestSet_DistinctQuotaBuckets(t *testing.T) {
	store := NewMemoryStore()
	set, err := NewSet(store, nil)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	ctx := context.Background()

	// Exhausting the auth quota must not consume upload quota for the
	// same address: the presets key under distinct prefixes.
	for i := 0; i < set.Auth.Options().MaxRequests; i++ {
		if result := set.Auth.CheckKey(ctx, "auth:1.2.3.4"); !result.Allowed {
			t.Fatalf("auth request %d: expected allowed", i)
		}
	}
	if result := set.Auth.CheckKey(ctx, "auth:1.2.3.4"); result.Allowed {
		t.Fatal("expected auth quota exhausted")
	}
	if result := set.Upload.CheckKey(ctx, "upload:1.2.3.4"); !result.Allowed {
		t.Fatal("expected upload quota unaffected")
	}
}

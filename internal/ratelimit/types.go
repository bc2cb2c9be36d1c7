package ratelimit

import (
	"net/http"
	"time"
)

// HeaderStyle selects which quota header convention responses carry.
type HeaderStyle int

// HeaderStyle constants define the supported header conventions. The zero
// value is "unset" so suppressing headers is always an explicit choice.
const (
	// HeaderStyleDefault defers the choice to the limiter, which maps it
	// to HeaderStyleBoth.
	HeaderStyleDefault HeaderStyle = iota
	// HeaderStyleNone attaches no quota headers.
	HeaderStyleNone
	// HeaderStyleModern attaches RateLimit-* headers (reset as ISO-8601).
	HeaderStyleModern
	// HeaderStyleLegacy attaches X-RateLimit-* headers (reset as epoch seconds).
	HeaderStyleLegacy
	// HeaderStyleBoth attaches both conventions.
	HeaderStyleBoth
)

// KeyFunc maps an incoming request to a partition key.
type KeyFunc func(r *http.Request) string

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Key        string
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // Seconds until retry, set on rejection only.
}

// Options configures one limiter instance.
type Options struct {
	// Window is the width of the trailing window. Must be positive.
	Window time.Duration
	// MaxRequests is the accepted hit quota per key per window. Must be positive.
	MaxRequests int
	// KeyFunc partitions requests into quota buckets. Defaults to ClientIPKey.
	KeyFunc KeyFunc
	// Message is the rejection reason returned to callers.
	Message string
	// Headers selects the quota header convention. Defaults to HeaderStyleBoth.
	Headers HeaderStyle
	// FailClosed rejects requests whose key cannot be resolved instead of
	// falling back to a shared global bucket.
	FailClosed bool
	// Store holds per-key entries. Defaults to a fresh MemoryStore.
	Store Store
	// Remote optionally checks the quota against a shared backend first,
	// falling back to the local store when unavailable.
	Remote *Manager
	// NowFunc overrides the clock, for tests. Defaults to time.Now.
	NowFunc func() time.Time
}

const defaultMessage = "too many requests, please try again later"

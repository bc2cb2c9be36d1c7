package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type contextKey struct{}

// subjectContextKey carries the authenticated subject ID for per-user keying.
var subjectContextKey contextKey

// loopbackAddr is the documented fallback when no address header is present.
// Under a direct (non-proxied) deployment this collapses all direct clients
// into one shared bucket; deployments without a reverse proxy should prefer
// FailClosed instances or front the service with one.
const loopbackAddr = "127.0.0.1"

// ClientIP extracts the caller network address from forwarded-for/real-ip
// headers, first value if comma-separated, falling back to loopback.
func ClientIP(r *http.Request) string {
	if r == nil {
		return loopbackAddr
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		if addr := strings.TrimSpace(forwarded); addr != "" {
			return addr
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return loopbackAddr
}

// ClientIPKey partitions requests by caller network address.
func ClientIPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// PrefixedIPKey partitions by caller address under a distinct prefix, so a
// dedicated quota (for example uploads) never shares buckets with general
// traffic from the same address.
func PrefixedIPKey(prefix string) KeyFunc {
	prefix = strings.TrimSpace(prefix)
	return func(r *http.Request) string {
		if prefix == "" {
			return ClientIPKey(r)
		}
		return prefix + ":" + ClientIP(r)
	}
}

// ContextWithSubject returns a context carrying the authenticated subject ID.
// Auth middleware stores it so SubjectKey can partition per user.
func ContextWithSubject(ctx context.Context, subjectID uint64) context.Context {
	return context.WithValue(ctx, subjectContextKey, subjectID)
}

// SubjectFromContext returns the authenticated subject ID, if any.
func SubjectFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(subjectContextKey).(uint64)
	return id, ok && id > 0
}

// SubjectKey partitions by authenticated subject ID when available, else
// falls back to address-based keying. The fallback carries its own prefix
// so a per-user limiter never shares an entry, and therefore a store slot,
// with an address-keyed limiter on the same store.
func SubjectKey(r *http.Request) string {
	if r != nil {
		if id, ok := SubjectFromContext(r.Context()); ok {
			return "user:" + strconv.FormatUint(id, 10)
		}
	}
	return "user-ip:" + ClientIP(r)
}

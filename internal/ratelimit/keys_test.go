package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP_ForwardedForFirstValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1, 10.0.0.2")

	if got := ClientIP(req); got != "203.0.113.5" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
}

func TestClientIP_RealIPFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if got := ClientIP(req); got != "198.51.100.7" {
		t.Fatalf("expected real-ip address, got %q", got)
	}
}

func TestClientIP_LoopbackFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ClientIP(req); got != "127.0.0.1" {
		t.Fatalf("expected loopback fallback, got %q", got)
	}
}

func TestPrefixedIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if got := PrefixedIPKey("upload")(req); got != "upload:198.51.100.7" {
		t.Fatalf("unexpected prefixed key %q", got)
	}
	if got := PrefixedIPKey("  ")(req); got != "ip:198.51.100.7" {
		t.Fatalf("expected blank prefix to fall back to ip key, got %q", got)
	}
}

func TestSubjectKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if got := SubjectKey(req); got != "user-ip:198.51.100.7" {
		t.Fatalf("expected address fallback without subject, got %q", got)
	}

	req = req.WithContext(ContextWithSubject(req.Context(), 42))
	if got := SubjectKey(req); got != "user:42" {
		t.Fatalf("expected subject key, got %q", got)
	}
}

func TestSubjectKey_FallbackNeverCollidesWithIPKey(t *testing.T) {
	// Both key funcs can run against one shared store; the fallback must
	// partition separately from plain address keying.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if SubjectKey(req) == ClientIPKey(req) {
		t.Fatalf("subject fallback %q must differ from ip key %q", SubjectKey(req), ClientIPKey(req))
	}
}

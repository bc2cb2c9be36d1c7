package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, opts Options) (*gin.Engine, *testClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	limiter, clock := newTestLimiter(t, opts)
	r := gin.New()
	r.GET("/api", Middleware(limiter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, clock
}

func doRequest(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("X-Real-IP", addr)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_HeaderAccuracy(t *testing.T) {
	r, _ := newTestRouter(t, Options{Window: time.Minute, MaxRequests: 3})

	wantRemaining := []string{"2", "1", "0"}
	for i, want := range wantRemaining {
		w := doRequest(r, "1.2.3.4")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if got := w.Header().Get("RateLimit-Limit"); got != "3" {
			t.Fatalf("request %d: expected RateLimit-Limit=3, got %q", i, got)
		}
		if got := w.Header().Get("RateLimit-Remaining"); got != want {
			t.Fatalf("request %d: expected RateLimit-Remaining=%s, got %q", i, want, got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Fatalf("request %d: expected X-RateLimit-Remaining=%s, got %q", i, want, got)
		}
		if _, errParse := time.Parse(time.RFC3339, w.Header().Get("RateLimit-Reset")); errParse != nil {
			t.Fatalf("request %d: modern reset is not ISO-8601: %v", i, errParse)
		}
		if _, errParse := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64); errParse != nil {
			t.Fatalf("request %d: legacy reset is not epoch seconds: %v", i, errParse)
		}
	}
}

func TestMiddleware_RejectionResponse(t *testing.T) {
	r, _ := newTestRouter(t, Options{Window: time.Minute, MaxRequests: 1, Message: "slow down"})

	doRequest(r, "1.2.3.4")
	w := doRequest(r, "1.2.3.4")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}
	if got := w.Header().Get("RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining=0 on rejection, got %q", got)
	}

	var body struct {
		Success   bool   `json:"success"`
		Error     string `json:"error"`
		Code      int    `json:"code"`
		Timestamp string `json:"timestamp"`
		Details   struct {
			Limit      int   `json:"limit"`
			WindowMs   int64 `json:"windowMs"`
			RetryAfter int   `json:"retryAfter"`
		} `json:"details"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	if body.Error != "slow down" {
		t.Fatalf("expected configured message, got %q", body.Error)
	}
	if body.Code != http.StatusTooManyRequests {
		t.Fatalf("expected code=429, got %d", body.Code)
	}
	if body.Details.Limit != 1 || body.Details.WindowMs != 60000 || body.Details.RetryAfter != 60 {
		t.Fatalf("unexpected details: %+v", body.Details)
	}
	if _, errParse := time.Parse(time.RFC3339, body.Timestamp); errParse != nil {
		t.Fatalf("timestamp is not ISO-8601: %v", errParse)
	}
}

func TestMiddleware_IndependentAddresses(t *testing.T) {
	r, _ := newTestRouter(t, Options{Window: time.Minute, MaxRequests: 1})

	doRequest(r, "1.2.3.4")
	if w := doRequest(r, "1.2.3.4"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected first address exhausted, got %d", w.Code)
	}
	if w := doRequest(r, "5.6.7.8"); w.Code != http.StatusOK {
		t.Fatalf("expected second address unaffected, got %d", w.Code)
	}
}

func TestMiddleware_HeaderStyleNone(t *testing.T) {
	r, _ := newTestRouter(t, Options{Window: time.Minute, MaxRequests: 1, Headers: HeaderStyleNone})

	w := doRequest(r, "1.2.3.4")
	if w.Header().Get("RateLimit-Limit") != "" || w.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("expected no quota headers")
	}
}

func TestMiddleware_HeaderStyleModernOnly(t *testing.T) {
	r, _ := newTestRouter(t, Options{Window: time.Minute, MaxRequests: 2, Headers: HeaderStyleModern})

	w := doRequest(r, "1.2.3.4")
	if w.Header().Get("RateLimit-Limit") == "" {
		t.Fatal("expected modern headers")
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("expected no legacy headers")
	}
}

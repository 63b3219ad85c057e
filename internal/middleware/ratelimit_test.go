package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote, agent string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	req.RemoteAddr = remote
	if agent != "" {
		req.Header.Set("X-Agent-Type", agent)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 3, nil)
	h := rl.Handler(okHandler())

	for i := range 3 {
		if rec := hit(h, "192.168.1.1:4000", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := hit(h, "192.168.1.1:4000", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 1, nil)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	hit(h, "10.0.0.1:1", "")
	if rec := hit(h, "10.0.0.1:1", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	now = now.Add(500 * time.Millisecond)
	if rec := hit(h, "10.0.0.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected refill after 500ms, got %d", rec.Code)
	}
}

func TestRateLimiter_ByHeader(t *testing.T) {
	rl := NewRateLimiter(1, 1, ByHeader("X-Agent-Type"))
	h := rl.Handler(okHandler())

	hit(h, "10.0.0.1:1", "qa-engineer")
	if rec := hit(h, "10.0.0.1:1", "qa-engineer"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("qa-engineer: expected 429, got %d", rec.Code)
	}
	if rec := hit(h, "10.0.0.1:1", "architect"); rec.Code != http.StatusOK {
		t.Fatalf("architect has its own bucket, got %d", rec.Code)
	}
	if rec := hit(h, "10.0.0.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("no header falls back to the IP bucket, got %d", rec.Code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	hit(h, "10.0.0.1:1", "")
	hit(h, "10.0.0.2:1", "")
	now = now.Add(time.Hour)
	hit(h, "10.0.0.2:1", "")

	rl.cleanup(time.Minute)
	if rl.Len() != 1 {
		t.Fatalf("expected 1 live bucket, got %d", rl.Len())
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/limiter"
)

func okHandler(called *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called++
		w.Header().Set("X-Lookup", "done")
		w.WriteHeader(http.StatusAccepted)
	})
}

// TestRateLimitMiddleware_AllowDeny tests both limiter answers
func TestRateLimitMiddleware_AllowDeny(t *testing.T) {
	tests := []struct {
		name           string
		allow          bool
		expectedStatus int
		expectedCalls  int
	}{
		{"allowed passes through", true, http.StatusAccepted, 1},
		{"denied is rejected", false, http.StatusTooManyRequests, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handler := RateLimitMiddleware(limiter.NewMockLimiter(tt.allow))(okHandler(&calls))

			req := httptest.NewRequest(http.MethodGet, "/v1/lookup?ip=8.8.8.8", nil)
			req.RemoteAddr = "192.0.2.10:40000"
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if calls != tt.expectedCalls {
				t.Errorf("expected next handler called %d times, got %d", tt.expectedCalls, calls)
			}
		})
	}
}

// TestRateLimitMiddleware_DeniedResponse tests the body and headers of a 429
func TestRateLimitMiddleware_DeniedResponse(t *testing.T) {
	handler := RateLimitMiddleware(limiter.NewMockLimiter(false))(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/lookup", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["error"] != "Rate limit exceeded. Please try again later." {
		t.Errorf("unexpected error message: %s", body["error"])
	}
}

// TestRateLimitMiddleware_PreservesResponse tests that allowed requests keep the handler's answer
func TestRateLimitMiddleware_PreservesResponse(t *testing.T) {
	calls := 0
	handler := RateLimitMiddleware(limiter.NewMockLimiter(true))(okHandler(&calls))

	req := httptest.NewRequest(http.MethodGet, "/v1/lookup", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted || rec.Header().Get("X-Lookup") != "done" {
		t.Errorf("expected handler response to be preserved, got %d %v", rec.Code, rec.Header())
	}
}

// TestRateLimitMiddleware_Keys tests which key the limiter sees
func TestRateLimitMiddleware_Keys(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xRealIP       string
		xForwardedFor string
		expectedKey   string
	}{
		{"remote addr port stripped", "192.168.1.1:12345", "", "", "client:192.168.1.1"},
		{"remote addr without port", "192.168.1.9", "", "", "client:192.168.1.9"},
		{"ipv6 remote addr", "[2001:db8::1]:8080", "", "", "client:2001:db8::1"},
		{"x-real-ip wins", "192.168.1.1:12345", "10.0.0.1", "10.0.0.2", "client:10.0.0.1"},
		{"x-forwarded-for", "192.168.1.1:12345", "", "10.0.0.2", "client:10.0.0.2"},
		{"first forwarded hop", "192.168.1.1:12345", "", "10.0.0.3, 10.0.0.4, 10.0.0.5", "client:10.0.0.3"},
		{"empty headers ignored", "192.168.1.1:12345", " ", " ", "client:192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockLimiter := limiter.NewMockLimiter(true)
			calls := 0
			handler := RateLimitMiddleware(mockLimiter)(okHandler(&calls))

			req := httptest.NewRequest(http.MethodGet, "/v1/lookup", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}

			handler.ServeHTTP(httptest.NewRecorder(), req)

			if len(mockLimiter.AllowCalls) != 1 {
				t.Fatalf("expected 1 limiter call, got %d", len(mockLimiter.AllowCalls))
			}
			if mockLimiter.AllowCalls[0] != tt.expectedKey {
				t.Errorf("expected key %s, got %s", tt.expectedKey, mockLimiter.AllowCalls[0])
			}
		})
	}
}

// TestRateLimitMiddleware_NilLimiter tests that limiting can be turned off
func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	calls := 0
	handler := RateLimitMiddleware(nil)(okHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if calls != 1 {
		t.Error("expected next handler to be called without a limiter")
	}
}

// TestRateLimitMiddleware_MemoryLimiter tests per-client buckets end to end
func TestRateLimitMiddleware_MemoryLimiter(t *testing.T) {
	lim := limiter.NewMemoryLimiter(2, time.Hour)
	defer lim.Close()

	calls := 0
	handler := RateLimitMiddleware(lim)(okHandler(&calls))

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/lookup", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Different source ports are the same client
	codes := []int{send("192.168.1.1:1000"), send("192.168.1.1:2000"), send("192.168.1.1:3000")}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 202, 202, 429, got %v", codes)
	}

	if code := send("192.168.1.2:1000"); code != http.StatusAccepted {
		t.Errorf("expected another client to have its own bucket, got %d", code)
	}
}

package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/evyataryagoni/ipgeolocation/internal/providertest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTransport(t *testing.T, opts Options) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(opts)
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	return tr
}

func lookupRequest(target string) models.LookupRequest {
	return models.LookupRequest{Target: target, APIKey: providertest.APIKey}
}

// TestHTTPTransport_Do_Success tests a 2xx exchange
func TestHTTPTransport_Do_Success(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	tr := newTransport(t, Options{BaseURL: srv.URL, Timeout: time.Second, Metrics: m})

	resp, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != providertest.GoogleDNS {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if got := testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("200")); got != 1 {
		t.Errorf("expected 1 provider request recorded, got %v", got)
	}
}

// TestHTTPTransport_Do_SelfLookup tests that an empty target hits /json/
func TestHTTPTransport_Do_SelfLookup(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()

	tr := newTransport(t, Options{BaseURL: srv.URL})

	resp, err := tr.Do(context.Background(), lookupRequest(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != providertest.Self {
		t.Errorf("expected self record, got %s", resp.Body)
	}
}

// TestHTTPTransport_Endpoint tests URL construction
func TestHTTPTransport_Endpoint(t *testing.T) {
	tr := newTransport(t, Options{BaseURL: "https://pro.ip-api.com/"})

	got := tr.endpoint(models.LookupRequest{Target: "2001:db8::1", APIKey: "k&y"})

	if !strings.HasPrefix(got, "https://pro.ip-api.com/json/2001:db8::1?") {
		t.Errorf("unexpected endpoint: %s", got)
	}
	if !strings.Contains(got, "key=k%26y") {
		t.Errorf("expected escaped key in %s", got)
	}
	if !strings.Contains(got, "fields=") {
		t.Errorf("expected fields selector in %s", got)
	}
}

// TestNewHTTPTransport_InvalidBaseURL tests constructor validation
func TestNewHTTPTransport_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "://broken"} {
		if _, err := NewHTTPTransport(Options{BaseURL: base}); err == nil {
			t.Errorf("expected error for base URL %q", base)
		}
	}
}

// TestHTTPTransport_Do_ServiceError tests non-2xx statuses
func TestHTTPTransport_Do_ServiceError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"unavailable with message", http.StatusServiceUnavailable, `{"status":"fail","message":"overloaded"}`, "overloaded"},
		{"quota exceeded", http.StatusTooManyRequests, ``, "Too Many Requests"},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := providertest.New()
			defer srv.Close()
			srv.SetStatus(tt.status, tt.body)

			tr := newTransport(t, Options{BaseURL: srv.URL, MaxRetries: 3, RetryInterval: time.Millisecond})

			resp, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
			if resp != nil {
				t.Error("expected nil response")
			}
			if !errors.Is(err, apierror.ErrService) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			apiErr, _ := apierror.As(err)
			if apiErr.RawStatus != tt.status {
				t.Errorf("expected raw status %d, got %d", tt.status, apiErr.RawStatus)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("expected message '%s', got '%s'", tt.wantMessage, apiErr.Message)
			}

			// Service errors are never retried
			if calls := len(srv.Calls()); calls != 1 {
				t.Errorf("expected 1 provider call, got %d", calls)
			}
		})
	}
}

// TestHTTPTransport_Do_InvalidKey tests the provider's key rejection
func TestHTTPTransport_Do_InvalidKey(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()

	tr := newTransport(t, Options{BaseURL: srv.URL})

	_, err := tr.Do(context.Background(), models.LookupRequest{Target: "8.8.8.8", APIKey: "wrong"})

	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.Service {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if apiErr.RawStatus != http.StatusForbidden || apiErr.Message != "invalid API key" {
		t.Errorf("unexpected service error: %+v", apiErr)
	}
}

// TestHTTPTransport_Do_Timeout tests that a slow provider yields a timeout in bound
func TestHTTPTransport_Do_Timeout(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()
	srv.SetDelay(2 * time.Second)

	timeout := 100 * time.Millisecond
	tr := newTransport(t, Options{BaseURL: srv.URL, Timeout: timeout})

	start := time.Now()
	resp, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
	elapsed := time.Since(start)

	if resp != nil {
		t.Error("expected nil response on timeout")
	}
	if !errors.Is(err, apierror.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("timeout took %s, expected about %s", elapsed, timeout)
	}
}

// TestHTTPTransport_Do_ContextDeadline tests that the caller's deadline also maps to a timeout
func TestHTTPTransport_Do_ContextDeadline(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()
	srv.SetDelay(2 * time.Second)

	tr := newTransport(t, Options{BaseURL: srv.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Do(ctx, lookupRequest("8.8.8.8"))
	if !errors.Is(err, apierror.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

// TestHTTPTransport_Do_Canceled tests caller cancellation
func TestHTTPTransport_Do_Canceled(t *testing.T) {
	srv := providertest.New()
	defer srv.Close()

	tr := newTransport(t, Options{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Do(ctx, lookupRequest("8.8.8.8"))
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.Network || apiErr.Network != apierror.Canceled {
		t.Fatalf("expected canceled network error, got %v", err)
	}
}

// TestHTTPTransport_Do_ConnectionRefused tests connect failures
func TestHTTPTransport_Do_ConnectionRefused(t *testing.T) {
	srv := providertest.New()
	baseURL := srv.URL
	srv.Close() // nothing listens on the port anymore

	tr := newTransport(t, Options{BaseURL: baseURL, Timeout: time.Second})

	_, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.Network {
		t.Fatalf("expected network error, got %v", err)
	}
	if apiErr.Network != apierror.Connect {
		t.Errorf("expected connect sub-kind, got %s", apiErr.Network)
	}
}

// TestHTTPTransport_Do_RetriesNetworkErrors tests opt-in retries
func TestHTTPTransport_Do_RetriesNetworkErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			// Drop the connection without answering
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Write([]byte(providertest.GoogleDNS))
	}))
	defer srv.Close()

	tr := newTransport(t, Options{BaseURL: srv.URL, MaxRetries: 2, RetryInterval: time.Millisecond})

	resp, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(resp.Body) != providertest.GoogleDNS {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

// TestHTTPTransport_Do_SingleAttemptByDefault tests that nothing is retried by default
func TestHTTPTransport_Do_SingleAttemptByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	tr := newTransport(t, Options{BaseURL: srv.URL})

	_, err := tr.Do(context.Background(), lookupRequest("8.8.8.8"))
	if !errors.Is(err, apierror.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

// TestHTTPTransport_Do_ErrorsHideAPIKey tests that network failures never expose the key
func TestHTTPTransport_Do_ErrorsHideAPIKey(t *testing.T) {
	const secret = "SECRET-KEY"

	slow := providertest.New()
	defer slow.Close()
	slow.SetDelay(2 * time.Second)

	closed := providertest.New()
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		baseURL string
		timeout time.Duration
	}{
		{"connection refused", closedURL, time.Second},
		{"timeout", slow.URL, 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Config{Level: "debug", Output: &buf})
			tr := newTransport(t, Options{BaseURL: tt.baseURL, Timeout: tt.timeout, MaxRetries: 1, RetryInterval: time.Millisecond, Logger: log})

			_, err := tr.Do(context.Background(), models.LookupRequest{Target: "8.8.8.8", APIKey: secret})

			if !errors.Is(err, apierror.ErrNetwork) {
				t.Fatalf("expected network error, got %v", err)
			}
			if strings.Contains(err.Error(), secret) {
				t.Errorf("error exposes the API key: %s", err.Error())
			}
			if buf.Len() == 0 {
				t.Fatal("expected log output")
			}
			if strings.Contains(buf.String(), secret) {
				t.Errorf("log exposes the API key: %s", buf.String())
			}
		})
	}
}

// TestRedactURL tests key removal from request URLs
func TestRedactURL(t *testing.T) {
	got := redactURL("http://127.0.0.1:1/json/8.8.8.8?fields=status&key=abc")
	if strings.Contains(got, "abc") || !strings.Contains(got, "key=REDACTED") {
		t.Errorf("unexpected redacted URL: %s", got)
	}
	if got := redactURL("http://127.0.0.1:1/json/"); got != "http://127.0.0.1:1/json/" {
		t.Errorf("expected URL without key unchanged, got %s", got)
	}
}

// Package transport performs the HTTP exchange with the geolocation provider.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/evyataryagoni/ipgeolocation/internal/parser"
)

// DefaultUserAgent identifies the library to the provider
const DefaultUserAgent = "ipgeolocation-go/1.0"

// maxBodySize caps how much of a provider response is read
const maxBodySize = 1 << 20

// Transport sends one lookup request to the provider
type Transport interface {
	Do(ctx context.Context, req models.LookupRequest) (*Response, error)
}

// Response is a raw 2xx provider answer
type Response struct {
	StatusCode int
	Body       []byte
}

// Options configures an HTTPTransport
type Options struct {
	BaseURL    string        // Provider base URL, e.g. https://pro.ip-api.com
	Timeout    time.Duration // Per-attempt timeout (default 10s)
	MaxRetries int           // Extra attempts on network errors (default 0)
	UserAgent  string

	// RetryInterval is the first backoff delay (default 200ms)
	RetryInterval time.Duration

	HTTPClient *http.Client     // Optional; its Timeout is left untouched
	Logger     *logger.Logger   // Optional
	Metrics    *metrics.Metrics // Optional
}

// HTTPTransport implements Transport over net/http
type HTTPTransport struct {
	baseURL       *url.URL
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
	userAgent     string
	client        *http.Client
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

// NewHTTPTransport creates a transport for the given provider
func NewHTTPTransport(opts Options) (*HTTPTransport, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", opts.MaxRetries)
	}

	t := &HTTPTransport{
		baseURL:       base,
		timeout:       opts.Timeout,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		userAgent:     opts.UserAgent,
		client:        opts.HTTPClient,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if t.timeout <= 0 {
		t.timeout = 10 * time.Second
	}
	if t.retryInterval <= 0 {
		t.retryInterval = 200 * time.Millisecond
	}
	if t.userAgent == "" {
		t.userAgent = DefaultUserAgent
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.logger == nil {
		t.logger = logger.Nop()
	}
	t.logger = t.logger.WithComponent("Transport")

	return t, nil
}

// Do performs the provider call
//
// Flow:
//  1. Build the provider URL from the request
//  2. Send it with the per-attempt timeout
//  3. Retry network failures only, when MaxRetries > 0
//
// Returns:
//   - *Response: status and body of a 2xx answer
//   - error: *apierror.Error of kind Network or Service
func (t *HTTPTransport) Do(ctx context.Context, req models.LookupRequest) (*Response, error) {
	endpoint := t.endpoint(req)

	if t.maxRetries == 0 {
		return t.attempt(ctx, endpoint, req.Target)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.retryInterval
	b.MaxElapsedTime = 0 // the retry count and ctx bound the loop

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxRetries)), ctx)

	attempts := 0
	resp, err := backoff.RetryWithData(func() (*Response, error) {
		attempts++
		resp, err := t.attempt(ctx, endpoint, req.Target)
		if err != nil {
			// Only network failures are worth repeating
			if apiErr, ok := apierror.As(err); ok && apiErr.Kind == apierror.Network && apiErr.Network != apierror.Canceled {
				t.logger.Debug().Int("attempt", attempts).Err(err).Msg("Retrying provider call")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}, policy)
	if err != nil {
		// backoff returns the bare ctx error when the caller's context ends
		// while waiting between attempts
		if _, ok := apierror.As(err); !ok {
			return nil, classify(ctx, err)
		}
		return nil, err
	}
	return resp, nil
}

// attempt performs exactly one HTTP exchange
func (t *HTTPTransport) attempt(ctx context.Context, endpoint, target string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apierror.NewNetwork(apierror.NetworkOther, "failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		apiErr := classify(ctx, err)
		t.observe("error", start)
		t.logger.Warn().Str("target", target).Str("network", apiErr.Network.String()).Err(apiErr).Msg("Provider call failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		t.observe("error", start)
		return nil, classify(ctx, err)
	}

	status := strconv.Itoa(resp.StatusCode)
	t.observe(status, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Warn().Str("target", target).Int("status", resp.StatusCode).Msg("Provider returned failure status")
		return nil, apierror.NewService(resp.StatusCode, parser.ErrorMessage(body))
	}

	t.logger.Debug().Str("target", target).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("Provider call completed")
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// endpoint builds GET {base}/json/{target}?key=...&fields=...
// The API key is never logged
func (t *HTTPTransport) endpoint(req models.LookupRequest) string {
	u := *t.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/json/" + req.Target
	u.RawPath = ""

	q := url.Values{}
	q.Set("key", req.APIKey)
	q.Set("fields", parser.Fields)
	u.RawQuery = q.Encode()

	return u.String()
}

func (t *HTTPTransport) observe(status string, start time.Time) {
	if t.metrics == nil {
		return
	}
	t.metrics.ProviderRequestsTotal.WithLabelValues(status).Inc()
	t.metrics.ProviderRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// classify maps a transport failure to a Network error sub-kind
// The request URL carries the API key, so it is redacted from the cause
func classify(ctx context.Context, err error) *apierror.Error {
	err = redact(err)

	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError

	switch {
	case errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apierror.NewNetwork(apierror.Canceled, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.NewNetwork(apierror.Timeout, "request timed out", err)
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return apierror.NewNetwork(apierror.Timeout, "dns lookup timed out", err)
		}
		return apierror.NewNetwork(apierror.DNS, "dns lookup failed", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return apierror.NewNetwork(apierror.Timeout, "request timed out", err)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return apierror.NewNetwork(apierror.Connect, "connection failed", err)
	default:
		return apierror.NewNetwork(apierror.NetworkOther, "request failed", err)
	}
}

// redact replaces the API key in a *url.Error's URL
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: redactURL(urlErr.URL), Err: urlErr.Err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

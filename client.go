// Package ipgeolocation is a client for the ip-api.com geolocation service.
//
// A lookup validates its input, calls the provider once and parses the
// answer into a Result:
//
//	client, err := ipgeolocation.New()
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	res, err := client.Lookup(ctx, "8.8.8.8", apiKey)
//	switch {
//	case errors.Is(err, ipgeolocation.ErrTimeout):
//		// provider too slow
//	case errors.Is(err, ipgeolocation.ErrInvalidArgument):
//		// bad key or address
//	}
//
// An empty target resolves the caller's own public address. Caching,
// outbound rate limiting, retries, logging and metrics are all off unless
// enabled with an Option.
package ipgeolocation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/cache"
	"github.com/evyataryagoni/ipgeolocation/internal/config"
	"github.com/evyataryagoni/ipgeolocation/internal/limiter"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/evyataryagoni/ipgeolocation/internal/service"
	"github.com/evyataryagoni/ipgeolocation/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Version of the library, sent in the User-Agent header
const Version = "1.0.0"

// DefaultBaseURL is the provider endpoint used when none is configured
const DefaultBaseURL = config.DefaultBaseURL

// DefaultTimeout bounds a single provider call
const DefaultTimeout = config.DefaultTimeout

// Result is the geolocation of one IP address
type Result = models.GeolocationResult

// BatchResult is one entry of LookupMany
type BatchResult = models.BatchResult

// Error is the failure type of every lookup
type Error = apierror.Error

// Cache stores results between lookups
type Cache = cache.Cache

// Limiter guards the provider quota
type Limiter = limiter.Limiter

// Error kinds, matched with errors.Is
var (
	ErrInvalidArgument = apierror.ErrInvalidArgument
	ErrNetwork         = apierror.ErrNetwork
	ErrTimeout         = apierror.ErrTimeout
	ErrService         = apierror.ErrService
	ErrParse           = apierror.ErrParse
)

type settings struct {
	baseURL      string
	timeout      time.Duration
	retries      int
	httpClient   *http.Client
	logger       *logger.Logger
	cache        cache.Cache
	cacheTTL     time.Duration
	limiter      limiter.Limiter
	registerer   prometheus.Registerer
	batchWorkers int
	err          error // first option failure, returned by New
}

// Option configures a Client
type Option func(*settings)

// WithBaseURL points the client at another provider endpoint
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

// WithTimeout bounds each provider call
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithRetries allows n extra attempts after a network failure
func WithRetries(n int) Option {
	return func(s *settings) { s.retries = n }
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger enables structured logging
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger.FromZerolog(l) }
}

// WithCache serves repeated lookups from c for ttl
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *settings) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMemoryCache keeps up to size results in process for ttl
// A zero size falls back to 1024 entries; a negative size makes New fail
func WithMemoryCache(size int, ttl time.Duration) Option {
	return func(s *settings) {
		if size == 0 {
			size = 1024
		}
		c, err := cache.NewMemoryCache(size)
		if err != nil {
			if s.err == nil {
				s.err = fmt.Errorf("memory cache: %w", err)
			}
			return
		}
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLimiter guards every provider call with l
func WithLimiter(l Limiter) Option {
	return func(s *settings) { s.limiter = l }
}

// WithRateLimit allows at most limit provider calls per window and key
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *settings) { s.limiter = limiter.NewMemoryLimiter(limit, window) }
}

// WithMetrics registers Prometheus collectors on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithBatchWorkers bounds concurrent provider calls in LookupMany
func WithBatchWorkers(n int) Option {
	return func(s *settings) { s.batchWorkers = n }
}

// Client looks up IP addresses. It is safe for concurrent use.
type Client struct {
	svc *service.LookupService
}

// New creates a client
func New(opts ...Option) (*Client, error) {
	s := settings{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return newClient(s)
}

// NewFromConfig creates a client with the backends named in cfg
// Options are applied after cfg and win over it
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := cache.NewCache(cache.Config{
		Type:          cfg.CacheType,
		Size:          cfg.CacheSize,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		MySQLDSN:      cfg.MySQLDSN,
	})
	if err != nil {
		return nil, err
	}

	l, err := limiter.NewLimiter(limiter.Config{
		Type:          cfg.RateLimitType,
		Limit:         cfg.RateLimit,
		Window:        time.Duration(cfg.RateLimitWindow) * time.Second,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		closeBackends(c, nil)
		return nil, err
	}

	s := settings{
		baseURL:      cfg.BaseURL,
		timeout:      cfg.Timeout,
		retries:      cfg.MaxRetries,
		logger:       logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}),
		cache:        c,
		cacheTTL:     cfg.CacheTTL,
		limiter:      l,
		batchWorkers: cfg.BatchWorkers,
	}
	for _, opt := range opts {
		opt(&s)
	}

	client, err := newClient(s)
	if err != nil {
		closeBackends(c, l)
		return nil, err
	}
	return client, nil
}

func newClient(s settings) (*Client, error) {
	if s.err != nil {
		return nil, s.err
	}

	var m *metrics.Metrics
	if s.registerer != nil {
		m = metrics.New(s.registerer)
	}

	t, err := transport.NewHTTPTransport(transport.Options{
		BaseURL:    s.baseURL,
		Timeout:    s.timeout,
		MaxRetries: s.retries,
		UserAgent:  "ipgeolocation-go/" + Version,
		HTTPClient: s.httpClient,
		Logger:     s.logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}

	svc := service.NewLookupService(t, service.Options{
		Cache:        s.cache,
		CacheTTL:     s.cacheTTL,
		Limiter:      s.limiter,
		Metrics:      m,
		Logger:       s.logger,
		BatchWorkers: s.batchWorkers,
	})

	return &Client{svc: svc}, nil
}

// Lookup resolves target with apiKey; an empty target resolves the
// caller's own address
//
// Errors are always *Error; use errors.Is with the Err* kinds
func (c *Client) Lookup(ctx context.Context, target, apiKey string) (Result, error) {
	return c.svc.Lookup(ctx, target, apiKey)
}

// LookupMany resolves each unique target concurrently
// Entries follow input order and carry their own error
func (c *Client) LookupMany(ctx context.Context, targets []string, apiKey string) []BatchResult {
	return c.svc.LookupMany(ctx, targets, apiKey)
}

// Close releases cache and limiter connections
func (c *Client) Close() error {
	return c.svc.Close()
}

func closeBackends(c cache.Cache, l limiter.Limiter) {
	if c != nil {
		c.Close()
	}
	if l != nil {
		l.Close()
	}
}

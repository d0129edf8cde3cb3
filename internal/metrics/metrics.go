package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client and the gateway
type Metrics struct {
	// HTTP Metrics (gateway)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Provider Metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Cache and limiter Metrics
	CacheResults     *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter

	// Lookup Metrics
	LookupsTotal *prometheus.CounterVec
	LookupErrors *prometheus.CounterVec
}

// New creates all metrics and registers them on reg
// Each client gets its own registry in tests; the gateway passes
// prometheus.DefaultRegisterer so promhttp.Handler serves them
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "endpoint", "status"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipgeo_provider_requests_total",
				Help: "Total number of requests sent to the geolocation provider",
			},
			[]string{"status"},
		),

		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipgeo_provider_request_duration_seconds",
				Help:    "Geolocation provider latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		CacheResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipgeo_cache_results_total",
				Help: "Total number of cache hits, misses and errors",
			},
			[]string{"backend", "result"},
		),

		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ipgeo_rate_limited_total",
				Help: "Total number of lookups rejected by the outbound rate limiter",
			},
		),

		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipgeo_lookups_total",
				Help: "Total number of IP lookups",
			},
			[]string{"result"},
		),

		LookupErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipgeo_lookup_errors_total",
				Help: "Total number of IP lookup errors by kind",
			},
			[]string{"kind"},
		),
	}
}

package router

import (
	"net/http"

	"github.com/evyataryagoni/ipgeolocation/internal/handler"
	"github.com/evyataryagoni/ipgeolocation/internal/limiter"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	custommiddleware "github.com/evyataryagoni/ipgeolocation/internal/middleware"
	v1 "github.com/evyataryagoni/ipgeolocation/internal/router/v1"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/evyataryagoni/ipgeolocation/docs" // Swagger docs
)

// Config holds the router's collaborators
type Config struct {
	Handler     *handler.LookupHandler
	RateLimiter limiter.Limiter  // inbound, per client IP; nil disables
	Metrics     *metrics.Metrics // nil disables HTTP metrics
	Gatherer    prometheus.Gatherer
	Logger      *logger.Logger
}

// SetupRouter creates and configures the Chi router with all middleware and routes
//
// Returns:
//   - chi.Router: configured router ready to use
func SetupRouter(cfg Config) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Order matters! RequestID should be first, then logging, then rate limiting
	r.Use(middleware.RequestID)                                  // Add unique request ID to each request
	r.Use(middleware.RealIP)                                     // Get real client IP (handles proxies/load balancers)
	r.Use(custommiddleware.LoggingMiddleware(log))               // Structured logging
	r.Use(middleware.Recoverer)                                  // Recover from panics and return 500
	r.Use(custommiddleware.RateLimitMiddleware(cfg.RateLimiter)) // Rate limiting per IP
	if cfg.Metrics != nil {
		r.Use(custommiddleware.MetricsMiddleware(cfg.Metrics)) // Collect Prometheus metrics
	}

	// Mount v1 API routes under /v1 prefix
	r.Mount("/v1", v1.SetupRoutes(cfg.Handler))

	// Health check endpoint - used by load balancers and monitoring
	r.Get("/health", healthCheckHandler)

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// healthCheckHandler reports that the gateway is up
// It does not call the provider, so quota is never spent on health checks
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

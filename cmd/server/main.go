package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/cache"
	"github.com/evyataryagoni/ipgeolocation/internal/config"
	"github.com/evyataryagoni/ipgeolocation/internal/handler"
	"github.com/evyataryagoni/ipgeolocation/internal/limiter"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	"github.com/evyataryagoni/ipgeolocation/internal/router"
	"github.com/evyataryagoni/ipgeolocation/internal/service"
	"github.com/evyataryagoni/ipgeolocation/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// @title           IP Geolocation Gateway API
// @version         1.0
// @description     HTTP front for the ip-api.com geolocation client with caching and rate limiting

// @license.name  MIT
// @license.url   http://opensource.org/licenses/MIT

// @host      localhost:3000
// @BasePath  /
func main() {
	// Load configuration
	appConfig := config.Load()

	// Initialize components
	appLogger := setupLogger(appConfig)
	if err := appConfig.Validate(); err != nil {
		appLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	resultCache := setupCache(appConfig, appLogger)
	rateLimiter := setupRateLimiter(appConfig, appLogger)
	metricsCollector := setupMetrics(appLogger)

	// Build application layers
	providerTransport, err := transport.NewHTTPTransport(transport.Options{
		BaseURL:    appConfig.BaseURL,
		Timeout:    appConfig.Timeout,
		MaxRetries: appConfig.MaxRetries,
		Logger:     appLogger,
		Metrics:    metricsCollector,
	})
	if err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to initialize provider transport")
	}

	// One limiter serves both directions; keys are prefixed per direction
	lookupService := service.NewLookupService(providerTransport, service.Options{
		Cache:        resultCache,
		CacheTTL:     appConfig.CacheTTL,
		Limiter:      rateLimiter,
		Metrics:      metricsCollector,
		Logger:       appLogger,
		BatchWorkers: appConfig.BatchWorkers,
	})
	defer lookupService.Close()

	lookupHandler := handler.NewLookupHandler(lookupService, appConfig.APIKey)
	appRouter := router.SetupRouter(router.Config{
		Handler:     lookupHandler,
		RateLimiter: rateLimiter,
		Metrics:     metricsCollector,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      appLogger,
	})

	// Start server
	startServer(appConfig, appRouter, appLogger)
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:  appConfig.LogLevel,
		Pretty: appConfig.LogPretty,
	})

	appLogger.Info().Msg("Starting IP geolocation gateway...")
	appLogger.Info().
		Str("port", appConfig.Port).
		Str("base_url", appConfig.BaseURL).
		Dur("timeout", appConfig.Timeout).
		Int("max_retries", appConfig.MaxRetries).
		Str("cache_type", appConfig.CacheType).
		Str("rate_limiter_type", appConfig.RateLimitType).
		Int("rate_limit", appConfig.RateLimit).
		Int("rate_limit_window", appConfig.RateLimitWindow).
		Bool("api_key_configured", appConfig.APIKey != "").
		Msg("Configuration loaded")

	if appConfig.APIKey == "" {
		appLogger.Warn().Msg("IPGEO_API_KEY is not set; requests must carry an X-API-Key header")
	}

	return appLogger
}

// setupCache initializes the result cache based on configuration
// Supports memory, Redis, and MySQL backends; "none" disables caching
func setupCache(appConfig *config.Config, log *logger.Logger) cache.Cache {
	resultCache, err := cache.NewCache(cache.Config{
		Type:          appConfig.CacheType,
		Size:          appConfig.CacheSize,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		MySQLDSN:      appConfig.MySQLDSN,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache")
	}

	if resultCache == nil {
		log.Info().Msg("Result cache disabled")
		return nil
	}

	log.Info().
		Str("type", resultCache.Name()).
		Dur("ttl", appConfig.CacheTTL).
		Msg("Result cache initialized")
	return resultCache
}

// setupRateLimiter initializes the rate limiter
// Supports in-memory and Redis-based rate limiting
func setupRateLimiter(appConfig *config.Config, log *logger.Logger) limiter.Limiter {
	rateLimiter, err := limiter.NewLimiter(limiter.Config{
		Type:          appConfig.RateLimitType,
		Limit:         appConfig.RateLimit,
		Window:        time.Duration(appConfig.RateLimitWindow) * time.Second,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	if rateLimiter == nil {
		log.Info().Msg("Rate limiting disabled")
		return nil
	}

	log.Info().
		Str("type", appConfig.RateLimitType).
		Int("limit", appConfig.RateLimit).
		Int("window_seconds", appConfig.RateLimitWindow).
		Float64("requests_per_second", appConfig.RequestsPerSecond()).
		Msg("Rate limiter initialized")
	return rateLimiter
}

// setupMetrics initializes the Prometheus metrics collector
func setupMetrics(log *logger.Logger) *metrics.Metrics {
	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	log.Info().Msg("Metrics initialized")
	return metricsCollector
}

// startServer serves until SIGINT or SIGTERM, then drains in-flight requests
func startServer(appConfig *config.Config, appRouter http.Handler, log *logger.Logger) {
	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", appConfig.Port).
			Str("api_endpoint", "http://localhost:"+appConfig.Port+"/v1/lookup?ip=<ip>").
			Str("batch_endpoint", "http://localhost:"+appConfig.Port+"/v1/lookup/batch?ip=<ip>&ip=<ip>").
			Str("health_check", "http://localhost:"+appConfig.Port+"/health").
			Str("metrics", "http://localhost:"+appConfig.Port+"/metrics").
			Str("swagger", "http://localhost:"+appConfig.Port+"/swagger/index.html").
			Msg("Server is running")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

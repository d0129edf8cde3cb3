package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/cache"
	"github.com/evyataryagoni/ipgeolocation/internal/limiter"
	"github.com/evyataryagoni/ipgeolocation/internal/logger"
	"github.com/evyataryagoni/ipgeolocation/internal/metrics"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/evyataryagoni/ipgeolocation/internal/parser"
	"github.com/evyataryagoni/ipgeolocation/internal/request"
	"github.com/evyataryagoni/ipgeolocation/internal/transport"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// DefaultBatchWorkers bounds concurrent provider calls in LookupMany
const DefaultBatchWorkers = 4

// Options holds the optional collaborators of a LookupService
// Every field may be left zero
type Options struct {
	Cache        cache.Cache      // nil turns caching off
	CacheTTL     time.Duration    // lifetime of cached results
	Limiter      limiter.Limiter  // nil turns outbound limiting off
	Metrics      *metrics.Metrics // nil turns metrics off
	Logger       *logger.Logger   // nil discards logs
	BatchWorkers int              // LookupMany concurrency
}

// LookupService composes request building, transport and parsing
// This is the service layer - it sits between callers and the provider
//
// Responsibilities:
//   - Validate input (API key, IP format)
//   - Serve and fill the optional cache
//   - Guard the provider quota with the optional limiter
//   - Call the provider and parse its answer
//
// It keeps no per-call state, so one service can serve any number of
// concurrent lookups
type LookupService struct {
	builder      *request.Builder
	transport    transport.Transport
	cache        cache.Cache
	cacheTTL     time.Duration
	limiter      limiter.Limiter
	metrics      *metrics.Metrics
	logger       *logger.Logger
	batchWorkers int
}

// NewLookupService creates a lookup service on top of a transport
func NewLookupService(t transport.Transport, opts Options) *LookupService {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := opts.BatchWorkers
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	return &LookupService{
		builder:      request.NewBuilder(),
		transport:    t,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		limiter:      opts.Limiter,
		metrics:      opts.Metrics,
		logger:       log.WithComponent("LookupService"),
		batchWorkers: workers,
	}
}

// Lookup resolves target (empty = caller's own address) with apiKey
//
// Flow:
//  1. Build and validate the request
//  2. Serve from cache when possible
//  3. Check the outbound limiter
//  4. Call the provider
//  5. Parse the answer and fill the cache
//
// The first failing step ends the lookup and its *apierror.Error is
// returned unchanged
func (s *LookupService) Lookup(ctx context.Context, target, apiKey string) (models.GeolocationResult, error) {
	req, err := s.builder.Build(target, apiKey)
	if err != nil {
		s.logger.Warn().Str("target", target).Err(err).Msg("Invalid lookup request")
		s.recordError(err)
		return models.GeolocationResult{}, err
	}

	log := s.logger.WithTarget(req.Target)
	cacheable := s.cache != nil && !req.IsSelf()

	if cacheable {
		if hit, ok := s.fromCache(ctx, req.Target, log); ok {
			s.recordSuccess("cache_hit")
			return hit, nil
		}
	}

	if s.limiter != nil && !s.limiter.Allow(quotaKey(req.APIKey)) {
		log.Warn().Msg("Outbound rate limit exceeded")
		if s.metrics != nil {
			s.metrics.RateLimitedTotal.Inc()
		}
		err := apierror.NewService(http.StatusTooManyRequests, "rate limit exceeded")
		s.recordError(err)
		return models.GeolocationResult{}, err
	}

	log.Debug().Msg("Looking up IP address")
	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("Provider call failed")
		s.recordError(err)
		return models.GeolocationResult{}, err
	}

	result, err := parser.Parse(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("Provider answer rejected")
		s.recordError(err)
		return models.GeolocationResult{}, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, req.Target, result, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("cache", s.cache.Name()).Msg("Failed to store result in cache")
			s.recordCache("error")
		}
	}

	log.Info().
		Str("ip", result.IP).
		Str("country", result.CountryCode).
		Float64("lat", result.Latitude).
		Float64("lon", result.Longitude).
		Msg("IP lookup successful")
	s.recordSuccess("success")

	return result, nil
}

// LookupMany resolves several targets concurrently
// Targets are trimmed and de-duplicated (first occurrence wins); the
// result has one entry per unique target, in input order
func (s *LookupService) LookupMany(ctx context.Context, targets []string, apiKey string) []models.BatchResult {
	unique := lo.Uniq(lo.Map(targets, func(target string, _ int) string {
		return request.Canonical(strings.TrimSpace(target))
	}))

	results := make([]models.BatchResult, len(unique))
	p := pool.New().WithMaxGoroutines(s.batchWorkers)

	for i, target := range unique {
		i, target := i, target
		p.Go(func() {
			result, err := s.Lookup(ctx, target, apiKey)
			if err != nil {
				results[i] = models.BatchResult{Target: target, Err: err}
				return
			}
			results[i] = models.BatchResult{Target: target, Result: &result}
		})
	}
	p.Wait()

	return results
}

// Close releases the cache and limiter backends
func (s *LookupService) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.limiter != nil {
		errs = append(errs, s.limiter.Close())
	}
	return errors.Join(errs...)
}

// fromCache returns a cached result; cache failures count as misses
func (s *LookupService) fromCache(ctx context.Context, ip string, log *logger.Logger) (models.GeolocationResult, bool) {
	hit, err := s.cache.Get(ctx, ip)
	switch {
	case err == nil:
		log.Debug().Str("cache", s.cache.Name()).Msg("Cache hit")
		s.recordCache("hit")
		return *hit, true
	case errors.Is(err, cache.ErrCacheMiss):
		s.recordCache("miss")
	default:
		log.Warn().Err(err).Str("cache", s.cache.Name()).Msg("Cache read failed")
		s.recordCache("error")
	}
	return models.GeolocationResult{}, false
}

// quotaKey identifies an API key to the limiter without exposing it
func quotaKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "key:" + hex.EncodeToString(sum[:8])
}

func (s *LookupService) recordSuccess(result string) {
	if s.metrics != nil {
		s.metrics.LookupsTotal.WithLabelValues(result).Inc()
	}
}

func (s *LookupService) recordError(err error) {
	if s.metrics == nil {
		return
	}
	kind := apierror.KindOf(err).String()
	s.metrics.LookupsTotal.WithLabelValues("error").Inc()
	s.metrics.LookupErrors.WithLabelValues(kind).Inc()
}

func (s *LookupService) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.CacheResults.WithLabelValues(s.cache.Name(), result).Inc()
	}
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/models"
)

// ErrCacheMiss is returned by Get when no valid entry exists
var ErrCacheMiss = errors.New("cache miss")

// Cache stores lookup results keyed by IP address
// Allows multiple implementations (memory, Redis, MySQL) and easy testing with mocks
type Cache interface {
	// Get returns the cached result for ip, or ErrCacheMiss
	Get(ctx context.Context, ip string) (*models.GeolocationResult, error)

	// Set stores result for ip; ttl <= 0 keeps it until evicted
	Set(ctx context.Context, ip string, result models.GeolocationResult, ttl time.Duration) error

	// Name identifies the backend in logs and metrics
	Name() string

	// Close cleans up resources (connections, etc.)
	Close() error
}

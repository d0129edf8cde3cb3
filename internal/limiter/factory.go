package limiter

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for creating a rate limiter
type Config struct {
	Type   string        // "none", "memory" or "redis"
	Limit  int           // requests allowed per window
	Window time.Duration // window length

	// Redis-specific config
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewLimiter creates a rate limiter based on the configuration (factory pattern)
// "none" (or empty) returns a nil Limiter, which turns limiting off
func NewLimiter(cfg Config) (Limiter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "none", "":
		return nil, nil

	case "memory":
		return NewMemoryLimiter(cfg.Limit, cfg.Window), nil

	case "redis":
		l, err := NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Limit, cfg.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis limiter: %w", err)
		}
		return l, nil

	default:
		return nil, fmt.Errorf("unknown rate limiter type: %s (supported: 'none', 'memory', 'redis')", cfg.Type)
	}
}

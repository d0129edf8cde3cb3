package cache

import (
	"fmt"
	"strings"
)

// Config holds configuration for creating a cache
type Config struct {
	Type string // "none", "memory", "redis" or "mysql"
	Size int    // LRU capacity for "memory"

	// Redis-specific config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MySQL-specific config
	MySQLDSN string
}

// NewCache creates a cache based on the configuration (factory pattern)
// "none" (or empty) returns a nil Cache, which turns caching off
func NewCache(cfg Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "none", "":
		return nil, nil

	case "memory":
		size := cfg.Size
		if size <= 0 {
			size = 1024
		}
		c, err := NewMemoryCache(size)
		if err != nil {
			return nil, err
		}
		return c, nil

	case "redis":
		c, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis cache: %w", err)
		}
		return c, nil

	case "mysql":
		c, err := NewMySQLCache(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create MySQL cache: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: 'none', 'memory', 'redis', 'mysql')", cfg.Type)
	}
}

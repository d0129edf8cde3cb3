package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the provider endpoint used when none is configured
const DefaultBaseURL = "https://pro.ip-api.com"

// DefaultTimeout bounds a single provider call
const DefaultTimeout = 10 * time.Second

// Config holds all client, backend and gateway configuration
type Config struct {
	// Provider configuration
	APIKey     string        // Provider credential, never hardcoded
	BaseURL    string        // Provider base URL (overridable for tests)
	Timeout    time.Duration // Per-call timeout
	MaxRetries int           // Extra attempts on network errors (0 = single attempt)

	// Logging
	LogLevel  string
	LogPretty bool

	// Result cache
	CacheType string        // "none", "memory", "redis" or "mysql"
	CacheSize int           // LRU capacity for the memory cache
	CacheTTL  time.Duration // How long a result stays valid

	// Outbound rate limiting (provider quota)
	RateLimitType   string // "none", "memory" or "redis"
	RateLimit       int    // number of requests allowed
	RateLimitWindow int    // time window in seconds

	// Redis configuration (cache and limiter)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MySQL configuration (cache)
	MySQLDSN string

	// Batch lookups
	BatchWorkers int

	// Gateway
	Port string
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		LogLevel:        "info",
		CacheType:       "none",
		CacheSize:       1024,
		CacheTTL:        time.Hour,
		RateLimitType:   "none",
		RateLimit:       45,
		RateLimitWindow: 60,
		RedisAddr:       "localhost:6379",
		BatchWorkers:    4,
		Port:            "3000",
	}
}

// Load reads configuration from a .env file (if present) and environment
// variables, falling back to Default for anything unset
func Load() *Config {
	// Load .env file if it exists (for local development)
	// A missing file is normal in production, so the error is ignored
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() *Config {
	def := Default()

	return &Config{
		APIKey:     getEnv("IPGEO_API_KEY", ""),
		BaseURL:    strings.TrimRight(getEnv("IPGEO_BASE_URL", def.BaseURL), "/"),
		Timeout:    getEnvAsDuration("IPGEO_TIMEOUT", def.Timeout),
		MaxRetries: getEnvAsInt("IPGEO_MAX_RETRIES", 0),

		LogLevel:  getEnv("LOG_LEVEL", def.LogLevel),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),

		CacheType: strings.ToLower(getEnv("CACHE_TYPE", def.CacheType)),
		CacheSize: getEnvAsInt("CACHE_SIZE", def.CacheSize),
		CacheTTL:  getEnvAsDuration("CACHE_TTL", def.CacheTTL),

		RateLimitType:   strings.ToLower(getEnv("RATE_LIMITER_TYPE", def.RateLimitType)),
		RateLimit:       getEnvAsInt("RATE_LIMIT", def.RateLimit),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", def.RateLimitWindow),

		RedisAddr:     getEnv("REDIS_ADDR", def.RedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		BatchWorkers: getEnvAsInt("BATCH_WORKERS", def.BatchWorkers),

		Port: getEnv("PORT", def.Port),
	}
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.CacheType {
	case "", "none", "memory", "redis", "mysql":
	default:
		return fmt.Errorf("unknown cache type: %s (supported: 'none', 'memory', 'redis', 'mysql')", c.CacheType)
	}
	switch c.RateLimitType {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown rate limiter type: %s (supported: 'none', 'memory', 'redis')", c.RateLimitType)
	}
	if c.CacheType == "mysql" && c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required for the mysql cache")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RateLimitType != "" && c.RateLimitType != "none" && (c.RateLimit <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit and window must be positive")
	}
	return nil
}

// RequestsPerSecond is the effective outbound rate
// Example: 45 requests per 60 seconds = 0.75 req/s
func (c *Config) RequestsPerSecond() float64 {
	if c.RateLimitWindow <= 0 {
		return float64(c.RateLimit)
	}
	return float64(c.RateLimit) / float64(c.RateLimitWindow)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt reads an environment variable as an integer
// Returns default if not set or invalid
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool reads an environment variable as a boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads a duration such as "1500ms" or "10s"
// A bare number is taken as seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

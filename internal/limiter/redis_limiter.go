package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter of the current window and sets its
// expiry on first use; it runs atomically on the Redis server
var windowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisLimiter implements a fixed-window limiter shared through Redis
// Several processes using the same API key then share one provider quota
//
// Key format: "ratelimit:{key}:{window index}"
type RedisLimiter struct {
	client  *redis.Client
	limit   int64
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRedisLimiter connects to Redis and allows limit requests per window
func NewRedisLimiter(addr, password string, db int, limit int, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %w", err)
	}

	if limit < 1 {
		limit = 1
	}
	if window < time.Millisecond {
		window = time.Second
	}

	return &RedisLimiter{
		client:  client,
		limit:   int64(limit),
		window:  window,
		timeout: time.Second,
		now:     time.Now,
	}, nil
}

// Allow counts the request in the current window
// On Redis errors it fails open: a broken limiter must not block lookups
func (l *RedisLimiter) Allow(key string) bool {
	index := l.now().UnixMilli() / l.window.Milliseconds()
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, index)

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	// Keep the key for two windows so late requests still see it
	count, err := windowScript.Run(ctx, l.client, []string{redisKey}, (2 * l.window).Milliseconds()).Int64()
	if err != nil {
		return true
	}

	return count <= l.limit
}

// Close closes the Redis connection
func (l *RedisLimiter) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using Redis
// A shared cache lets several processes reuse each other's lookups
//
// Redis Key Format: geo:<ip_address>
// Example: geo:8.8.8.8
// Value: JSON-encoded GeolocationResult, expiring with the cache TTL
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string if no password)
//   - db: Redis database number (0-15, default is 0)
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func redisKey(ip string) string {
	return fmt.Sprintf("geo:%s", ip)
}

// Get looks up an IP address in Redis
func (c *RedisCache) Get(ctx context.Context, ip string) (*models.GeolocationResult, error) {
	val, err := c.client.Get(ctx, redisKey(ip)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("Redis query failed: %w", err)
	}

	var result models.GeolocationResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}

	return &result, nil
}

// Set stores a result; Redis expires it after ttl
func (c *RedisCache) Set(ctx context.Context, ip string, result models.GeolocationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKey(ip), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}

	return nil
}

// Name implements Cache
func (c *RedisCache) Name() string {
	return "redis"
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

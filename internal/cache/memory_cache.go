package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/models"
	lru "github.com/hashicorp/golang-lru"
)

// memoryEntry is one cached result with its expiry
type memoryEntry struct {
	result    models.GeolocationResult
	expiresAt time.Time // zero means no expiry
}

// MemoryCache implements Cache with a bounded LRU
// The LRU is internally locked, so MemoryCache is safe for concurrent use
type MemoryCache struct {
	lru *lru.Cache
	now func() time.Time
}

// NewMemoryCache creates an LRU cache holding at most size results
func NewMemoryCache(size int) (*MemoryCache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryCache{lru: l, now: time.Now}, nil
}

// Get returns a copy of the cached result
// Expired entries are removed and reported as a miss
func (c *MemoryCache) Get(_ context.Context, ip string) (*models.GeolocationResult, error) {
	value, ok := c.lru.Get(ip)
	if !ok {
		return nil, ErrCacheMiss
	}

	entry := value.(memoryEntry)
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.lru.Remove(ip)
		return nil, ErrCacheMiss
	}

	result := entry.result.Clone()
	return &result, nil
}

// Set stores a copy of result
func (c *MemoryCache) Set(_ context.Context, ip string, result models.GeolocationResult, ttl time.Duration) error {
	entry := memoryEntry{result: result.Clone()}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(ip, entry)
	return nil
}

// Len returns the number of cached entries, expired ones included
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Name implements Cache
func (c *MemoryCache) Name() string {
	return "memory"
}

// Close drops every entry
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

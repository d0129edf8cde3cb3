package limiter

import (
	"sync"
	"time"
)

// Limiter decides whether one more request under key may proceed
// The client keys outbound calls by API key (provider quota); the gateway
// keys inbound calls by client IP
type Limiter interface {
	Allow(key string) bool
	Close() error
}

// bucket is a token bucket for a single key
//
// How it works:
//   - The bucket holds at most capacity tokens and starts full
//   - Tokens are added continuously at rate per second
//   - Each request consumes 1 token; an empty bucket rejects the request
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory
// Suitable when a single process owns the quota
type MemoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64 // burst size
	now      func() time.Time

	lastSweep time.Time
}

// idleTimeout is how long an untouched bucket is kept around
const idleTimeout = 5 * time.Minute

// NewMemoryLimiter allows limit requests per window for each key
// Example: 45 per minute refills at 0.75 tokens/s with bursts up to 45
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &MemoryLimiter{
		buckets:   map[string]*bucket{},
		rate:      float64(limit) / window.Seconds(),
		capacity:  float64(limit),
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

// Allow consumes a token from key's bucket
func (l *MemoryLimiter) Allow(key string) bool {
	now := l.now()
	b := l.bucketFor(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill based on time elapsed, capped at capacity
	elapsed := now.Sub(b.lastSeen).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*l.rate, l.capacity)
		b.lastSeen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// bucketFor gets or creates the bucket for key and sweeps idle buckets
func (l *MemoryLimiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= idleTimeout {
		for k, b := range l.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastSeen) >= idleTimeout
			b.mu.Unlock()
			if idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[key] = b
	}
	return b
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close implements Limiter; there is nothing to release
func (l *MemoryLimiter) Close() error {
	return nil
}

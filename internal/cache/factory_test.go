package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// TestNewCache_None tests that caching can be turned off
func TestNewCache_None(t *testing.T) {
	for _, typ := range []string{"", "none", " None "} {
		c, err := NewCache(Config{Type: typ})
		if err != nil {
			t.Errorf("unexpected error for %q: %v", typ, err)
		}
		if c != nil {
			t.Errorf("expected nil cache for %q", typ)
		}
	}
}

// TestNewCache_Memory tests the memory backend
func TestNewCache_Memory(t *testing.T) {
	c, err := NewCache(Config{Type: "memory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if c.Name() != "memory" {
		t.Errorf("expected memory cache, got %s", c.Name())
	}
}

// TestNewCache_Redis tests the Redis backend
func TestNewCache_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	c, err := NewCache(Config{Type: "redis", RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if c.Name() != "redis" {
		t.Errorf("expected redis cache, got %s", c.Name())
	}
}

// TestNewCache_Unknown tests unsupported types
func TestNewCache_Unknown(t *testing.T) {
	if _, err := NewCache(Config{Type: "memcached"}); err == nil {
		t.Error("expected error for unknown cache type")
	}
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/evyataryagoni/ipgeolocation/internal/models"
)

// MockCache is a test double for the Cache interface
// It allows tests to control behavior and verify interactions
type MockCache struct {
	mu sync.Mutex

	// Data holds cached results (IP address -> result)
	Data map[string]models.GeolocationResult

	// Track method calls for verification in tests
	GetCalls    []string
	SetCalls    []string
	SetTTLs     []time.Duration
	CloseCalled bool

	// Control behavior for error scenarios
	GetError   error
	SetError   error
	CloseError error
}

// NewMockCache creates an empty mock cache
func NewMockCache() *MockCache {
	return &MockCache{
		Data: map[string]models.GeolocationResult{},
	}
}

// Get implements the Cache interface
func (m *MockCache) Get(_ context.Context, ip string) (*models.GeolocationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, ip)
	if m.GetError != nil {
		return nil, m.GetError
	}

	result, ok := m.Data[ip]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := result.Clone()
	return &out, nil
}

// Set implements the Cache interface
func (m *MockCache) Set(_ context.Context, ip string, result models.GeolocationResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, ip)
	m.SetTTLs = append(m.SetTTLs, ttl)
	if m.SetError != nil {
		return m.SetError
	}
	m.Data[ip] = result.Clone()
	return nil
}

// Name implements the Cache interface
func (m *MockCache) Name() string {
	return "mock"
}

// Close implements the Cache interface
func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalled = true
	return m.CloseError
}

package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
)

// MockTransport is a test double for the Transport interface
// It answers from canned bodies and records every request
type MockTransport struct {
	mu sync.Mutex

	// Bodies maps a target (empty = self) to the raw provider body
	Bodies map[string]string

	// Errors maps a target to the error Do returns for it
	Errors map[string]error

	// Calls records every request in arrival order
	Calls []models.LookupRequest
}

// NewMockTransport creates a mock transport with no canned answers
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Bodies: map[string]string{},
		Errors: map[string]error{},
	}
}

// Do implements the Transport interface
// Unknown targets get a 404 ServiceError
func (m *MockTransport) Do(ctx context.Context, req models.LookupRequest) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	body, found := m.Bodies[req.Target]
	err := m.Errors[req.Target]
	m.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, apierror.NewNetwork(apierror.Canceled, "request canceled", ctxErr)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apierror.NewService(http.StatusNotFound, "")
	}
	return &Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

// CallCount returns how many requests were made
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

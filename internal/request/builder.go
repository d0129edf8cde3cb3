// Package request builds validated lookup requests.
package request

import (
	"net/netip"
	"strings"

	"github.com/evyataryagoni/ipgeolocation/internal/apierror"
	"github.com/evyataryagoni/ipgeolocation/internal/models"
	"github.com/go-playground/validator/v10"
)

// Builder validates caller input and produces LookupRequests
// A validator.Validate is safe for concurrent use, so one Builder can be
// shared by every lookup
type Builder struct {
	validator *validator.Validate
}

// NewBuilder creates a request builder
func NewBuilder() *Builder {
	return &Builder{validator: validator.New()}
}

// Build validates the inputs and returns an immutable LookupRequest
// with the target in canonical form
//
// Parameters:
//   - target: IPv4/IPv6 literal, or empty for the caller's own address
//   - apiKey: provider credential, required
//
// Returns:
//   - models.LookupRequest: the validated request
//   - error: *apierror.Error of kind InvalidArgument on bad input
func (b *Builder) Build(target, apiKey string) (models.LookupRequest, error) {
	target = strings.TrimSpace(target)
	apiKey = strings.TrimSpace(apiKey)

	// The key is checked first so that an empty key fails regardless of target
	if err := b.validator.Var(apiKey, "required"); err != nil {
		return models.LookupRequest{}, apierror.NewInvalidArgument("api key is required")
	}

	// "omitempty,ip" accepts the empty self-lookup sentinel and any IPv4/IPv6 literal
	if err := b.validator.Var(target, "omitempty,ip"); err != nil {
		return models.LookupRequest{}, apierror.NewInvalidArgument("invalid IP address format: " + target)
	}

	return models.LookupRequest{Target: Canonical(target), APIKey: apiKey}, nil
}

// Canonical returns the canonical text form of an IP literal, so that
// 2001:DB8::1 and 2001:db8::0:1 name the same target
// Anything that does not parse is returned unchanged
func Canonical(target string) string {
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return target
	}
	return addr.String()
}

var defaultBuilder = NewBuilder()

// Build validates with a shared default builder
func Build(target, apiKey string) (models.LookupRequest, error) {
	return defaultBuilder.Build(target, apiKey)
}

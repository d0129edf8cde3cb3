// Package apierror defines the error taxonomy of the geolocation client.
//
// Every failure returned by a lookup is an *Error carrying one Kind. Callers
// branch on the kind with errors.Is against the sentinels below:
//
//	if errors.Is(err, apierror.ErrTimeout) { ... }
//	if errors.Is(err, apierror.ErrService) { ... }
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure
type Kind int

const (
	// InvalidArgument means bad caller input. Never retried.
	InvalidArgument Kind = iota + 1
	// Network means the provider could not be reached. Safe to retry.
	Network
	// Service means the provider answered with a failure status.
	Service
	// Parse means the provider payload broke the response contract.
	Parse
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case Network:
		return "network"
	case Service:
		return "service"
	case Parse:
		return "parse"
	default:
		return "unknown"
	}
}

// NetworkKind narrows a Network failure
type NetworkKind int

const (
	NetworkOther NetworkKind = iota
	Timeout
	DNS
	Connect
	Canceled
)

func (k NetworkKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case DNS:
		return "dns"
	case Connect:
		return "connect"
	case Canceled:
		return "canceled"
	default:
		return "other"
	}
}

// Error is the structured failure of a lookup
type Error struct {
	Kind      Kind
	Network   NetworkKind // only meaningful when Kind == Network
	Message   string
	RawStatus int   // provider HTTP status for Service errors, 0 otherwise
	Err       error // underlying cause, may be nil
}

// Sentinels for errors.Is; they match on kind only
var (
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrNetwork         = &Error{Kind: Network}
	ErrService         = &Error{Kind: Service}
	ErrParse           = &Error{Kind: Parse}
	ErrTimeout         = &Error{Kind: Network, Network: Timeout}
)

func (e *Error) Error() string {
	switch e.Kind {
	case Network:
		if e.Err != nil {
			return fmt.Sprintf("network error (%s): %s: %v", e.Network, e.Message, e.Err)
		}
		return fmt.Sprintf("network error (%s): %s", e.Network, e.Message)
	case Service:
		return fmt.Sprintf("service error (status %d): %s", e.RawStatus, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind. ErrTimeout additionally requires the
// network sub-kind to be Timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t == ErrTimeout {
		return e.Network == Timeout
	}
	return t.Message == "" && t.RawStatus == 0 && t.Err == nil
}

// Retryable reports whether repeating the same lookup may succeed
func (e *Error) Retryable() bool {
	switch e.Kind {
	case Network:
		return e.Network != Canceled
	case Service:
		return e.RawStatus == http.StatusTooManyRequests || e.RawStatus >= 500
	default:
		return false
	}
}

// NewInvalidArgument builds an InvalidArgument error
func NewInvalidArgument(message string) *Error {
	return &Error{Kind: InvalidArgument, Message: message}
}

// NewNetwork builds a Network error of the given sub-kind
func NewNetwork(kind NetworkKind, message string, err error) *Error {
	return &Error{Kind: Network, Network: kind, Message: message, Err: err}
}

// NewService builds a Service error for a provider status
func NewService(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: Service, Message: message, RawStatus: status}
}

// NewParse builds a Parse error
func NewParse(message string, err error) *Error {
	return &Error{Kind: Parse, Message: message, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// As returns err as an *Error when it is one
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

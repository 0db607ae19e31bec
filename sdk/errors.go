package rollgate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by the client.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNotInitialized is returned when the client is used before Init.
	ErrNotInitialized = errors.New("client not initialized")

	// ErrInvalidAPIKey is returned when the API key is missing or rejected.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrClientClosed is returned when the client is used after Close.
	ErrClientClosed = errors.New("client is closed")
)

// ErrorCategory classifies SDK errors.
type ErrorCategory string

const (
	CategoryNetwork        ErrorCategory = "network"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryValidation     ErrorCategory = "validation"
	CategoryServer         ErrorCategory = "server"
	CategoryCircuitOpen    ErrorCategory = "circuit_open"
	CategoryUnknown        ErrorCategory = "unknown"
)

// RollgateError is the base of every typed SDK error. The concrete types
// below embed it, so errors.As with any of them works through wrapping.
type RollgateError struct {
	Message    string
	Category   ErrorCategory
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *RollgateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rollgate: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("rollgate: %s", e.Message)
}

func (e *RollgateError) Unwrap() error { return e.Cause }

// base lets errors.As reach the embedded RollgateError through any of the
// concrete types.
func (e *RollgateError) base() *RollgateError { return e }

type baseError interface{ base() *RollgateError }

// NetworkError indicates a connectivity problem (DNS, timeout, refused).
type NetworkError struct{ RollgateError }

// AuthenticationError indicates an invalid or rejected API key (401/403).
type AuthenticationError struct{ RollgateError }

// RateLimitError indicates the server throttled the request (429).
type RateLimitError struct {
	RollgateError
	RetryAfter time.Duration
}

// ValidationError indicates a malformed request (400).
type ValidationError struct{ RollgateError }

// ServerError indicates a server-side failure (5xx).
type ServerError struct{ RollgateError }

// CircuitOpenError indicates the local circuit breaker rejected the call
// without touching the network.
type CircuitOpenError struct{ RollgateError }

// NewNetworkError wraps a connectivity failure.
func NewNetworkError(msg string, cause error) *NetworkError {
	return &NetworkError{RollgateError{Message: msg, Category: CategoryNetwork, Retryable: true, Cause: cause}}
}

// NewAuthenticationError wraps a 401/403 response.
func NewAuthenticationError(msg string, statusCode int) *AuthenticationError {
	return &AuthenticationError{RollgateError{Message: msg, Category: CategoryAuthentication, StatusCode: statusCode, Retryable: false, Cause: ErrInvalidAPIKey}}
}

// NewRateLimitError wraps a 429 response.
func NewRateLimitError(msg string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		RollgateError: RollgateError{Message: msg, Category: CategoryRateLimit, StatusCode: 429, Retryable: true},
		RetryAfter:    retryAfter,
	}
}

// NewValidationError wraps a 400 response.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{RollgateError{Message: msg, Category: CategoryValidation, StatusCode: 400, Retryable: false}}
}

// NewServerError wraps a 5xx response.
func NewServerError(msg string, statusCode int) *ServerError {
	return &ServerError{RollgateError{Message: msg, Category: CategoryServer, StatusCode: statusCode, Retryable: true}}
}

// NewCircuitOpenError reports a request rejected by the open breaker.
func NewCircuitOpenError(msg string) *CircuitOpenError {
	return &CircuitOpenError{RollgateError{Message: msg, Category: CategoryCircuitOpen, Retryable: false, Cause: ErrCircuitOpen}}
}

// ClassifyError maps an arbitrary error to an ErrorCategory. Typed SDK
// errors report their own category; everything else is matched on message
// patterns as a best effort.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var be baseError
	if errors.As(err, &be) {
		return be.base().Category
	}
	if errors.Is(err, ErrCircuitOpen) {
		return CategoryCircuitOpen
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return CategoryAuthentication
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection refused", "no such host", "timeout", "deadline exceeded", "connection reset", "broken pipe", "network is unreachable", "eof"):
		return CategoryNetwork
	case containsAny(msg, "unauthorized", "forbidden", "invalid api key", "401", "403"):
		return CategoryAuthentication
	case containsAny(msg, "rate limit", "too many requests", "429"):
		return CategoryRateLimit
	case containsAny(msg, "bad request", "validation", "400"):
		return CategoryValidation
	case containsAny(msg, "internal server error", "bad gateway", "service unavailable", "gateway timeout", "500", "502", "503", "504"):
		return CategoryServer
	default:
		return CategoryUnknown
	}
}

// IsRetryable reports whether a failed request is worth retrying. Network,
// rate limit and server errors are retryable; authentication and validation
// failures, and circuit breaker rejections, are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var be baseError
	if errors.As(err, &be) {
		return be.base().Retryable
	}
	switch ClassifyError(err) {
	case CategoryNetwork, CategoryRateLimit, CategoryServer:
		return true
	default:
		return false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package rollgate

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, CategoryUnknown},
		{"typed network", NewNetworkError("down", nil), CategoryNetwork},
		{"typed auth", NewAuthenticationError("nope", 401), CategoryAuthentication},
		{"typed rate limit", NewRateLimitError("slow", time.Second), CategoryRateLimit},
		{"typed validation", NewValidationError("bad"), CategoryValidation},
		{"typed server", NewServerError("oops", 500), CategoryServer},
		{"typed circuit", NewCircuitOpenError("rejected"), CategoryCircuitOpen},
		{"sentinel circuit", ErrCircuitOpen, CategoryCircuitOpen},
		{"sentinel api key", ErrInvalidAPIKey, CategoryAuthentication},
		{"pattern refused", errors.New("dial tcp: connection refused"), CategoryNetwork},
		{"pattern timeout", errors.New("context deadline exceeded"), CategoryNetwork},
		{"pattern unauthorized", errors.New("server said unauthorized"), CategoryAuthentication},
		{"pattern throttle", errors.New("too many requests"), CategoryRateLimit},
		{"pattern 503", errors.New("503 service unavailable"), CategoryServer},
		{"opaque", errors.New("something odd"), CategoryUnknown},
		{"wrapped typed", fmt.Errorf("refresh: %w", NewServerError("oops", 502)), CategoryServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Fatalf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{NewNetworkError("down", nil), true},
		{NewRateLimitError("slow", 0), true},
		{NewServerError("oops", 500), true},
		{NewAuthenticationError("nope", 403), false},
		{NewValidationError("bad"), false},
		{NewCircuitOpenError("rejected"), false},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorUnwrapping(t *testing.T) {
	auth := NewAuthenticationError("rejected", 401)
	if !errors.Is(auth, ErrInvalidAPIKey) {
		t.Fatal("auth error should unwrap to ErrInvalidAPIKey")
	}

	circuit := NewCircuitOpenError("rejected")
	if !errors.Is(circuit, ErrCircuitOpen) {
		t.Fatal("circuit error should unwrap to ErrCircuitOpen")
	}

	cause := errors.New("dial tcp: i/o timeout")
	net := NewNetworkError("fetch failed", cause)
	if !errors.Is(net, cause) {
		t.Fatal("network error should unwrap to its cause")
	}

	var srv *ServerError
	wrapped := fmt.Errorf("outer: %w", NewServerError("oops", 502))
	if !errors.As(wrapped, &srv) {
		t.Fatal("errors.As should find the typed error through wrapping")
	}
	if srv.StatusCode != 502 {
		t.Fatalf("status = %d, want 502", srv.StatusCode)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	err := NewRateLimitError("slow down", 7*time.Second)
	var rl *RateLimitError
	if !errors.As(error(err), &rl) {
		t.Fatal("errors.As failed")
	}
	if rl.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %v, want 7s", rl.RetryAfter)
	}
}

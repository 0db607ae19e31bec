package rollgate

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryResult reports the outcome of a retried operation.
type RetryResult struct {
	Success  bool
	Attempts int
	Err      error
}

// Retryer retries failed operations with exponential backoff and jitter.
// Only errors classified as retryable are retried; authentication and
// validation failures surface immediately.
type Retryer struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
	jitter     float64
}

// NewRetryer creates a retryer from the given settings.
func NewRetryer(cfg RetryConfig) *Retryer {
	return &Retryer{
		maxRetries: cfg.MaxRetries,
		base:       cfg.BaseDelay,
		max:        cfg.MaxDelay,
		jitter:     cfg.JitterFactor,
	}
}

// Do runs fn up to MaxRetries+1 times. It stops early on success, on a
// non-retryable error, or when ctx is cancelled (the context error wins in
// that case). The delay before attempt n+1 is BaseDelay·2ⁿ capped at
// MaxDelay, randomized by ±JitterFactor.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) RetryResult {
	bo := r.newBackoff()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult{Attempts: attempts, Err: err}
		}
		attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return RetryResult{Success: true, Attempts: attempts}
		}
		if !IsRetryable(lastErr) || attempt == r.maxRetries {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		// A 429 with Retry-After overrides the computed backoff.
		if ra := retryAfterHint(lastErr); ra > 0 {
			delay = ra
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return RetryResult{Attempts: attempts, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return RetryResult{Attempts: attempts, Err: lastErr}
}

func (r *Retryer) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.base
	bo.MaxInterval = r.max
	bo.Multiplier = 2
	bo.RandomizationFactor = r.jitter
	bo.Reset()
	return bo
}

func retryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

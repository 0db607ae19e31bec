// Package rollgate is the Go client SDK for the rollgate feature flag
// service. It keeps a local snapshot of evaluated flags in sync with the
// server via polling or streaming, and shields callers from transient
// failures with caching, retries and a circuit breaker.
package rollgate

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the configuration for the rollgate client.
type Config struct {
	// APIKey is the SDK key used as a bearer token (required).
	APIKey string

	// BaseURL is the base URL of the rollgate API (default: https://api.rollgate.io).
	BaseURL string

	// Timeout bounds every outbound request (default: 5s).
	Timeout time.Duration

	// RefreshInterval is the polling interval for flag updates
	// (DefaultConfig uses 30s). Zero disables polling. Ignored when
	// EnableStreaming is true.
	RefreshInterval time.Duration

	// EnableStreaming switches from polling to a persistent SSE connection.
	EnableStreaming bool

	// StreamURL overrides the base URL for the streaming connection.
	StreamURL string

	// TolerateInitFailure makes Init succeed on a failed first fetch, serving
	// whatever cached data is available until a refresh lands. Init also
	// tolerates the failure without this flag when the cache holds data.
	TolerateInitFailure bool

	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Cache          CacheConfig
	Events         EventCollectorConfig

	// Logger for SDK diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first try (default: 3).
	MaxRetries int

	// BaseDelay is the initial delay between retries (default: 100ms).
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay (default: 10s).
	MaxDelay time.Duration

	// JitterFactor randomizes delays by ±factor (default: 0.1, range 0..1).
	JitterFactor float64
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening (default: 5).
	FailureThreshold int

	// RecoveryTimeout is how long to wait before allowing a trial request (default: 30s).
	RecoveryTimeout time.Duration

	// MonitoringWindow is the time window failures are counted over (default: 60s).
	MonitoringWindow time.Duration

	// SuccessThreshold is the consecutive successes needed to close from half-open (default: 3).
	SuccessThreshold int
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// TTL is how long cached flags are considered fresh (default: 5m).
	TTL time.Duration

	// StaleTTL is how long past TTL stale flags may serve as fallback (default: 1h).
	StaleTTL time.Duration

	// Enabled controls whether caching is enabled (default: true).
	Enabled bool
}

// EventCollectorConfig configures the conversion event buffer.
type EventCollectorConfig struct {
	// FlushInterval is how often buffered events are shipped (default: 30s).
	FlushInterval time.Duration

	// MaxBufferSize triggers an early flush when reached (default: 100).
	MaxBufferSize int

	// Enabled controls whether events are collected at all (default: true).
	Enabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		BaseURL:         "https://api.rollgate.io",
		Timeout:         5 * time.Second,
		RefreshInterval: 30 * time.Second,
		Retry:           DefaultRetryConfig(),
		CircuitBreaker:  DefaultCircuitBreakerConfig(),
		Cache:           DefaultCacheConfig(),
		Events:          DefaultEventCollectorConfig(),
		Logger:          zerolog.Nop(),
	}
}

// DefaultRetryConfig returns default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.1,
	}
}

// DefaultCircuitBreakerConfig returns default circuit breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringWindow: 60 * time.Second,
		SuccessThreshold: 3,
	}
}

// DefaultCacheConfig returns default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      5 * time.Minute,
		StaleTTL: 1 * time.Hour,
		Enabled:  true,
	}
}

// DefaultEventCollectorConfig returns default event collector settings.
func DefaultEventCollectorConfig() EventCollectorConfig {
	return EventCollectorConfig{
		FlushInterval: 30 * time.Second,
		MaxBufferSize: 100,
		Enabled:       true,
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.rollgate.io"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Retry.MaxRetries == 0 && c.Retry.BaseDelay == 0 {
		c.Retry = DefaultRetryConfig()
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		c.CircuitBreaker = DefaultCircuitBreakerConfig()
	}
	if c.Cache.TTL == 0 {
		c.Cache = DefaultCacheConfig()
	}
	if c.Events.FlushInterval == 0 && c.Events.MaxBufferSize == 0 {
		c.Events = DefaultEventCollectorConfig()
	}
}

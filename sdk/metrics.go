package rollgate

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of the client's internal counters.
type Metrics struct {
	Requests      int64
	Failures      int64
	NotModified   int64
	Evaluations   int64
	AvgLatency    time.Duration
	MaxLatency    time.Duration
	Cache         CacheStats
	Circuit       CircuitBreakerStats
	ErrorsByKind  map[ErrorCategory]int64
	LastSyncAt    time.Time
	LastSyncError string
}

type metricsRecorder struct {
	mu           sync.Mutex
	requests     int64
	failures     int64
	notModified  int64
	evaluations  int64
	totalLatency time.Duration
	maxLatency   time.Duration
	errors       map[ErrorCategory]int64
	lastSyncAt   time.Time
	lastSyncErr  string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{errors: make(map[ErrorCategory]int64)}
}

func (m *metricsRecorder) recordRequest(latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.totalLatency += latency
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	if err != nil {
		m.failures++
		m.errors[ClassifyError(err)]++
		m.lastSyncErr = err.Error()
		return
	}
	m.lastSyncAt = time.Now()
	m.lastSyncErr = ""
}

func (m *metricsRecorder) recordNotModified() {
	m.mu.Lock()
	m.notModified++
	m.mu.Unlock()
}

func (m *metricsRecorder) recordEvaluation() {
	m.mu.Lock()
	m.evaluations++
	m.mu.Unlock()
}

func (m *metricsRecorder) snapshot(cache CacheStats, circuit CircuitBreakerStats) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := make(map[ErrorCategory]int64, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	var avg time.Duration
	if m.requests > 0 {
		avg = m.totalLatency / time.Duration(m.requests)
	}
	return Metrics{
		Requests:      m.requests,
		Failures:      m.failures,
		NotModified:   m.notModified,
		Evaluations:   m.evaluations,
		AvgLatency:    avg,
		MaxLatency:    m.maxLatency,
		Cache:         cache,
		Circuit:       circuit,
		ErrorsByKind:  errs,
		LastSyncAt:    m.lastSyncAt,
		LastSyncError: m.lastSyncErr,
	}
}

package rollgate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ClientState is the lifecycle state of the client.
type ClientState string

const (
	StateUninitialized ClientState = "uninitialized"
	StateInitializing  ClientState = "initializing"
	StateReady         ClientState = "ready"
	StateFailed        ClientState = "failed"
	StateClosed        ClientState = "closed"
)

// User identifies the end user flags are evaluated for.
type User struct {
	ID         string         `json:"id"`
	Email      string         `json:"email,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// flagSnapshot is the immutable unit of flag state. Reads load it through
// an atomic pointer so evaluation never takes a lock.
type flagSnapshot struct {
	flags   map[string]bool
	values  map[string]any
	reasons map[string]EvaluationReason
	etag    string
}

var emptySnapshot = &flagSnapshot{}

// Client keeps a local snapshot of evaluated flags in sync with the
// rollgate server and evaluates them without network round trips.
type Client struct {
	cfg  Config
	http *http.Client

	state atomic.Value // ClientState
	snap  atomic.Pointer[flagSnapshot]

	userMu sync.RWMutex
	user   User

	cache     *FlagCache
	breaker   *CircuitBreaker
	retryer   *Retryer
	dedup     *RequestDeduplicator
	metrics   *metricsRecorder
	events    dispatcher
	collector *eventCollector

	streamMu sync.Mutex
	stream   *sseClient

	pollStop chan struct{}
	pollDone chan struct{}
	pollOnce sync.Once

	closeOnce sync.Once
}

// NewClient creates an unstarted client. Call Init to connect.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}
	cfg.applyDefaults()

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   NewFlagCache(cfg.Cache),
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		retryer: NewRetryer(cfg.Retry),
		dedup:   NewRequestDeduplicator(),
		metrics: newMetricsRecorder(),
	}
	c.state.Store(StateUninitialized)
	c.snap.Store(emptySnapshot)
	c.breaker.OnStateChange(func(from, to CircuitState) {
		c.events.emit(CircuitStateChangedEvent{From: from, To: to})
	})
	if cfg.Events.Enabled {
		c.collector = newEventCollector(cfg, c.http)
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState {
	return c.state.Load().(ClientState)
}

// Subscribe registers an observer for client events. Observers registered
// before Init see the ReadyEvent.
func (c *Client) Subscribe(fn Observer) {
	c.events.subscribe(fn)
}

// Init connects to the server, loads the initial flag snapshot and starts
// background synchronization. A failed initial fetch still yields a ready
// client when the cache holds usable data or TolerateInitFailure is set;
// otherwise the client ends up in the failed state and the error is
// returned.
func (c *Client) Init(ctx context.Context) error {
	switch c.State() {
	case StateClosed:
		return ErrClientClosed
	case StateReady, StateInitializing:
		return nil
	}
	c.state.Store(StateInitializing)

	// Serve cached data immediately while the first fetch is in flight.
	if flags, ok := c.cache.Get(); ok {
		c.snap.Store(&flagSnapshot{flags: flags})
	}

	if err := c.Refresh(ctx); err != nil {
		if stale, ok := c.cache.GetStale(); ok {
			c.snap.Store(&flagSnapshot{flags: stale})
			c.becomeReady()
			return nil
		}
		if c.cfg.TolerateInitFailure {
			c.becomeReady()
			return nil
		}
		c.state.Store(StateFailed)
		return err
	}
	c.becomeReady()
	return nil
}

func (c *Client) becomeReady() {
	c.state.Store(StateReady)
	c.events.emit(ReadyEvent{})
	if c.cfg.EnableStreaming {
		c.startStreaming()
	} else if c.cfg.RefreshInterval > 0 {
		c.startPolling()
	}
}

// IsEnabled returns the flag's value, or defaultValue when the flag is
// unknown or the client is not ready. It never fails and never blocks.
func (c *Client) IsEnabled(key string, defaultValue bool) bool {
	return c.IsEnabledDetail(key, defaultValue).Value
}

// IsEnabledDetail is IsEnabled plus the reason behind the result.
func (c *Client) IsEnabledDetail(key string, defaultValue bool) BoolEvaluationDetail {
	c.metrics.recordEvaluation()
	if s := c.State(); s != StateReady {
		return BoolEvaluationDetail{Value: defaultValue, Reason: errorReason(EvalErrorClientNotReady)}
	}
	snap := c.snap.Load()
	value, ok := snap.flags[key]
	if !ok {
		return BoolEvaluationDetail{Value: defaultValue, Reason: errorReason(EvalErrorFlagNotFound)}
	}
	if reason, ok := snap.reasons[key]; ok {
		return BoolEvaluationDetail{Value: value, Reason: reason}
	}
	return BoolEvaluationDetail{Value: value, Reason: unknownReason()}
}

// GetAllFlags returns a copy of the current flag snapshot.
func (c *Client) GetAllFlags() map[string]bool {
	return copyFlags(c.snap.Load().flags)
}

// GetString returns the flag's variation value as a string.
func (c *Client) GetString(key, defaultValue string) string {
	if v, ok := c.typedValue(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

// GetNumber returns the flag's variation value as a float64.
func (c *Client) GetNumber(key string, defaultValue float64) float64 {
	if v, ok := c.typedValue(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
	}
	return defaultValue
}

// GetJSON unmarshals the flag's variation value into out. The default is
// left untouched in out when the flag is missing or not ready.
func (c *Client) GetJSON(key string, out any) error {
	v, ok := c.typedValue(key)
	if !ok {
		return fmt.Errorf("rollgate: no value for flag %q", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) typedValue(key string) (any, bool) {
	c.metrics.recordEvaluation()
	if c.State() != StateReady {
		return nil, false
	}
	v, ok := c.snap.Load().values[key]
	return v, ok
}

// Refresh fetches the latest flags now, bypassing the poll schedule.
// Concurrent callers share one request. Errors propagate to the caller.
func (c *Client) Refresh(ctx context.Context) error {
	switch c.State() {
	case StateClosed:
		return ErrClientClosed
	case StateUninitialized:
		return ErrNotInitialized
	}
	_, _, err := c.dedup.Dedupe("fetch-flags", func() (any, error) {
		return nil, c.fetchFlags(ctx)
	})
	return err
}

// fetchFlags runs the guarded fetch pipeline: the circuit breaker wraps
// the whole retry sequence and records a single outcome per call.
func (c *Client) fetchFlags(ctx context.Context) error {
	var result *fetchResult
	err := c.breaker.Execute(func() error {
		rr := c.retryer.Do(ctx, func(ctx context.Context) error {
			fr, err := c.doFetchRequest(ctx)
			if err != nil {
				return err
			}
			result = fr
			return nil
		})
		return rr.Err
	})
	if err != nil {
		// Degrade to stale cache when the server is unreachable so
		// readers keep getting the last known values.
		if stale, ok := c.cache.GetStale(); ok {
			cur := c.snap.Load()
			if cur.flags == nil {
				c.snap.Store(&flagSnapshot{flags: stale})
			}
		}
		return err
	}
	if result.notModified {
		// The server confirmed the snapshot is current, so the cached
		// entry is as good as a fresh fetch.
		c.metrics.recordNotModified()
		if !c.cache.Touch() {
			c.cache.Set(c.snap.Load().flags)
		}
		return nil
	}
	c.applySnapshot(&flagSnapshot{
		flags:   result.flags,
		values:  result.values,
		reasons: result.reasons,
		etag:    result.etag,
	})
	return nil
}

// applySnapshot swaps in the new snapshot, updates the cache and emits
// change events for flags whose value actually flipped.
func (c *Client) applySnapshot(next *flagSnapshot) {
	prev := c.snap.Swap(next)
	c.cache.Set(next.flags)

	c.events.emit(FlagsUpdatedEvent{Flags: copyFlags(next.flags)})
	for key, newVal := range next.flags {
		if oldVal, ok := prev.flags[key]; ok && oldVal != newVal {
			c.events.emit(FlagChangedEvent{Key: key, OldValue: oldVal, NewValue: newVal})
		}
	}
	for key, oldVal := range prev.flags {
		if _, ok := next.flags[key]; !ok {
			c.events.emit(FlagChangedEvent{Key: key, OldValue: oldVal, NewValue: false})
		}
	}
}

type fetchResult struct {
	flags       map[string]bool
	values      map[string]any
	reasons     map[string]EvaluationReason
	etag        string
	notModified bool
}

func (c *Client) doFetchRequest(ctx context.Context) (*fetchResult, error) {
	start := time.Now()
	fr, err := c.doFetchRequestInner(ctx)
	c.metrics.recordRequest(time.Since(start), err)
	return fr, err
}

func (c *Client) doFetchRequestInner(ctx context.Context) (*fetchResult, error) {
	q := url.Values{}
	q.Set("withReasons", "true")
	q.Set("typed", "true")
	c.userMu.RLock()
	user := c.user
	c.userMu.RUnlock()
	if user.ID != "" {
		q.Set("user_id", user.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/sdk/flags?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if user.Email != "" || len(user.Attributes) > 0 {
		if header, err := encodeUserContext(user); err == nil {
			req.Header.Set("X-User-Context", header)
		}
	}
	if etag := c.snap.Load().etag; etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewNetworkError("flag fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &fetchResult{notModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var payload struct {
		Flags   map[string]bool             `json:"flags"`
		Values  map[string]any              `json:"values"`
		Reasons map[string]EvaluationReason `json:"reasons"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewServerError("malformed flag response", resp.StatusCode)
	}
	return &fetchResult{
		flags:   payload.Flags,
		values:  payload.Values,
		reasons: payload.Reasons,
		etag:    resp.Header.Get("ETag"),
	}, nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthenticationError(msg, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		var retryAfter time.Duration
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return NewRateLimitError(msg, retryAfter)
	case resp.StatusCode == http.StatusBadRequest:
		return NewValidationError(msg)
	case resp.StatusCode >= 500:
		return NewServerError(msg, resp.StatusCode)
	default:
		return NewServerError(msg, resp.StatusCode)
	}
}

// Identify switches the client to evaluate flags for the given user and
// forces a refresh. The server records the session so that subsequent
// streamed updates are evaluated for this user.
func (c *Client) Identify(ctx context.Context, user User) error {
	if c.State() == StateClosed {
		return ErrClientClosed
	}
	if user.ID == "" {
		return NewValidationError("user id is required")
	}
	if err := c.sendIdentify(ctx, user); err != nil {
		return err
	}
	c.userMu.Lock()
	c.user = user
	c.userMu.Unlock()
	c.restartStream()
	return c.Refresh(ctx)
}

// Reset drops the identified user and refreshes the anonymous snapshot.
func (c *Client) Reset(ctx context.Context) error {
	if c.State() == StateClosed {
		return ErrClientClosed
	}
	c.userMu.Lock()
	c.user = User{}
	c.userMu.Unlock()
	c.cache.Clear()
	c.restartStream()
	return c.Refresh(ctx)
}

func (c *Client) sendIdentify(ctx context.Context, user User) error {
	body, err := json.Marshal(map[string]any{"user": user})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/sdk/identify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return NewNetworkError("identify failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(resp)
	}
	return nil
}

// Track buffers a conversion event for batched delivery.
func (c *Client) Track(ev TrackEvent) {
	if c.collector == nil || c.State() == StateClosed {
		return
	}
	if ev.UserID == "" {
		c.userMu.RLock()
		ev.UserID = c.user.ID
		c.userMu.RUnlock()
	}
	c.collector.add(ev)
}

// Metrics returns a snapshot of the client's internal counters.
func (c *Client) Metrics() Metrics {
	return c.metrics.snapshot(c.cache.Stats(), c.breaker.Stats())
}

// ForceCircuitOpen opens the circuit breaker, e.g. during a known outage.
func (c *Client) ForceCircuitOpen() { c.breaker.ForceOpen() }

// ForceCircuitReset closes the circuit breaker and clears its counters.
func (c *Client) ForceCircuitReset() { c.breaker.ForceReset() }

// Close stops background synchronization, flushes pending track events and
// puts the client in the closed state. Flag reads keep returning defaults.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		c.stopPolling()
		c.streamMu.Lock()
		if c.stream != nil {
			c.stream.close()
			c.stream = nil
		}
		c.streamMu.Unlock()
		if c.collector != nil {
			c.collector.close()
		}
		c.events.stop()
	})
	return nil
}

func (c *Client) startPolling() {
	c.pollOnce.Do(func() {
		c.pollStop = make(chan struct{})
		c.pollDone = make(chan struct{})
		go c.pollLoop()
	})
}

func (c *Client) pollLoop() {
	defer close(c.pollDone)
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.pollStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			if err := c.Refresh(ctx); err != nil {
				// Background failures are absorbed; observers are told.
				c.cfg.Logger.Debug().Err(err).Msg("background refresh failed")
				c.events.emit(ErrorEvent{Err: err})
			}
			cancel()
		}
	}
}

func (c *Client) stopPolling() {
	if c.pollStop == nil {
		return
	}
	select {
	case <-c.pollStop:
	default:
		close(c.pollStop)
	}
	<-c.pollDone
}

func (c *Client) startStreaming() {
	c.userMu.RLock()
	userID := c.user.ID
	c.userMu.RUnlock()
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	// Close may have run between dropping the old stream and here; a
	// closed client must not come back with a live connection.
	if c.State() == StateClosed || c.stream != nil {
		return
	}
	c.stream = newSSEClient(c.cfg, userID, streamHandlers{
		onSnapshot: func(flags map[string]bool) {
			cur := c.snap.Load()
			c.applySnapshot(&flagSnapshot{flags: flags, values: cur.values, reasons: cur.reasons})
		},
		onUpdate: func(key string, enabled bool) {
			cur := c.snap.Load()
			next := copyFlags(cur.flags)
			next[key] = enabled
			c.applySnapshot(&flagSnapshot{flags: next, values: cur.values, reasons: cur.reasons, etag: cur.etag})
		},
		onRefetch: func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			defer cancel()
			if err := c.Refresh(ctx); err != nil {
				c.events.emit(ErrorEvent{Err: err})
			}
		},
		onError: func(err error) {
			c.events.emit(ErrorEvent{Err: err})
		},
	})
	c.stream.start()
}

// restartStream reconnects the SSE stream with the current user so server
// side evaluation tracks the new identity.
func (c *Client) restartStream() {
	if !c.cfg.EnableStreaming {
		return
	}
	c.streamMu.Lock()
	s := c.stream
	c.stream = nil
	c.streamMu.Unlock()
	if s == nil {
		return
	}
	s.close()
	c.startStreaming()
}

func encodeUserContext(user User) (string, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

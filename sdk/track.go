package rollgate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TrackEvent is a single conversion or exposure event to ship to the
// server's event ingestion endpoint.
type TrackEvent struct {
	FlagKey     string         `json:"flagKey"`
	EventName   string         `json:"eventName"`
	UserID      string         `json:"userId"`
	VariationID string         `json:"variationId,omitempty"`
	Value       *float64       `json:"value,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type trackBatch struct {
	Events []TrackEvent `json:"events"`
}

// eventCollector buffers track events and ships them in batches, either on
// a timer or when the buffer fills. Shipping is best-effort: a failed flush
// is logged and the batch is dropped rather than retried, so a dead server
// cannot grow the buffer without bound.
type eventCollector struct {
	mu     sync.Mutex
	buffer []TrackEvent

	endpoint string
	apiKey   string
	client   *http.Client
	maxSize  int
	interval time.Duration
	log      zerolog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newEventCollector(cfg Config, client *http.Client) *eventCollector {
	c := &eventCollector{
		endpoint: cfg.BaseURL + "/api/v1/sdk/events",
		apiKey:   cfg.APIKey,
		client:   client,
		maxSize:  cfg.Events.MaxBufferSize,
		interval: cfg.Events.FlushInterval,
		log:      cfg.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

// add buffers one event, flushing immediately when the buffer is full.
func (c *eventCollector) add(ev TrackEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.buffer = append(c.buffer, ev)
	full := len(c.buffer) >= c.maxSize
	c.mu.Unlock()
	if full {
		c.flush()
	}
}

func (c *eventCollector) flushLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *eventCollector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if err := c.send(batch); err != nil {
		c.log.Warn().Err(err).Int("events", len(batch)).Msg("dropping event batch")
	}
}

func (c *eventCollector) send(events []TrackEvent) error {
	body, err := json.Marshal(trackBatch{Events: events})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return NewNetworkError("event flush failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("event flush failed: status %d", resp.StatusCode)
	}
	return nil
}

// close stops the flush loop after one final flush.
func (c *eventCollector) close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

package rollgate

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// streamHandlers are the callbacks the client wires into the SSE reader.
type streamHandlers struct {
	onSnapshot func(flags map[string]bool)
	onUpdate   func(key string, enabled bool)
	onRefetch  func()
	onError    func(err error)
}

// sseClient maintains a persistent server-sent-events connection to the
// flag stream and reconnects with exponential backoff on any failure.
type sseClient struct {
	endpoint string
	userID   string
	client   *http.Client
	handlers streamHandlers
	log      zerolog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newSSEClient(cfg Config, userID string, handlers streamHandlers) *sseClient {
	base := cfg.StreamURL
	if base == "" {
		base = cfg.BaseURL
	}
	q := url.Values{}
	q.Set("token", cfg.APIKey)
	if userID != "" {
		q.Set("user_id", userID)
	}
	return &sseClient{
		endpoint: base + "/api/v1/sdk/stream?" + q.Encode(),
		userID:   userID,
		// Streaming reads must not be cut off by the request timeout.
		client:   &http.Client{},
		handlers: handlers,
		log:      cfg.Logger,
		done:     make(chan struct{}),
	}
}

// start launches the connect/read/reconnect loop.
func (s *sseClient) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
}

func (s *sseClient) run(ctx context.Context) {
	defer close(s.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Debug().Err(err).Msg("stream disconnected")
			if s.handlers.onError != nil {
				s.handlers.onError(err)
			}
		}
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			delay = 30 * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connect opens the stream and reads events until the connection drops.
func (s *sseClient) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return NewNetworkError("stream connect failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAuthenticationError("stream rejected", resp.StatusCode)
	case resp.StatusCode >= 400:
		return NewServerError("stream rejected", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName != "" || data.Len() > 0 {
				s.dispatch(eventName, data.String())
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment line, used by the server as a heartbeat
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return NewNetworkError("stream read failed", err)
	}
	return nil
}

func (s *sseClient) dispatch(event, data string) {
	switch event {
	case "init":
		var payload struct {
			Flags map[string]bool `json:"flags"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			s.log.Debug().Err(err).Msg("bad init payload")
			return
		}
		if s.handlers.onSnapshot != nil {
			s.handlers.onSnapshot(payload.Flags)
		}
	case "flag-update":
		var payload struct {
			Key     string `json:"key"`
			Enabled bool   `json:"enabled"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Key == "" {
			return
		}
		if s.handlers.onUpdate != nil {
			s.handlers.onUpdate(payload.Key, payload.Enabled)
		}
	case "flag-changed":
		// The server signals that something changed without carrying the
		// new state; refetch the full snapshot.
		if s.handlers.onRefetch != nil {
			s.handlers.onRefetch()
		}
	}
}

// close tears down the connection and waits for the reader to exit.
func (s *sseClient) close() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	if s.cancel != nil {
		<-s.done
	}
}

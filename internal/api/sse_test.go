package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rollgate/rollgate-go/internal/rules"
)

type sseEvent struct {
	Event string
	Data  string
}

// readSSEEvents parses events from a streaming response body on a channel.
func readSSEEvents(body *bufio.Scanner) <-chan sseEvent {
	events := make(chan sseEvent, 16)
	go func() {
		defer close(events)
		var current sseEvent
		for body.Scan() {
			line := body.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				current.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && current.Event != "":
				events <- current
				current = sseEvent{}
			}
		}
	}()
	return events
}

func waitEvent(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream closed while waiting for %q", name)
			}
			if ev.Event == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", name)
		}
	}
}

func TestStream_RejectsBadToken(t *testing.T) {
	_, _, handler := newTestServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sdk/stream?token=wrong", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestStream_InitAndFlagUpdate(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedFlag(t, srv, st, rules.Flag{Key: "dark_mode", Enabled: true, RolloutPercentage: 100})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		ts.URL+"/api/v1/sdk/stream?token="+testSDKKey+"&user_id=u1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := readSSEEvents(bufio.NewScanner(resp.Body))

	init := waitEvent(t, events, "init")
	var initPayload struct {
		Flags map[string]bool `json:"flags"`
	}
	if err := json.Unmarshal([]byte(init.Data), &initPayload); err != nil {
		t.Fatalf("init payload: %v", err)
	}
	if !initPayload.Flags["dark_mode"] {
		t.Errorf("init flags = %v", initPayload.Flags)
	}

	// Mutating a flag must push a flag-update with the re-evaluated value.
	seedFlag(t, srv, st, rules.Flag{Key: "dark_mode", Enabled: false})

	update := waitEvent(t, events, "flag-update")
	var updatePayload struct {
		Key     string `json:"key"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal([]byte(update.Data), &updatePayload); err != nil {
		t.Fatalf("update payload: %v", err)
	}
	if updatePayload.Key != "dark_mode" || updatePayload.Enabled {
		t.Errorf("update = %+v, want dark_mode disabled", updatePayload)
	}

	changed := waitEvent(t, events, "flag-changed")
	var changedPayload struct {
		ETag string `json:"etag"`
	}
	if err := json.Unmarshal([]byte(changed.Data), &changedPayload); err != nil {
		t.Fatalf("flag-changed payload: %v", err)
	}
	if changedPayload.ETag == "" {
		t.Error("flag-changed must carry the new etag")
	}
}

func TestStream_Heartbeat(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedFlag(t, srv, st, rules.Flag{Key: "k", Enabled: true})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		ts.URL+"/api/v1/sdk/stream?token="+testSDKKey, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	// The heartbeat comment should arrive within a few intervals.
	scanner := bufio.NewScanner(resp.Body)
	sawPing := make(chan struct{})
	go func() {
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), ": ping") {
				close(sawPing)
				return
			}
		}
	}()

	select {
	case <-sawPing:
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("no heartbeat received")
	}
}

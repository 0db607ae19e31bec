package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rollgate/rollgate-go/internal/engine"
	"github.com/rollgate/rollgate-go/internal/telemetry"
)

// handleStream serves the SSE feed. The connection opens with an `init`
// event carrying the full evaluated flag set for the caller's user, then a
// `flag-update` event per changed flag whenever the snapshot is swapped,
// followed by a `flag-changed` summary with the new ETag.
// Comment lines keep intermediaries from severing idle connections.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.SDKKey)) != 1 {
		UnauthorizedError(w, r, "invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	user := s.extractUserContext(r)
	changes, unsub := s.snap.Subscribe()
	defer unsub()

	s.writeInitEvent(w, user)
	flusher.Flush()

	heartbeat := time.NewTicker(s.opts.SSEHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case change, ok := <-changes:
			if !ok {
				return
			}
			snap := s.snap.Load()
			for _, key := range change.Keys {
				flag, exists := snap.Flags[key]
				enabled := false
				if exists {
					result := engine.Evaluate(&flag, user, snap)
					enabled = result.Value
				}
				payload, _ := json.Marshal(map[string]any{"key": key, "enabled": enabled})
				_, _ = fmt.Fprintf(w, "event: flag-update\ndata: %s\n\n", payload)
			}
			summary, _ := json.Marshal(map[string]any{"etag": change.ETag})
			_, _ = fmt.Fprintf(w, "event: flag-changed\ndata: %s\n\n", summary)
			flusher.Flush()
		}
	}
}

func (s *Server) writeInitEvent(w http.ResponseWriter, user *engine.UserContext) {
	snap := s.snap.Load()
	evaluated := make(map[string]bool, len(snap.Flags))
	for key, flag := range snap.Flags {
		f := flag
		evaluated[key] = engine.Evaluate(&f, user, snap).Value
	}

	payload, _ := json.Marshal(map[string]any{"flags": evaluated})
	_, _ = fmt.Fprintf(w, "event: init\ndata: %s\n\n", payload)
}

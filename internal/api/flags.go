package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/rollgate/rollgate-go/internal/engine"
	"github.com/rollgate/rollgate-go/internal/telemetry"
)

type flagsResponse struct {
	Flags   map[string]bool          `json:"flags"`
	Values  map[string]any           `json:"values,omitempty"`
	Reasons map[string]engine.Reason `json:"reasons,omitempty"`
}

// handleSDKFlags evaluates every flag in the current snapshot for the
// caller's user context. `withReasons=true` attaches per-flag reasons and
// `typed=true` attaches variation payloads. Responses carry an ETag over the
// evaluated values; a matching If-None-Match short-circuits to 304.
func (s *Server) handleSDKFlags(w http.ResponseWriter, r *http.Request) {
	user := s.extractUserContext(r)
	withReasons := r.URL.Query().Get("withReasons") == "true"
	typed := r.URL.Query().Get("typed") == "true"

	snap := s.snap.Load()
	evaluated := make(map[string]bool, len(snap.Flags))
	reasons := make(map[string]engine.Reason, len(snap.Flags))
	values := make(map[string]any, len(snap.Flags))

	for key, flag := range snap.Flags {
		f := flag
		result := engine.Evaluate(&f, user, snap)
		evaluated[key] = result.Value
		reasons[key] = result.Reason
		if typed {
			values[key] = engine.TypedValue(&f, result)
		}
		telemetry.Evaluations.WithLabelValues(string(result.Reason.Kind)).Inc()
	}

	etag := evaluationETag(evaluated)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := flagsResponse{Flags: evaluated}
	if withReasons {
		resp.Reasons = reasons
	}
	if typed {
		resp.Values = values
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, resp)
}

// extractUserContext resolves the user a request evaluates as.
// Priority: X-User-Context header (base64 JSON), individual X-User-* headers,
// then the user_id query parameter joined with any identify session.
func (s *Server) extractUserContext(r *http.Request) *engine.UserContext {
	if xuc := r.Header.Get("X-User-Context"); xuc != "" {
		decoded, err := base64.StdEncoding.DecodeString(xuc)
		if err != nil {
			decoded, err = base64.URLEncoding.DecodeString(xuc)
		}
		if err == nil {
			var user engine.UserContext
			if json.Unmarshal(decoded, &user) == nil && user.ID != "" {
				return &user
			}
		}
	}

	if id := r.Header.Get("X-User-ID"); id != "" {
		user := &engine.UserContext{ID: id, Email: r.Header.Get("X-User-Email")}
		if raw := r.Header.Get("X-User-Attributes"); raw != "" {
			var attrs map[string]any
			if json.Unmarshal([]byte(raw), &attrs) == nil {
				user.Attributes = attrs
			}
		}
		return user
	}

	id := r.URL.Query().Get("user_id")
	user := &engine.UserContext{ID: id}
	if id != "" {
		s.sessionMu.RLock()
		user.Attributes = s.sessions[id]
		s.sessionMu.RUnlock()
	}
	return user
}

type identifyRequest struct {
	User engine.UserContext `json:"user"`
}

// handleIdentify stores a user session so later requests can evaluate with
// the same attributes by user_id alone.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	if req.User.ID == "" {
		BadRequestError(w, r, ErrCodeValidation, "user.id is required")
		return
	}

	attrs := make(map[string]any, len(req.User.Attributes)+1)
	if req.User.Email != "" {
		attrs["email"] = req.User.Email
	}
	for k, v := range req.User.Attributes {
		attrs[k] = v
	}

	s.sessionMu.Lock()
	s.sessions[req.User.ID] = attrs
	s.sessionMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type trackEvent struct {
	FlagKey     string         `json:"flagKey"`
	EventName   string         `json:"eventName"`
	UserID      string         `json:"userId"`
	VariationID string         `json:"variationId,omitempty"`
	Value       *float64       `json:"value,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// handleEvents accepts batched analytics events from SDK clients.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events []trackEvent `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	for _, ev := range body.Events {
		if ev.FlagKey == "" || ev.EventName == "" {
			BadRequestError(w, r, ErrCodeValidation, "each event requires flagKey and eventName")
			return
		}
	}

	telemetry.IngestedEvents.Add(float64(len(body.Events)))
	s.log.Debug().Int("count", len(body.Events)).Msg("ingested sdk events")

	writeJSON(w, http.StatusOK, map[string]int{"received": len(body.Events)})
}

// evaluationETag hashes the evaluated flag values so clients can long-poll
// with If-None-Match. Deterministic across processes for equal results.
func evaluationETag(evaluated map[string]bool) string {
	keys := make([]string, 0, len(evaluated))
	for k := range evaluated {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	digest := xxhash.New()
	for _, k := range keys {
		_, _ = digest.WriteString(fmt.Sprintf("%s=%t;", k, evaluated[k]))
	}
	return fmt.Sprintf(`W/"%x"`, digest.Sum64())
}

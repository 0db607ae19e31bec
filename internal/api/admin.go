package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rollgate/rollgate-go/internal/rules"
	"github.com/rollgate/rollgate-go/internal/store"
)

type upsertFlagRequest struct {
	Description       string         `json:"description"`
	Enabled           bool           `json:"enabled"`
	RolloutPercentage int            `json:"rolloutPercentage"`
	TargetUsers       []string       `json:"targetUsers,omitempty"`
	Rules             []rules.Rule   `json:"rules,omitempty"`
	Variations        map[string]any `json:"variations,omitempty"`
	DefaultVariation  string         `json:"defaultVariation,omitempty"`
	Env               *string        `json:"env,omitempty"` // defaults to the server env
}

type upsertResponse struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := s.store.ListFlags(r.Context(), s.opts.Env)
	if err != nil {
		InternalError(w, r, "failed to list flags")
		return
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	flag, err := s.store.GetFlag(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "flag not found")
			return
		}
		InternalError(w, r, "failed to load flag")
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleUpsertFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req upsertFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	env := s.opts.Env
	if req.Env != nil && strings.TrimSpace(*req.Env) != "" {
		env = strings.TrimSpace(*req.Env)
	}

	// Rules submitted without an id get one assigned.
	for i := range req.Rules {
		if req.Rules[i].ID == "" {
			req.Rules[i].ID = uuid.NewString()
		}
	}

	flag := rules.Flag{
		Key:               key,
		Description:       req.Description,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
		TargetUsers:       req.TargetUsers,
		Rules:             req.Rules,
		Variations:        req.Variations,
		DefaultVariation:  req.DefaultVariation,
		Env:               env,
	}
	if err := rules.ValidateFlag(flag); err != nil {
		BadRequestError(w, r, ErrCodeValidation, err.Error())
		return
	}

	if err := s.store.UpsertFlag(r.Context(), flag); err != nil {
		InternalError(w, r, "db upsert failed")
		return
	}
	if err := s.RebuildSnapshot(r.Context()); err != nil {
		InternalError(w, r, "snapshot rebuild failed")
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: s.snap.Load().ETag})
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.store.DeleteFlag(r.Context(), key, s.opts.Env); err != nil {
		InternalError(w, r, "db delete failed")
		return
	}
	if err := s.RebuildSnapshot(r.Context()); err != nil {
		InternalError(w, r, "snapshot rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: s.snap.Load().ETag})
}

type upsertSegmentRequest struct {
	Conditions []rules.Condition `json:"conditions"`
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := s.store.ListSegments(r.Context())
	if err != nil {
		InternalError(w, r, "failed to list segments")
		return
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].ID < segments[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

func (s *Server) handleUpsertSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req upsertSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	segment := rules.Segment{ID: id, Conditions: req.Conditions}
	if err := rules.ValidateSegment(segment); err != nil {
		BadRequestError(w, r, ErrCodeValidation, err.Error())
		return
	}

	if err := s.store.UpsertSegment(r.Context(), segment); err != nil {
		InternalError(w, r, "db upsert failed")
		return
	}
	if err := s.RebuildSnapshot(r.Context()); err != nil {
		InternalError(w, r, "snapshot rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: s.snap.Load().ETag})
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteSegment(r.Context(), id); err != nil {
		InternalError(w, r, "db delete failed")
		return
	}
	if err := s.RebuildSnapshot(r.Context()); err != nil {
		InternalError(w, r, "snapshot rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: s.snap.Load().ETag})
}

package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/rollgate/rollgate-go/internal/snapshot"
	"github.com/rollgate/rollgate-go/internal/store"
	"github.com/rollgate/rollgate-go/internal/telemetry"
)

// Options configures a Server.
type Options struct {
	Env             string
	SDKKey          string
	AdminAPIKey     string
	RateLimitPerIP  int
	RateLimitPerKey int
	SSEHeartbeat    time.Duration
	Logger          zerolog.Logger
}

type Server struct {
	store store.Store
	snap  *snapshot.Holder
	opts  Options
	log   zerolog.Logger

	// sessions maps user id to attributes registered via identify; session
	// attributes back the user_id query fallback on the flags endpoint.
	sessionMu sync.RWMutex
	sessions  map[string]map[string]any
}

func NewServer(st store.Store, snap *snapshot.Holder, opts Options) *Server {
	if opts.SSEHeartbeat <= 0 {
		opts.SSEHeartbeat = 30 * time.Second
	}
	return &Server{
		store:    st,
		snap:     snap,
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]map[string]any),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	if s.opts.RateLimitPerIP > 0 {
		r.Use(httprate.Limit(s.opts.RateLimitPerIP, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited)))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// SDK surface. The stream endpoint authenticates via query token because
	// EventSource cannot set headers, and it must not sit behind the request
	// timeout middleware.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		if s.opts.RateLimitPerKey > 0 {
			r.Use(httprate.Limit(s.opts.RateLimitPerKey, time.Minute,
				httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
					return bearerToken(r), nil
				}),
				httprate.WithLimitHandler(rateLimited)))
		}
		r.With(s.authSDK).Get("/api/v1/sdk/flags", s.handleSDKFlags)
		r.With(s.authSDK).Post("/api/v1/sdk/identify", s.handleIdentify)
		r.With(s.authSDK).Post("/api/v1/sdk/events", s.handleEvents)
	})
	r.Get("/api/v1/sdk/stream", s.handleStream)

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Use(s.authAdmin)
		r.Get("/v1/flags", s.handleListFlags)
		r.Get("/v1/flags/{key}", s.handleGetFlag)
		r.Put("/v1/flags/{key}", s.handleUpsertFlag)
		r.Delete("/v1/flags/{key}", s.handleDeleteFlag)
		r.Get("/v1/segments", s.handleListSegments)
		r.Put("/v1/segments/{id}", s.handleUpsertSegment)
		r.Delete("/v1/segments/{id}", s.handleDeleteSegment)
	})

	return r
}

// RebuildSnapshot loads flags and segments from the store and swaps the
// atomic snapshot, notifying stream subscribers of changed keys.
func (s *Server) RebuildSnapshot(ctx context.Context) error {
	flags, err := s.store.ListFlags(ctx, s.opts.Env)
	if err != nil {
		return err
	}
	segments, err := s.store.ListSegments(ctx)
	if err != nil {
		return err
	}
	snap := snapshot.Build(flags, segments)
	s.snap.Update(snap)
	telemetry.SnapshotFlags.Set(float64(len(snap.Flags)))
	return nil
}

func (s *Server) authSDK(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.SDKKey)) != 1 {
			InvalidKeyError(w, r, "invalid SDK key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	RateLimitedError(w, r, "rate limit exceeded")
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return auth
}

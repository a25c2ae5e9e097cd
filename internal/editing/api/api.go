// Package api exposes the editing service over HTTP with a chi router.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prosessportal/editing/internal/editing/service"
	"github.com/prosessportal/editing/internal/platform/metrics"
)

// UserNameResolver maps a user id to a display name. The portal's user
// directory is an external collaborator; the default resolver echoes the id.
type UserNameResolver func(ctx context.Context, userID string) string

// Server holds the HTTP handlers for the editing service.
type Server struct {
	svc      *service.Service
	log      zerolog.Logger
	metrics  *metrics.Metrics
	resolve  UserNameResolver
	registry *prometheus.Registry
}

// New creates the HTTP server surface. resolver may be nil.
func New(svc *service.Service, log zerolog.Logger, m *metrics.Metrics, registry *prometheus.Registry, resolver UserNameResolver) *Server {
	if resolver == nil {
		resolver = func(_ context.Context, userID string) string { return userID }
	}
	return &Server{
		svc:      svc,
		log:      log,
		metrics:  m,
		resolve:  resolver,
		registry: registry,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Identity)
	r.Use(Logger(s.log))
	r.Use(Recovery(s.log))
	r.Use(Instrument(s.metrics))

	r.Get("/health", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/processes/{processID}", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/mine", s.handleMySession)

		r.Post("/lock", s.handleAcquireLock)
		r.Delete("/lock", s.handleReleaseLock)
		r.Get("/lock", s.handleLockStatus)

		r.Get("/conflicts", s.handleListConflicts)

		r.Get("/versions", s.handleListVersions)
		r.Get("/versions/current", s.handleCurrentVersion)
		r.Get("/versions/{versionID}", s.handleGetVersion)
		r.Post("/versions/{versionID}/publish", s.handlePublishVersion)
		r.Get("/diff", s.handleCompareVersions)
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleEndSession)
		r.Put("/draft", s.handleSaveDraft)
		r.Get("/draft", s.handleGetDraft)
		r.Post("/complete", s.handleCompleteEdit)
		r.Post("/autosave", s.handleAutoSave)
		r.Get("/autosave", s.handleAutoSaveHistory)
		r.Post("/autosave/{recordID}/restore", s.handleRestoreAutoSave)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
		r.Get("/history", s.handleUndoHistory)
		r.Get("/diff/{versionID}", s.handleCompareDraft)
		r.Post("/lock/extend", s.handleExtendLock)
	})

	r.Post("/conflicts/{conflictID}/resolve", s.handleResolveConflict)
	r.Get("/users/{userID}/statistics", s.handleStatistics)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

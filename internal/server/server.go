// Package server exposes the interaction engine over HTTP: event and marker
// ingest, the live status snapshot, and the interaction archive.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/auth"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
)

// Tracker is the engine surface the HTTP API drives.
type Tracker interface {
	TrackEvent(ev domain.LocalEvent)
	TrackMarker(ev domain.LocalEvent)
	CurrentStates() domain.StatusSnapshot
}

// Options configures the HTTP server.
type Options struct {
	Port    int
	Timeout time.Duration

	// Tracker receives ingested events; required
	Tracker Tracker

	// Store backs the archive endpoints; nil leaves them unmounted
	Store ports.InteractionStore

	// Auth guards the /v1 routes; nil disables authentication
	Auth *auth.Authenticator

	Logger *slog.Logger

	// Clock stamps events that arrive without a timestamp
	Clock func() time.Time
}

type Server struct {
	Router *chi.Mux
	Port   int

	logger  *slog.Logger
	tracker Tracker
	store   ports.InteractionStore
	now     func() time.Time
	httpSrv *http.Server
}

// New builds the router and handlers. The health endpoint stays outside the
// authenticated group so probes work without credentials.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		Port:    opts.Port,
		logger:  logger,
		tracker: opts.Tracker,
		store:   opts.Store,
		now:     now,
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "pulse-interaction-engine")
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(AuthMiddleware(opts.Auth))
		}

		r.Post("/events", s.handleTrackEvents)
		r.Post("/markers", s.handleTrackMarkers)
		r.Get("/status", s.handleStatus)

		if s.store != nil {
			r.Get("/interactions", s.handleListInteractions)
			r.Get("/interactions/{id}", s.handleGetInteraction)
		}
	})

	s.Router = r
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      r,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	return s
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"

	"github.com/mattjoyce/synapse-gw/internal/auth"
	"github.com/mattjoyce/synapse-gw/internal/dispatch"
	"github.com/mattjoyce/synapse-gw/internal/events"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

// QueryExecutor runs one query end to end.
type QueryExecutor interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// TaskLister reports the registered tasks.
type TaskLister interface {
	Tasks() []synapse.Task
}

// QueryHistory looks up recorded queries.
type QueryHistory interface {
	Get(ctx context.Context, id string) (*history.Record, error)
}

// SchedulerStats exposes dispatch slot occupancy.
type SchedulerStats interface {
	Pending() int
	Active() int
}

// Config holds API server configuration
type Config struct {
	Listen string
	// ServiceName labels server spans.
	ServiceName string
	Version     string
	// APIKey is the legacy single bearer token (admin/full access).
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens       []auth.TokenConfig
	CORSOrigins  []string
	MaxBodyBytes int64
	MetricsPath  string
	// WriteTimeout must cover the worker timeout.
	WriteTimeout time.Duration
}

// Deps are the collaborators behind the routes. Executor and Tasks are
// required; the rest switch their routes off when nil.
type Deps struct {
	Executor  QueryExecutor
	Tasks     TaskLister
	History   QueryHistory
	Events    *events.Hub
	Scheduler SchedulerStats
	Metrics   http.Handler
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	keyring   *auth.Keyring
	startedAt time.Time
	handler   http.Handler
}

// New creates a new API server instance. It fails when the credentials in
// config are unusable.
func New(config Config, deps Deps, logger *slog.Logger) (*Server, error) {
	keyring, err := auth.NewKeyring(config.APIKey, config.Tokens)
	if err != nil {
		return nil, fmt.Errorf("api auth: %w", err)
	}
	if keyring.Len() == 0 {
		return nil, fmt.Errorf("api auth: no credentials configured")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 32 << 20
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.ServiceName == "" {
		config.ServiceName = "synapse-gw"
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:    config,
		deps:      deps,
		logger:    logger.With("component", "api"),
		keyring:   keyring,
		startedAt: time.Now(),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otelchi.Middleware(s.config.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.config.MetricsPath, s.deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes(auth.ScopeQueryRW)).Post("/text-to-speech-clone", s.handleTextToSpeechClone)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/available-tasks", s.handleAvailableTasks)
		r.With(s.requireScopes(auth.ScopeQueryRO)).Get("/query/{queryID}", s.handleGetQuery)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events", s.handleEvents)
	})

	if len(s.config.CORSOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders: []string{QueryIDHeader},
		MaxAge:         600,
	}).Handler(r)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"query_id", ww.Header().Get(QueryIDHeader),
		)
	})
}

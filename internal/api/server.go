package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bytemill/overseer/internal/admission"
	"github.com/bytemill/overseer/internal/events"
	"github.com/bytemill/overseer/internal/pipeline"
	"github.com/bytemill/overseer/internal/supervise"
)

// SessionSupervisor is the slice of the supervisor the API consumes.
type SessionSupervisor interface {
	SpawnAgentSession(ctx context.Context, opts supervise.SpawnOptions) supervise.SpawnResult
	KillSession(id string) bool
	RunningSessions() []supervise.SessionInfo
}

// AdmissionControl exposes admission state plus limit detection.
type AdmissionControl interface {
	GetStats() admission.Stats
	GetDebugInfo() admission.DebugInfo
	DetectLimitsFromHeaders(headers map[string]string)
}

// RunReader exposes persisted orchestration runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*pipeline.Run, error)
	GetGeneratedFiles(ctx context.Context, runID string) ([]pipeline.GeneratedFile, error)
}

// PipelineRunner starts orchestration runs.
type PipelineRunner interface {
	Orchestrate(ctx context.Context, spec pipeline.FeatureSpec) (*pipeline.Run, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the bearer token protecting all non-healthz routes.
	APIKey string
	// ConfigFingerprint is surfaced on /healthz for drift detection.
	ConfigFingerprint string
}

// Server is the HTTP control surface over the execution core.
type Server struct {
	config     Config
	supervisor SessionSupervisor
	adm        AdmissionControl
	runs       RunReader
	orch       PipelineRunner
	hub        *events.Hub
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. orch may be nil when the daemon runs
// without a pipeline; POST /runs then answers 503.
func New(config Config, supervisor SessionSupervisor, adm AdmissionControl, runs RunReader, orch PipelineRunner, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		supervisor: supervisor,
		adm:        adm,
		runs:       runs,
		orch:       orch,
		hub:        hub,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // /events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/sessions", s.handleSpawnSession)
		r.Get("/sessions", s.handleListSessions)
		r.Delete("/sessions/{sessionID}", s.handleKillSession)
		r.Get("/admission/stats", s.handleAdmissionStats)
		r.Get("/admission/debug", s.handleAdmissionDebug)
		r.Post("/admission/limits", s.handleReportLimits)
		r.Post("/runs", s.handleOrchestrate)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/files", s.handleGetRunFiles)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
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
		)
	})
}

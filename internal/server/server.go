package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/comfyflow/internal/config"
	"github.com/me/comfyflow/internal/engine"
	"github.com/me/comfyflow/internal/expr"
	"github.com/me/comfyflow/internal/graph"
	"github.com/me/comfyflow/internal/store"
)

// Server is the comfyflow REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	parser    *graph.Parser
	store     store.Store
	engine    engine.Client // optional; runs stay QUEUED when nil
	eval      *expr.Evaluator
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithEngine sets the execution engine client used to dispatch runs.
func WithEngine(client engine.Client) Option {
	return func(s *Server) {
		s.engine = client
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		parser:    graph.NewParser(logger),
		store:     st,
		eval:      expr.NewEvaluator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Workflows
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)
			r.Post("/validate", s.handleValidateWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Get("/parameters", s.handleWorkflowParameters)
				// Runs nested under workflows
				r.Route("/runs", func(r chi.Router) {
					r.Get("/", s.handleListRuns)
					r.Post("/", s.handleCreateRun)
				})
			})
		})

		// Runs by id
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Put("/cancel", s.handleCancelRun)
		})
	})
}

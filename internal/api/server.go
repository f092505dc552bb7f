// Package api serves the job surface over HTTP: publications, previews, version content
// removal, batch page status changes and job progress.
package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/eventstore"
	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/lifecycle"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/version"
)

// Server represents the API server.
type Server struct {
	Addr     string
	router   *chi.Mux
	server   *http.Server
	jobs     *jobs.Service
	hooks    *lifecycle.Hooks
	journal  *eventstore.Journal
	validate *validator.Validate
	logger   *slog.Logger

	metricsPath    string
	metricsHandler http.Handler
	pollInterval   time.Duration
	streamTimeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHooks enables the lifecycle endpoints (deletion marker).
func WithHooks(h *lifecycle.Hooks) Option {
	return func(s *Server) { s.hooks = h }
}

// WithJournal enables the publication history endpoints.
func WithJournal(j *eventstore.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetrics mounts h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPollInterval sets how often job event streams look at the job.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewServer creates a new API server for svc.
func NewServer(addr string, svc *jobs.Service, opts ...Option) *Server {
	s := &Server{
		Addr:          addr,
		router:        chi.NewRouter(),
		jobs:          svc,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        slog.Default(),
		pollInterval:  250 * time.Millisecond,
		streamTimeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // job event streams stay open
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(UserMiddleware)

	s.router.Get("/healthz", s.handleHealth)
	if s.metricsHandler != nil {
		s.router.Handle(s.metricsPath, s.metricsHandler)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/publications", s.handlePublish)
			r.Get("/publications/preview", s.handlePreview)
			if s.journal != nil {
				r.Get("/publications/history", s.handlePublicationHistory)
				r.Get("/publications/history/{id}", s.handlePublicationRun)
			}
			r.Post("/versions/remove-content", s.handleRemoveVersionContent)
			r.Post("/pages/status", s.handleSetPagesStatus)
			r.Post("/pages/deleted-mark", s.handleSwitchDeletedMark)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
		})
		r.Get("/jobs/{id}/events", s.handleJobEvents)
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("HTTP API listening", slog.String("addr", s.Addr))
	return s.server.ListenAndServe()
}

// Serve serves the API on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP API listening", slog.String("addr", l.Addr().String()))
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps err onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())), logfields.Error(err))
	}
	resp := Response{Success: false, Error: err.Error()}
	if be, ok := errors.As(err); ok && len(be.Context) > 0 {
		resp.Details = be.Context
	}
	writeJSON(w, code, resp)
}

// StatusFor returns the HTTP status for an error of the job surface.
func StatusFor(err error) int {
	switch {
	case stderrors.Is(err, jobs.ErrUnknownJob):
		return http.StatusNotFound
	case stderrors.Is(err, jobs.ErrQueueFull), stderrors.Is(err, jobs.ErrQueueStopped):
		return http.StatusServiceUnavailable
	}
	switch errors.GetCategory(err) {
	case errors.CategoryValidation, errors.CategoryConfig:
		return http.StatusBadRequest
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationFailed("body", "invalid request body: "+err.Error())
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			return errors.ValidationFailed(verrs[0].Namespace(), verrs[0].Tag())
		}
		return errors.ValidationFailed("body", err.Error())
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"queued":  s.jobs.Queue().Length(),
		"version": version.Info(),
	})
}

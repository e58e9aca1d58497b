// Package api exposes the backend's HTTP and WebSocket surface: task
// selection and lifecycle, review workflow, and OSM changeset submission,
// per §6's external interface.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/maproulette/backend/internal/config"
	"github.com/maproulette/backend/internal/osm"
	"github.com/maproulette/backend/internal/review"
	"github.com/maproulette/backend/internal/task"
	"github.com/maproulette/backend/internal/ws"
)

// Server is the HTTP API server wrapping the task/review engines, the OSM
// submission pipeline, and the WebSocket hub behind one *http.Server.
type Server struct {
	cfg       config.API
	tasks     *task.Engine
	reviews   *review.Engine
	osmClient func(ctx context.Context, token string) (*osm.Client, error)
	submitter *osm.Submitter
	hub       *ws.Hub
	auth      *AuthMiddleware
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   *apiMetrics

	httpServer *http.Server
}

// NewServer builds a Server. osmClient wraps a caller's bearer token (their
// live OSM OAuth access token, passed straight through rather than stored)
// into a rate-limited Client for the submission endpoints; it is a
// function rather than a single shared Client because each user submits
// changesets under their own OSM account.
func NewServer(cfg config.API, tasks *task.Engine, reviews *review.Engine, submitter *osm.Submitter,
	osmClient func(ctx context.Context, token string) (*osm.Client, error),
	hub *ws.Hub, auth *AuthMiddleware, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		tasks:     tasks,
		reviews:   reviews,
		osmClient: osmClient,
		submitter: submitter,
		hub:       hub,
		auth:      auth,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		metrics:   newAPIMetrics(),
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	if s.cfg.RequestTimeout.Duration > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout.Duration))
	}
	if s.cfg.MaxBodyBytes > 0 {
		r.Use(maxBodyMiddleware(s.cfg.MaxBodyBytes))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(s.auth.Identify)

	r.Get("/metrics", s.metrics.handler().ServeHTTP)
	r.Get("/api/v2/ws", ws.Handler(s.hub, s.logger))

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/challenge/{challengeID}/task/next", s.handleNextTask)
		r.Put("/task/{taskID}/start", s.handleStartTask)
		r.Put("/task/{taskID}/release", s.handleReleaseTask)
		r.Put("/task/{taskID}/status/{status}", s.handleSetStatus)
		r.Put("/task/{taskID}/review/{status}", s.handleSetReviewStatus)
		r.Post("/task/{taskID}/review/request", s.handleStartReview)
		r.Delete("/task/{taskID}/review/request", s.handleCancelReview)
		r.Get("/review/next", s.handleNextReviewTask)
		r.Post("/changes/tagChange", s.handleTagChange)
		r.Post("/changes/submit", s.handleSubmitChange)
	})

	return r
}

func maxBodyMiddleware(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// Start begins listening on cfg.Bind. Blocks until ctx is cancelled, then
// shuts down gracefully within General.ShutdownWait.
func (s *Server) Start(ctx context.Context, shutdownWait time.Duration) error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Bind,
		Handler:     s.routes(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.cfg.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close releases the auth middleware's audit log handle.
func (s *Server) Close() error {
	return s.auth.Close()
}

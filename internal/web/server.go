// Package web serves the moodtune JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/justestif/moodtune/internal/metrics"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = ":8080"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig, handlers *Handlers) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// Create router
	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		timeout:  cfg.ShutdownTimeout,
	}

	// Configure middleware
	s.setupMiddleware()

	// Configure routes
	s.setupRoutes()

	// Create HTTP server. Training requests run synchronously, so writes get
	// a generous deadline.
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors)

		r.Get("/health", s.handlers.Health)
		r.Post("/recommendations", s.handlers.Recommendations)
		r.Post("/predict", s.handlers.Predict)
		r.Get("/model", s.handlers.Model)
		r.Post("/train", s.handlers.Train)
		r.Get("/clusters", s.handlers.Clusters)
		r.Get("/tracks/{id}/emotion", s.handlers.TrackEmotion)
		r.Post("/import", s.handlers.Import)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully when ctx is cancelled
// or an interrupt signal arrives.
func (s *Server) Run(ctx context.Context) error {
	// Channel to receive shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt, cancellation or error
	select {
	case err := <-errCh:
		return err
	case <-stop:
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

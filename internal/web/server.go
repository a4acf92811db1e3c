package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/config"
	"github.com/kozaktomas/face-checkin/internal/log"
	"github.com/kozaktomas/face-checkin/internal/web/handlers"
	"github.com/kozaktomas/face-checkin/internal/web/middleware"
)

// Server represents the kiosk web server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *handlers.SessionManager
	logger         zerolog.Logger
}

// NewServer creates a new web server serving kiosk sessions built from backend
func NewServer(cfg *config.Config, backend handlers.Backend) *Server {
	r := chi.NewRouter()
	logger := log.WithComponent("web")
	if backend.Logger == nil {
		backend.Logger = &logger
	}

	s := &Server{
		config:         cfg,
		router:         r,
		sessionManager: handlers.NewSessionManager(handlers.DefaultRetention),
		logger:         logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes(backend)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // Long timeout for SSE
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops every kiosk session, releasing their frame sources, and
// then gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")

	s.sessionManager.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Sessions returns the kiosk session registry
func (s *Server) Sessions() *handlers.SessionManager {
	return s.sessionManager
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-checkin/internal/web/handlers"
	"github.com/kozaktomas/face-checkin/internal/web/middleware"
	"github.com/kozaktomas/face-checkin/internal/web/static"
)

func (s *Server) setupRoutes(backend handlers.Backend) {
	sessionsHandler := handlers.NewSessionsHandler(backend, s.sessionManager)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		r.Get("/sessions", sessionsHandler.List)
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Delete("/sessions/{id}", sessionsHandler.Stop)
		r.Get("/sessions/{id}/events", sessionsHandler.Events)
		r.With(middleware.FrameRateLimit(s.config.Web.FrameRateLimit)).
			Post("/sessions/{id}/frames", sessionsHandler.PushFrame)
		r.Post("/sessions/{id}/end", sessionsHandler.End)
		r.Get("/sessions/{id}/confirmations", sessionsHandler.Confirmations)
		r.Get("/events/{eventId}/confirmations", sessionsHandler.EventConfirmations)
	})

	// Kiosk page
	s.router.Get("/*", s.serveStatic)
}

// contentTypes maps served file extensions to their content types.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// serveStatic serves the embedded kiosk page and its assets. Unknown paths
// fall back to index.html.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err != nil {
		path = "/index.html"
		f, err = fs.Open(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := "application/octet-stream"
	if i := strings.LastIndex(path, "."); i >= 0 {
		if ct, ok := contentTypes[path[i:]]; ok {
			contentType = ct
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

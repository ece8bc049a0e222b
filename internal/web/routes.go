package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendance-kiosk/internal/web/handlers"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/web/static"
)

func (s *Server) setupRoutes() {
	captureHandler := handlers.NewCaptureHandler(s.deps.Flow, s.config.Backend.Branch)
	statsHandler := handlers.NewStatsHandler(s.deps.Stats, s.deps.Journal)
	studentsHandler := handlers.NewStudentsHandler(s.deps.Directory, s.deps.Journal)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireOperatorToken(s.config.Web.OperatorToken))

		// Capture panel
		r.Get("/capture", captureHandler.Get)
		r.Get("/capture/events", captureHandler.Events)
		r.Post("/capture/enroll", captureHandler.Enroll)
		r.Post("/capture/mark", captureHandler.Mark)
		r.Post("/capture/cancel", captureHandler.Cancel)
		r.Post("/capture/retry", captureHandler.Retry)
		r.Post("/capture/another", captureHandler.Another)
		r.Post("/capture/dismiss", captureHandler.Dismiss)

		// Dashboard
		if s.deps.Stats != nil {
			r.Get("/stats", statsHandler.Get)
		}
		r.Get("/config", configHandler.Get)
		r.Get("/outcomes", studentsHandler.Outcomes)

		// Backend lookups
		if s.deps.Directory != nil {
			r.Get("/students/{branch}", studentsHandler.List)
			r.Get("/attendance/{branch}/today", studentsHandler.Today)
		}
	})

	// Serve the embedded capture panel
	s.router.Get("/*", s.servePanel)
}

// servePanel serves the embedded capture panel
func (s *Server) servePanel(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err != nil {
		// Unknown paths fall back to the panel itself.
		f, err = fs.Open("/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		path = "/index.html"
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(path, ".html"):
		contentType = "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		contentType = "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		contentType = "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".svg"):
		contentType = "image/svg+xml"
	case strings.HasSuffix(path, ".png"):
		contentType = "image/png"
	case strings.HasSuffix(path, ".ico"):
		contentType = "image/x-icon"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

// Package web provides the HTTP server and API routes for the kiosk.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/facekiosk/facekiosk/internal/bridge"
	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/facekiosk/facekiosk/internal/terminal"
	"github.com/facekiosk/facekiosk/internal/web/handlers"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/facekiosk/facekiosk/internal/web/middleware"
)

// Deps are the kiosk components the API exposes.
type Deps struct {
	Repo       store.Repository
	Encoder    handlers.Encoder
	Matcher    *matcher.Matcher
	Controller *terminal.Controller
	Bridge     *bridge.Bridge

	// RefreshRoster reloads the matcher roster after enrollments change.
	RefreshRoster func()
}

// Server represents the kiosk HTTP server.
type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg *config.Config, deps Deps, host string, port int) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // SSE streams stay open for a while
		IdleTimeout:  2 * time.Minute,
	}

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Logger)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(5 * time.Minute))
	s.router.Use(middleware.CORS())
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	log.Printf("starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying chi router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

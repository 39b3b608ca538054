// Package server owns the HTTP surface: the management REST API and the
// /mcp tool gateway mount.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fieldlinehq/fieldline/internal/gateway"
	"github.com/fieldlinehq/fieldline/internal/handler"
	"github.com/fieldlinehq/fieldline/internal/server/middleware"
	"github.com/fieldlinehq/fieldline/internal/service"
	"github.com/fieldlinehq/fieldline/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	SessionTTL      time.Duration
	LoginRatePerMin int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"http://localhost:3000"},
		SessionTTL:      12 * time.Hour,
		LoginRatePerMin: 10,
	}
}

// Server is the top-level HTTP server.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	gw         *gateway.Gateway
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires up all routes and middleware and returns a server ready to
// listen.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, gw *gateway.Gateway, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		authSvc: authSvc,
		gw:      gw,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health checks, no auth.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// The tool gateway applies its own auth, rate limiting, and
	// origin-reflection policy; it stays outside the management CORS and
	// session middleware.
	r.Handle("/mcp", s.gw)

	// Management REST API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		sysHandler := handler.NewSystemHandler(s.authSvc, s.cfg.SessionTTL)

		r.Route("/system", func(r chi.Router) {
			// Login is unauthenticated but IP rate limited.
			r.Group(func(r chi.Router) {
				r.Use(middleware.LoginRateLimit(s.cfg.LoginRatePerMin))
				r.Post("/admin/session", sysHandler.Login)
			})
			r.Delete("/admin/session", sysHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(s.authSvc))

				r.Get("/api-key", sysHandler.ListKeys)
				r.Post("/api-key", sysHandler.CreateKey)
				r.Get("/api-key/{keyID}", sysHandler.GetKey)
				r.Patch("/api-key/{keyID}", sysHandler.UpdateKey)
				r.Post("/api-key/{keyID}/rotate", sysHandler.RotateKey)
				r.Delete("/api-key/{keyID}", sysHandler.RevokeKey)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports 200 when the store is reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the server and blocks until SIGINT/SIGTERM, then
// drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

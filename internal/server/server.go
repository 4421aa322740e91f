package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/handler"
	"github.com/storydesk/storydesk/internal/openapi"
	"github.com/storydesk/storydesk/internal/server/middleware"
	"github.com/storydesk/storydesk/internal/service"
)

const apiPrefix = "/api/v1"

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	LoginRateLimit  int   // per IP per minute on login and setup
	PublicRateLimit int   // per IP per minute on public forms
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
		LoginRateLimit:  10,
		PublicRateLimit: 30,
		Version:         "dev",
	}
}

// ConfigFrom maps the application config onto server settings.
// Call app.Validate first.
func ConfigFrom(app *config.AppConfig, version string) Config {
	return Config{
		Host:            app.Server.Host,
		Port:            app.Server.Port,
		ShutdownTimeout: app.ShutdownTimeoutDuration(),
		CORSOrigins:     app.Server.CORS.Origins,
		MaxBodySize:     app.Server.MaxBodySize,
		LoginRateLimit:  app.RateLimit.LoginPerMinute,
		PublicRateLimit: app.RateLimit.PublicPerMinute,
		Version:         version,
	}
}

// Server is the top-level HTTP server. It owns the chi router, the store
// and the authentication service.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		store:   store,
		authSvc: authSvc,
		logger:  logger,
	}
	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRouter() error {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	eps := s.endpoints()

	doc, err := openapi.Generate(openapi.Info{
		Title:       "Storydesk API",
		Description: "Admin and public API for stories, waitlist signups and contact messages.",
		Version:     s.cfg.Version,
	}, catalog(eps), handler.OpenAPIComponents())
	if err != nil {
		return fmt.Errorf("build openapi document: %w", err)
	}
	specH, err := handler.NewOpenAPIHandler(doc)
	if err != nil {
		return err
	}
	r.Get("/openapi.json", specH.ServeSpec)

	// --- API routes ---
	r.Route(apiPrefix, func(r chi.Router) {
		for _, ep := range eps {
			var mws []func(http.Handler) http.Handler
			if ep.limit > 0 {
				mws = append(mws, middleware.RateLimit(ep.limit))
			}
			if ep.roles != nil {
				mws = append(mws,
					middleware.Authenticate(s.authSvc.Tokens()),
					middleware.RequireRole(ep.roles...),
				)
			}
			r.With(mws...).Method(ep.method, ep.path, ep.handler)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
	return nil
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the database answers
// a ping, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, httpStatus := "ok", http.StatusOK
	check := "ok"
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		status, httpStatus = "unavailable", http.StatusServiceUnavailable
		check = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": map[string]string{"database": check},
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "dialect", s.store.Dialect().Name)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
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

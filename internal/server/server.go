// Package server assembles the HTTP API: routes, middleware and lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
	"github.com/alanyoungcy/pasarmalam/internal/metrics"
	"github.com/alanyoungcy/pasarmalam/internal/server/handler"
	"github.com/alanyoungcy/pasarmalam/internal/server/middleware"
)

const adminPrefix = "/api/admin/"

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	AdminAPIKey  string // empty disables admin authentication
	RateLimit    int
	RateWindow   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Handlers aggregates the HTTP handlers registered by the server. Admin may
// be nil, in which case the admin routes are not mounted.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Directory *handler.DirectoryHandler
	Sitemap   *handler.SitemapHandler
	Admin     *handler.AdminHandler
}

// Server is the directory's HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, limiter, logger),
			ReadTimeout:  orDefault(cfg.ReadTimeout, 15*time.Second),
			WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/markets", handlers.Markets.List)
	mux.HandleFunc("GET /api/markets/nearest", handlers.Markets.Nearest)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.Get)
	mux.HandleFunc("GET /api/markets/{id}/status", handlers.Markets.Status)

	mux.HandleFunc("GET /api/states", handlers.Directory.States)
	mux.HandleFunc("GET /api/states/{state}/districts", handlers.Directory.Districts)
	mux.HandleFunc("GET /api/regions/locate", handlers.Directory.Locate)

	mux.HandleFunc("GET /sitemap.xml", handlers.Sitemap.Sitemap)
	mux.HandleFunc("GET /robots.txt", handlers.Sitemap.Robots)

	if handlers.Admin != nil {
		mux.HandleFunc("POST "+adminPrefix+"import", handlers.Admin.TriggerImport)
		mux.HandleFunc("GET "+adminPrefix+"imports", handlers.Admin.ListImports)
		mux.HandleFunc("GET "+adminPrefix+"markets", handlers.Admin.ListMarkets)
		mux.HandleFunc("GET "+adminPrefix+"audit", handlers.Admin.ListAudit)
	}

	// Applied inside out: the last wrapper runs first.
	var h http.Handler = mux
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Metrics(h)
	h = middleware.AdminAuth(adminPrefix, cfg.AdminAPIKey)(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger, "/api/health", "/metrics")(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

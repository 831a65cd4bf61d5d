package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dealroom/api/internal/config"
	"github.com/dealroom/api/internal/infra/http/middleware"
	"github.com/dealroom/api/pkg/logger"
)

const hstsMaxAge = 365 * 24 * 60 * 60

// Server is the HTTP server of the permission API.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithRouter replaces the default chi router.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer creates the server and installs the global middleware chain.
// Routes are registered on Router() afterwards.
func NewServer(cfg *config.Config, log *logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = NewChiRouter()
	}

	rateLimit, stopRateLimit := middleware.RateLimit(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, stopRateLimit)

	loggerCfg := middleware.DefaultLoggerConfig()
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = nil
	}
	if cfg.Log.SlowRequestSeconds > 0 {
		loggerCfg.SlowRequestThreshold = time.Duration(cfg.Log.SlowRequestSeconds) * time.Second
	}

	// Order matters: recovery first, logging last so it sees the final status.
	s.router.Use(
		middleware.Recovery(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.Actor(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			HSTSEnabled: cfg.IsProduction(),
			HSTSMaxAge:  hstsMaxAge,
		}),
		middleware.CORS(&cfg.CORS),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		middleware.Decompress(middleware.DefaultDecompressConfig()),
		rateLimit,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.Logger(log, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops background middleware work and drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

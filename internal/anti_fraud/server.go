package anti_fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/platform/health"
	"github.com/yape-transaction-pipeline/internal/platform/middleware"
)

// Server exposes the operational endpoints of the anti-fraud service. The
// evaluation flow itself has no HTTP surface.
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	httpRouter      *gin.Engine
	shutdownTimeout time.Duration
}

// NewServer mounts /health and, when metricsHandler is non-nil, /metrics.
func NewServer(log *slog.Logger, cfg *config.Config, checks map[string]health.CheckFunc, metricsHandler http.Handler) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()
	httpRouter.Use(middleware.Recovery(log))
	httpRouter.Use(middleware.Logger(log, "/health", "/metrics"))

	httpRouter.GET("/health", health.Handler(cfg.Server.ReadTimeout, checks))
	if metricsHandler != nil {
		httpRouter.GET("/metrics", gin.WrapH(metricsHandler))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start ops HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping ops HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop ops HTTP server: %w", err)
	}
	return nil
}

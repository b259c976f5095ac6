package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labs-ledger-transfer-engine/internal/api/handler"
	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services are the operations exposed over HTTP.
type Services struct {
	Transfers     service.TransferExecutor
	Deposits      service.DepositExecutor
	AccountStatus service.AccountStatusUpdater
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services.
// m may be nil; the metrics route is mounted only when it is set and enabled in cfg.
func NewServer(log *slog.Logger, cfg *config.Config, m *metrics.Metrics, services Services, health HealthChecker) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	transferHandler := handler.NewTransferHandler(log, services.Transfers)
	accountHandler := handler.NewAccountHandler(log, services.Deposits, services.AccountStatus)

	var metricsPath string
	if m != nil && cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	setupRouter(log, httpRouter, routerDeps{
		transfers:   transferHandler,
		accounts:    accountHandler,
		health:      health,
		metrics:     m,
		metricsPath: metricsPath,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server. ctx bounds the wait for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labs-ledger-transfer-engine/internal/api/handler"
	"github.com/labs-ledger-transfer-engine/internal/api/middleware"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

type routerDeps struct {
	transfers   *handler.TransferHandler
	accounts    *handler.AccountHandler
	health      HealthChecker
	metrics     *metrics.Metrics
	metricsPath string
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, deps routerDeps) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(deps.metrics))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		v1.POST("/transfers", deps.transfers.Create)

		accounts := v1.Group("/accounts")
		{
			accounts.POST("/:id/deposits", deps.accounts.Deposit)
			accounts.PATCH("/:id/status", deps.accounts.UpdateStatus)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		if deps.health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()
			if err := deps.health.Ping(ctx); err != nil {
				logger.Error("Health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "timestamp": time.Now().UTC()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	if deps.metricsPath != "" {
		r.GET(deps.metricsPath, gin.WrapH(deps.metrics.Handler()))
	}
}

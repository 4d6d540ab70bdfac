package transaction_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yape-transaction-pipeline/internal/platform/health"
	"github.com/yape-transaction-pipeline/internal/platform/middleware"
	"github.com/yape-transaction-pipeline/internal/transaction_api/handler"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	transactionHandler *handler.TransactionHandler,
	healthTimeout time.Duration,
	checks map[string]health.CheckFunc,
	metricsHandler http.Handler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.CorrelationID())

	v1 := r.Group("/api/v1")
	{
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.Create)
			transactions.GET("/:transactionExternalId", transactionHandler.GetByID)
			transactions.GET("/:transactionExternalId/events", transactionHandler.ListEvents)
		}
	}

	r.GET("/health", health.Handler(healthTimeout, checks))
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

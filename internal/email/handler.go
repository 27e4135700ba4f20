package email

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the mailer's health and stats endpoints.
type HealthHandler struct {
	store  *IdempotencyStore
	logger *slog.Logger
}

// NewHealthHandler creates a new mailer health handler
func NewHealthHandler(store *IdempotencyStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	redisStatus := "connected"
	httpStatus := http.StatusOK
	status := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("Redis health check failed", "error", err)
		redisStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"service": "taskhub-mailer",
		"redis":   redisStatus,
	})
}

// Stats handles GET /stats
func (h *HealthHandler) Stats(c *gin.Context) {
	count, err := h.store.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"idempotency_records": count,
		"ttl_hours":           h.store.ttl.Hours(),
	})
}

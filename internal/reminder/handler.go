package reminder

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Runner runs one reminder pass.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Handler exposes the reminder run to an external scheduler.
type Handler struct {
	runner Runner
	secret string
	logger *slog.Logger
}

// NewHandler creates the trigger handler. An empty secret rejects every call.
func NewHandler(runner Runner, secret string, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, secret: secret, logger: logger}
}

type triggerResponse struct {
	Success bool `json:"success"`
	Result
}

// Trigger handles POST /api/cron/reminders
func (h *Handler) Trigger(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	res, err := h.runner.Run(c.Request.Context())
	switch {
	case errors.Is(err, ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Reminder run failed",
			"error", err,
			"request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, triggerResponse{Success: false, Result: res})
		return
	}

	c.JSON(http.StatusOK, triggerResponse{Success: true, Result: res})
}

func (h *Handler) authorized(header string) bool {
	if h.secret == "" {
		return false
	}
	want := "Bearer " + h.secret
	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}

// RegisterRoutes mounts the trigger under rg (normally /api/cron).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reminders", h.Trigger)
}

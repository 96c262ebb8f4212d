package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/metrics"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/reconcile"
)

// WebhookHandler handles worker callback HTTP requests
type WebhookHandler struct {
	logger     *slog.Logger
	reconciler *reconcile.Reconciler
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:     deps.Logger,
		reconciler: deps.Reconciler,
	}
}

// HandleWorkerEvent handles POST /api/v1/webhooks/worker
// The worker delivers at-least-once and in any order; a stale or
// duplicate event is still a 200 so the worker stops retrying it.
func (h *WebhookHandler) HandleWorkerEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	ev, err := domain.ParseWebhookEvent(body)
	if err != nil {
		metrics.WebhookRejected()
		if errors.Is(err, domain.ErrUnrecognizedEvent) {
			h.logger.Warn("Rejected unknown webhook type", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown webhook type"})
			return
		}
		h.logger.Warn("Rejected malformed webhook payload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if ev.Type == domain.EventJobCompleted && len(ev.SuccessfulPlatforms) > 0 {
		h.logger.Info("Worker reported completion summary",
			slog.String("job_id", ev.JobID),
			slog.Any("successful_platforms", ev.SuccessfulPlatforms),
			slog.Int("total_platforms", ev.TotalPlatforms),
		)
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), ev); err != nil {
		h.logger.Error("Failed to apply webhook event",
			slog.String("type", ev.Type),
			slog.String("job_id", ev.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/provider"
)

// WebhookHandler receives provider completion callbacks.
type WebhookHandler struct {
	jobs JobService
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(jobs JobService) *WebhookHandler {
	return &WebhookHandler{jobs: jobs}
}

// Receive handles POST /api/webhook. Every well-formed delivery is
// acknowledged, including repeats and callbacks for unknown jobs.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload provider.Envelope
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.jobs.HandleCallback(ctx, payload); err != nil {
		logger.CtxError(ctx, "Failed to apply callback for %s: %v", payload.Data.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

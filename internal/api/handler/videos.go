package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// VideoHandler proxies the provider's own job listing.
type VideoHandler struct {
	jobs JobService
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(jobs JobService) *VideoHandler {
	return &VideoHandler{jobs: jobs}
}

// ListVideos handles GET /api/videos.
func (h *VideoHandler) ListVideos(c *gin.Context) {
	videos, err := h.jobs.ListProviderVideos(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to list provider videos: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": videos})
}

package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/timmy/clearcut/internal/api/handler"
	"github.com/timmy/clearcut/internal/api/middleware"
	"github.com/timmy/clearcut/internal/config"
	"github.com/timmy/clearcut/internal/notify"
)

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - jobs: orchestrator backing every job endpoint.
//   - ping: record store health probe; may be nil.
//   - cfg: server settings (mode, CORS, upload limit).
//
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(jobs handler.JobService, ping func(ctx context.Context) error, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(ping)
	jobHandler := handler.NewJobHandler(jobs, cfg.MaxUploadSize)
	webhookHandler := handler.NewWebhookHandler(jobs)
	videoHandler := handler.NewVideoHandler(jobs)

	r.GET("/health", healthHandler.Health)

	// Provider callbacks; the same path is advertised as webhook_url on push-mode submissions.
	r.POST(notify.WebhookPath, webhookHandler.Receive)

	api := r.Group("/api")
	{
		api.POST("/upload", jobHandler.Upload)

		api.GET("/jobs", jobHandler.ListJobs)
		api.POST("/jobs", jobHandler.UpsertJob)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.GET("/jobs/:id/status", jobHandler.CheckStatus)

		api.GET("/videos", videoHandler.ListVideos)
	}

	return r
}

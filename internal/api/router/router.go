package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/api/handler"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/metrics"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"reason": "database unreachable",
			})
			return
		}
		if !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"reason": "dispatch channel disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "listing-api-service",
		})
	})

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	jobHandler := handler.NewJobHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)
	credentialHandler := handler.NewCredentialHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// Worker callback channel, token guarded
	v1.POST("/webhooks/worker", WebhookAuth(deps.WebhookToken), webhookHandler.HandleWorkerEvent)

	authed := v1.Group("", RequireUser())
	{
		jobs := authed.Group("/jobs")
		{
			// POST /api/v1/jobs - Submit a bulk cross-listing request
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - List the caller's results with pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Job plus per-marketplace results
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		// GET /api/v1/queue/stats - Queue lifecycle counts
		authed.GET("/queue/stats", jobHandler.QueueStats)

		credentials := authed.Group("/credentials")
		{
			// POST /api/v1/credentials - Store password or session material
			credentials.POST("", credentialHandler.CreateCredential)

			// GET /api/v1/credentials - Metadata list, no secret material
			credentials.GET("", credentialHandler.ListCredentials)

			// DELETE /api/v1/credentials/:credential_id - Deactivate
			credentials.DELETE("/:credential_id", credentialHandler.DeleteCredential)
		}

		// POST /api/v1/sessions/:marketplace/validate - Freshness check
		authed.POST("/sessions/:marketplace/validate", credentialHandler.ValidateSession)
	}

	return r
}

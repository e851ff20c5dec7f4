// Package router assembles the Gin engine from registered domain modules.
package router

import (
	"net/http"

	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the HTTP engine and mounts every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhookLimiter := httpkit.NewIPRateLimiter(
		rate.Limit(app.Config.GetWebhookRateLimitRPS()),
		app.Config.GetWebhookRateLimitBurst(),
		app.Logger,
	)

	v1 := engine.Group("/api/v1")

	webhooks := v1.Group("/webhooks")
	webhooks.Use(webhookLimiter.RateLimit())

	jobs := v1.Group("/jobs")
	jobs.Use(httpkit.TriggerKeyRequired(app.Config.GetTriggerKey()))

	ctx := &apphttp.RouterContext{
		Engine:   engine,
		V1:       v1,
		Webhooks: webhooks,
		Jobs:     jobs,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if app.Config.GetCORSAllowAll() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = app.Config.GetCORSOrigins()
		corsConfig.AllowCredentials = app.Config.GetCORSAllowCreds()
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Trigger-Key")
	return cors.New(corsConfig)
}

package router

import (
	"context"
	"net/http"
	"time"

	apphttp "exterminador_backend/internal/http"
	"exterminador_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	ipRateLimit = rate.Limit(20)
	ipRateBurst = 60

	healthTimeout = 3 * time.Second
)

// New builds the gin engine and mounts every module.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		app.Logger.WithContext(c.Request.Context()).Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, httpkit.ErrorResponse{Error: "internal server error"})
	}))
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	// Provider webhooks on v1 arrive in bursts from a few addresses, so only
	// the internal group is throttled per IP.
	limiter := httpkit.NewIPRateLimiter(ipRateLimit, ipRateBurst, app.Logger)
	internal := v1.Group("/internal")
	internal.Use(limiter.RateLimit())
	internal.Use(httpkit.ServiceAuthRequired(app.Config))

	routerCtx := &apphttp.RouterContext{
		Engine:   engine,
		V1:       v1,
		Internal: internal,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

package main

import (
	"net/http"
	"time"

	"github.com/classifieds/backend/internal/config"
	"github.com/classifieds/backend/internal/errors"
	"github.com/classifieds/backend/internal/handlers"
	"github.com/classifieds/backend/internal/middleware"
	"github.com/classifieds/backend/internal/util"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter wires middleware and routes. The feed is served under /api/v1
// and at the root for older clients.
func newRouter(cfg *config.Config, h *handlers.Handlers, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Tracing goes first so later middleware can annotate the server span
	if cfg.Telemetry.Enabled {
		r.Use(middleware.TracingMiddleware(cfg.Telemetry.ServiceName)...)
	}
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || cfg.CORSAllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "If-None-Match", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{
		"ETag", "X-Cache", "X-Total-Approx", "X-Response-Time", "X-Request-ID",
		"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
	}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.RegisterFeedRoutes(r.Group("/api/v1", limiter.Middleware()))
	h.RegisterFeedRoutes(r.Group("", limiter.Middleware()))

	r.NoRoute(func(c *gin.Context) {
		util.RespondWithAPIError(c, errors.NotFound("endpoint "+c.Request.URL.Path))
	})

	return r
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/config"
	"github.com/classifieds/backend/internal/container"
	"github.com/classifieds/backend/internal/database"
	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/handlers"
	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/metrics"
	"github.com/classifieds/backend/internal/middleware"
	"github.com/classifieds/backend/internal/repository"
	"github.com/classifieds/backend/internal/telemetry"
	"github.com/classifieds/backend/internal/thumbnail"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Log.Info("=== Classifieds feed server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("cache_backend", cfg.Feed.CacheBackend),
	)

	c := container.New().SetLogger(logger.Log)
	c.OnCleanup(func(context.Context) error { return logger.Close() })

	shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.FatalWithFields("Failed to initialize tracing", err)
	}
	c.OnCleanup(shutdownTracer)

	if err := database.Initialize(cfg.DatabaseURL, database.Options{
		Debug:   cfg.IsDevelopment() && cfg.LogLevel == "debug",
		Tracing: cfg.Telemetry.Enabled,
	}); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	c.SetDB(database.DB)
	c.OnCleanup(func(context.Context) error { return database.Close() })

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	metrics.Initialize()

	// Background work is stopped before the connections it uses are closed
	bgCtx, stopBackground := context.WithCancel(context.Background())

	selection := cache.Select(cfg)
	c.SetResponseCache(selection.Store).SetRedis(selection.Redis)
	if selection.Redis != nil {
		c.OnCleanup(func(context.Context) error { return selection.Redis.Close() })
	}
	if selection.Memory != nil {
		selection.Memory.StartJanitor(bgCtx, cfg.Feed.CacheTTL, func(n int) {
			middleware.RecordCacheEviction(handlers.ResponseCacheName, n)
		})
	}

	thumbs := thumbnail.NewCache(thumbnail.NewImagingOptimizer(), cfg.Feed.ThumbnailCapacity, cfg.Feed.ThumbnailSize)
	thumbs.SetObserver(metrics.ThumbnailObserver{})
	c.SetThumbnails(thumbs)

	service := feed.NewService(
		repository.NewListingRepository(database.DB),
		feed.NewCursorCodec(cfg.Feed.CursorSecret),
		feed.WithBoostLimit(cfg.Feed.BoostLimit),
	)
	c.SetFeedService(service)

	if err := c.Validate(); err != nil {
		logger.FatalWithFields("Container validation failed", err)
	}

	h := handlers.NewHandlers(c.Feed(), feed.NewShaper(c.Thumbnails()))
	h.SetCache(c.ResponseCache(), cfg.Feed.CacheTTL)
	h.SetDatabase(c.DB())

	limiter := middleware.NewRateLimiterWithConfig(middleware.RateLimitConfig{
		Limit:  cfg.RateLimitPerMinute,
		Window: time.Minute,
	})

	startMaintenance(bgCtx, c, limiter)
	c.OnCleanup(func(context.Context) error {
		stopBackground()
		return nil
	})

	r := newRouter(cfg, h, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Feed server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("Server exited")
	if err := c.Cleanup(ctx); err != nil {
		log.Printf("Cleanup finished with errors: %v", err)
	}
}

// startMaintenance sweeps idle rate limiter entries and publishes pool gauges
func startMaintenance(ctx context.Context, c *container.Container, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := limiter.Cleanup(); removed > 0 {
					logger.Log.Debug("Dropped idle rate limiters", zap.Int("count", removed))
				}
				if sqlDB, err := c.DB().DB(); err == nil {
					middleware.SetDatabaseConnections(c.DB().Dialector.Name(), sqlDB.Stats().OpenConnections)
				}
			}
		}
	}()
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports database reachability and the active cache backend
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	if err := h.pingDatabase(c.Request.Context()); err != nil {
		logger.WarnWithFields("Health check: database unreachable", err)
		status = http.StatusServiceUnavailable
		dbStatus = "unavailable"
	}

	cacheBackend := "none"
	if h.cache != nil {
		cacheBackend = h.cache.Name()
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheBackend,
		"time":     feed.FormatTime(time.Now()),
	})
}

func (h *Handlers) pingDatabase(ctx context.Context) error {
	if h.db == nil {
		return errDatabaseNotConfigured
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

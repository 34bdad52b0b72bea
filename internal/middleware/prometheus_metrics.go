package middleware

import (
	"strconv"
	"time"

	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MetricsMiddleware collects HTTP metrics for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPActiveConnections.WithLabelValues(method, path).Inc()
		defer m.HTTPActiveConnections.WithLabelValues(method, path).Dec()

		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime).Seconds()
		status := c.Writer.Status()
		// Numeric status label so queries like status=~"5.." work
		statusStr := strconv.Itoa(status)

		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		responseSize := c.Writer.Size()
		if responseSize > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, statusStr).Observe(float64(responseSize))
		}

		logger.Log.Debug("HTTP request recorded",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Float64("duration_sec", duration),
			zap.Int("response_size", responseSize),
		)
	}
}

// RecordCacheHit counts a hit on the named cache
func RecordCacheHit(cacheName string) {
	metrics.Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss counts a miss on the named cache
func RecordCacheMiss(cacheName string) {
	metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheError counts a failed cache operation
func RecordCacheError(operation, cacheName string) {
	metrics.Get().CacheErrorsTotal.WithLabelValues(operation, cacheName).Inc()
}

func RecordCacheOperation(operation, cacheName string, duration time.Duration) {
	metrics.Get().CacheOperationTiming.WithLabelValues(operation, cacheName).Observe(duration.Seconds())
}

func RecordCacheEviction(cacheName string, count int) {
	metrics.Get().CacheEvictionsTotal.WithLabelValues(cacheName).Add(float64(count))
}

// RecordRateLimitExceeded counts a rejected request
func RecordRateLimitExceeded(endpoint, method string) {
	metrics.Get().RateLimitExceededTotal.WithLabelValues(endpoint, method).Inc()
}

// SetDatabaseConnections reports the open connection count
func SetDatabaseConnections(database string, count int) {
	metrics.Get().DatabaseConnectionsOpen.WithLabelValues(database).Set(float64(count))
}

// RecordFeedGeneration observes how long a feed page took; cache is "hit" or "miss"
func RecordFeedGeneration(sort, cache string, duration time.Duration, items int) {
	m := metrics.Get()
	m.FeedGenerationTime.WithLabelValues(sort, cache).Observe(duration.Seconds())
	if cache == "miss" {
		m.FeedItemsReturned.WithLabelValues(sort).Observe(float64(items))
	}
}

// RecordFeedNotModified counts a 304 answer
func RecordFeedNotModified(cache string) {
	metrics.Get().FeedNotModified.WithLabelValues(cache).Inc()
}

// RecordError counts an error by type and endpoint
func RecordError(errorType, endpoint string) {
	metrics.Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

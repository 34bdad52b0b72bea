package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/middleware"
	"github.com/classifieds/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// feedQuery binds GET /feed/listings
type feedQuery struct {
	Country     string `form:"country"`
	Region      string `form:"region"`
	City        string `form:"city"`
	Category    string `form:"category"`
	Subcategory string `form:"subcategory"`
	Sort        string `form:"sort"`
	Cursor      string `form:"cursor"`
	Limit       *int   `form:"limit" binding:"omitempty,min=1,max=50"`
	SellerID    string `form:"seller_id"`
	Search      string `form:"search"`
}

func (q feedQuery) params() feed.Params {
	p := feed.Params{
		Country:     q.Country,
		Region:      q.Region,
		City:        q.City,
		Category:    q.Category,
		Subcategory: q.Subcategory,
		Sort:        q.Sort,
		Cursor:      q.Cursor,
		SellerID:    q.SellerID,
		Search:      q.Search,
	}
	if q.Limit != nil {
		p.Limit = *q.Limit
	}
	return p.Normalize()
}

// GetFeedListings serves one page of the instant listings feed.
// First pages are cached for the configured TTL; a cache hit returns the
// stored body unchanged.
func (h *Handlers) GetFeedListings(c *gin.Context) {
	start := time.Now()

	var q feedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		util.RespondBindingError(c, err)
		return
	}

	p := q.params()
	ctx := c.Request.Context()
	etag := p.ETag()
	cacheable := h.cache != nil && p.Cursor == ""
	key := p.CacheKey()

	var (
		body  []byte
		total int64
		items int
		hit   bool
	)
	if cacheable {
		body, total, hit = h.lookup(ctx, key)
	}

	cacheLabel, cacheHeader := "miss", "MISS"
	if hit {
		cacheLabel, cacheHeader = "hit", "HIT"
	}

	c.Header("ETag", etag)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheTTL.Seconds())))
	c.Header("X-Cache", cacheHeader)

	if feed.ETagMatches(c.GetHeader("If-None-Match"), etag) {
		middleware.RecordFeedNotModified(cacheLabel)
		c.Header("X-Response-Time", responseTime(start))
		c.Status(http.StatusNotModified)
		return
	}

	if !hit {
		page, err := h.feed.Page(ctx, p)
		if err != nil {
			logger.Log.Error("Failed to build feed page",
				zap.Error(err),
				logger.WithSort(p.Sort),
				logger.WithRequestID(middleware.RequestID(c)),
			)
			respondFeedError(c, "feed_page", err, "failed to load listings")
			return
		}

		resp := h.shaper.Response(page, feed.FormatTime(h.feed.Now()))
		body, err = json.Marshal(resp)
		if err != nil {
			logger.ErrorWithFields("Failed to encode feed page", err)
			respondFeedError(c, "feed_encode", err, "failed to encode listings")
			return
		}
		total = page.TotalApprox
		items = len(resp.Items)

		logger.Log.Debug("Built feed page",
			logger.WithSort(p.Sort),
			zap.Int("items", items),
			logger.WithDuration(time.Since(start)),
		)

		if cacheable {
			h.store(ctx, key, body)
		}
	}

	middleware.RecordFeedGeneration(p.Sort, cacheLabel, time.Since(start), items)

	c.Header("X-Total-Approx", strconv.FormatInt(total, 10))
	c.Header("X-Response-Time", responseTime(start))
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// GetCachedMeta reports the active listing count and last change time
func (h *Handlers) GetCachedMeta(c *gin.Context) {
	meta, err := h.feed.Meta(c.Request.Context())
	if err != nil {
		logger.ErrorWithFields("Failed to load feed meta", err)
		respondFeedError(c, "feed_meta", err, "failed to load feed meta")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, meta)
}

// respondFeedError counts the failure and answers 503 when the database
// timed out, 500 otherwise
func respondFeedError(c *gin.Context, errorType string, err error, message string) {
	middleware.RecordError(errorType, c.FullPath())
	if errors.Is(err, context.DeadlineExceeded) {
		util.RespondServiceUnavailable(c, "listings database")
		return
	}
	util.RespondInternalError(c, message)
}

// lookup reads a cached first page. Store failures count as misses.
func (h *Handlers) lookup(ctx context.Context, key string) ([]byte, int64, bool) {
	opStart := time.Now()
	body, ok, err := h.cache.Get(ctx, key)
	middleware.RecordCacheOperation("get", ResponseCacheName, time.Since(opStart))
	if err != nil {
		middleware.RecordCacheError("get", ResponseCacheName)
		logger.Warn("Feed cache read failed",
			zap.Error(err),
			logger.WithCacheKey(key),
			zap.String("backend", h.cache.Name()),
		)
		return nil, 0, false
	}
	if !ok {
		middleware.RecordCacheMiss(ResponseCacheName)
		return nil, 0, false
	}

	var head struct {
		TotalApprox int64 `json:"totalApprox"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		middleware.RecordCacheError("decode", ResponseCacheName)
		logger.Warn("Discarding unreadable cached feed page", zap.Error(err), logger.WithCacheKey(key))
		return nil, 0, false
	}

	middleware.RecordCacheHit(ResponseCacheName)
	return body, head.TotalApprox, true
}

func (h *Handlers) store(ctx context.Context, key string, body []byte) {
	opStart := time.Now()
	err := h.cache.Set(ctx, key, body, h.cacheTTL)
	middleware.RecordCacheOperation("set", ResponseCacheName, time.Since(opStart))
	if err != nil {
		middleware.RecordCacheError("set", ResponseCacheName)
		logger.Warn("Feed cache write failed",
			zap.Error(err),
			logger.WithCacheKey(key),
			zap.String("backend", h.cache.Name()),
		)
	}
}

func responseTime(start time.Time) string {
	return fmt.Sprintf("%.2fms", float64(time.Since(start).Microseconds())/1000)
}

package handlers

import (
	"errors"
	"time"

	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/feed"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ResponseCacheName labels the feed response cache in metrics
const ResponseCacheName = "feed_response"

// DefaultCacheTTL is used when no TTL is configured
const DefaultCacheTTL = 60 * time.Second

var errDatabaseNotConfigured = errors.New("database not configured")

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	feed     *feed.Service
	shaper   *feed.Shaper
	cache    cache.Store
	cacheTTL time.Duration
	db       *gorm.DB
}

// NewHandlers creates a new handlers instance
func NewHandlers(service *feed.Service, shaper *feed.Shaper) *Handlers {
	return &Handlers{
		feed:     service,
		shaper:   shaper,
		cacheTTL: DefaultCacheTTL,
	}
}

// SetCache sets the response cache. A nil store disables caching.
func (h *Handlers) SetCache(store cache.Store, ttl time.Duration) {
	h.cache = store
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

// SetDatabase sets the connection checked by the health endpoint
func (h *Handlers) SetDatabase(db *gorm.DB) {
	h.db = db
}

// RegisterFeedRoutes mounts the feed endpoints on group
func (h *Handlers) RegisterFeedRoutes(group gin.IRoutes) {
	group.GET("/feed/listings", h.GetFeedListings)
	group.GET("/feed/listings/cached-meta", h.GetCachedMeta)
}

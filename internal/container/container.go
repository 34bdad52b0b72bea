// Package container holds the feed server's dependencies and shuts them
// down in reverse registration order.
package container

import (
	"context"
	"sync"

	"github.com/classifieds/backend/internal/cache"
	"github.com/classifieds/backend/internal/feed"
	"github.com/classifieds/backend/internal/logger"
	"github.com/classifieds/backend/internal/thumbnail"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	// Core infrastructure
	db     *gorm.DB
	logger *zap.Logger
	redis  *cache.RedisClient

	// Feed path
	responseCache cache.Store
	thumbnails    *thumbnail.Cache
	feed          *feed.Service

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty container.
// Services should be registered using Set* methods.
func New() *Container {
	return &Container{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// SetDB registers the database connection
func (c *Container) SetDB(db *gorm.DB) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Container) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Container) SetLogger(l *zap.Logger) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// Logger returns the logger instance, falling back to the global one
func (c *Container) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggerLocked()
}

func (c *Container) loggerLocked() *zap.Logger {
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetRedis registers the Redis client backing the response cache
func (c *Container) SetRedis(client *cache.RedisClient) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redis = client
	return c
}

// Redis returns the Redis client, nil unless the redis backend is active
func (c *Container) Redis() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redis
}

// SetResponseCache registers the feed response cache
func (c *Container) SetResponseCache(store cache.Store) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseCache = store
	return c
}

// ResponseCache returns the feed response cache; nil means uncached
func (c *Container) ResponseCache() cache.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.responseCache
}

// SetThumbnails registers the thumbnail cache
func (c *Container) SetThumbnails(t *thumbnail.Cache) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbnails = t
	return c
}

func (c *Container) Thumbnails() *thumbnail.Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thumbnails
}

// SetFeedService registers the feed service
func (c *Container) SetFeedService(s *feed.Service) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = s
	return c
}

func (c *Container) Feed() *feed.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feed
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions run last registered, first cleaned up.
func (c *Container) OnCleanup(fn func(context.Context) error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs the registered cleanup functions in reverse order.
// A failing function is logged and the rest still run; the first error is returned.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	log := c.loggerLocked()
	c.mu.Unlock()

	var firstErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Validate checks that all required dependencies are registered.
// This should be called after initialization and before starting the server.
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}

	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.feed == nil {
		missingDeps = append(missingDeps, "feed service")
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	if c.responseCache == nil {
		c.loggerLocked().Warn("Feed response cache disabled; serving uncached")
	}
	if c.thumbnails == nil {
		c.loggerLocked().Warn("Thumbnail cache not registered; images are embedded unchanged")
	}

	return nil
}

package cache

import (
	"github.com/classifieds/backend/internal/config"
	"github.com/classifieds/backend/internal/logger"
	"go.uber.org/zap"
)

// Selection is the response cache chosen at startup
type Selection struct {
	Store  Store        // nil when caching is disabled
	Memory *MemoryStore // set for the memory backend so the janitor can run
	Redis  *RedisClient // set for the redis backend so it can be closed
}

// Select builds the response cache named by cfg.Feed.CacheBackend.
// A Redis that cannot be reached disables caching instead of failing startup.
func Select(cfg *config.Config) Selection {
	switch cfg.Feed.CacheBackend {
	case config.CacheBackendNone:
		logger.Log.Info("Feed response cache disabled")
		return Selection{}

	case config.CacheBackendRedis:
		client, err := NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.Warn("Redis unavailable, feed responses will not be cached", zap.Error(err))
			return Selection{}
		}
		return Selection{Store: NewRedisStore(client), Redis: client}

	default:
		mem := NewMemoryStore()
		return Selection{Store: mem, Memory: mem}
	}
}

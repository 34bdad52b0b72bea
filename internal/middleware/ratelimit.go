package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/classifieds/backend/internal/errors"
	"github.com/classifieds/backend/internal/util"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc identifies the client; defaults to the client IP
	KeyFunc func(c *gin.Context) string
	// IdleTTL drops limiters not used for this long
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns the feed read limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   600,
		Window:  time.Minute,
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
		IdleTTL: 10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	config  RateLimitConfig
	limit   rate.Limit
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiterWithConfig builds a limiter without starting any goroutine
func NewRateLimiterWithConfig(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.Limit <= 0 {
		config.Limit = defaults.Limit
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.KeyFunc == nil {
		config.KeyFunc = defaults.KeyFunc
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}

	return &RateLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.Limit) / config.Window.Seconds()),
		clients: make(map[string]*clientLimiter),
	}
}

// Middleware rejects clients that exhausted their bucket with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		allowed, retryAfter := rl.Allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
		if !allowed {
			RecordRateLimitExceeded(c.FullPath(), c.Request.Method)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			util.RespondWithAPIError(c, errors.RateLimited("").WithDetails(fmt.Sprintf("retry after %ds", retryAfter)))
			return
		}
		c.Next()
	}
}

// Allow consumes a token for key. When denied it also returns the whole
// seconds until a token is available.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	now := time.Now()

	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.config.Limit)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, int(rl.config.Window.Seconds())
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, int(math.Ceil(delay.Seconds()))
	}
	return true, 0
}

// Remaining returns the whole tokens left in key's bucket
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	cl, ok := rl.clients[key]
	rl.mu.Unlock()
	if !ok {
		return rl.config.Limit
	}

	n := int(math.Floor(cl.limiter.TokensAt(time.Now())))
	if n < 0 {
		return 0
	}
	return n
}

// Cleanup drops limiters idle for longer than IdleTTL
func (rl *RateLimiter) Cleanup() int {
	cutoff := time.Now().Add(-rl.config.IdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

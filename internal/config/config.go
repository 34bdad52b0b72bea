// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/classifieds/backend/internal/util"
)

// Cache backends accepted by FEED_CACHE_BACKEND
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config holds everything the API server needs at startup
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	DatabaseURL string

	Redis RedisConfig
	Feed  FeedConfig

	RateLimitPerMinute int
	CORSAllowedOrigins []string

	Telemetry TelemetryConfig
}

// RedisConfig is only consulted when the feed cache backend is "redis"
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// FeedConfig tunes the listings feed caches and pagination
type FeedConfig struct {
	CacheBackend      string
	CacheTTL          time.Duration
	ThumbnailCapacity int
	ThumbnailSize     int
	BoostLimit        int
	CursorSecret      string
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	SamplingRate float64
}

// Load reads configuration from environment variables.
// Call godotenv.Load() first if a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),
		DatabaseURL: databaseURL(),
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Feed: FeedConfig{
			CacheBackend:      strings.ToLower(getEnvOrDefault("FEED_CACHE_BACKEND", CacheBackendMemory)),
			CacheTTL:          util.ParseDuration(os.Getenv("FEED_CACHE_TTL"), 60*time.Second),
			ThumbnailCapacity: util.ParseInt(os.Getenv("FEED_THUMB_CACHE_SIZE"), 500),
			ThumbnailSize:     util.ParseInt(os.Getenv("FEED_THUMB_SIZE"), 200),
			BoostLimit:        util.ParseInt(os.Getenv("FEED_BOOST_LIMIT"), 5),
			CursorSecret:      getEnvOrDefault("FEED_CURSOR_SECRET", "dev-feed-cursor-secret"),
		},
		RateLimitPerMinute: util.ParseInt(os.Getenv("RATE_LIMIT_PER_MINUTE"), 600),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		Telemetry: TelemetryConfig{
			Enabled:      util.ParseBool(os.Getenv("OTEL_ENABLED"), false),
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "classifieds-backend"),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SamplingRate: util.ParseFloat(os.Getenv("OTEL_SAMPLING_RATE"), 0.1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the feed cannot run with
func (c *Config) Validate() error {
	switch c.Feed.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendNone:
	default:
		return fmt.Errorf("FEED_CACHE_BACKEND must be one of memory, redis, none (got %q)", c.Feed.CacheBackend)
	}
	if c.Feed.CacheTTL <= 0 {
		return fmt.Errorf("FEED_CACHE_TTL must be positive")
	}
	if c.Feed.ThumbnailCapacity <= 0 {
		return fmt.Errorf("FEED_THUMB_CACHE_SIZE must be positive")
	}
	if c.Feed.ThumbnailSize <= 0 {
		return fmt.Errorf("FEED_THUMB_SIZE must be positive")
	}
	if c.Feed.BoostLimit < 0 {
		return fmt.Errorf("FEED_BOOST_LIMIT cannot be negative")
	}
	if c.Feed.CursorSecret == "" {
		return fmt.Errorf("FEED_CURSOR_SECRET cannot be empty")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATE must be between 0 and 1")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// databaseURL prefers DATABASE_URL and falls back to individual components
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "postgres"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "classifieds"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

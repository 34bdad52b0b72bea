// Package cache holds the response caches for rendered feed pages.
package cache

import (
	"context"
	"time"
)

// Store caches serialized responses by key.
// Get reports a miss with ok == false and a nil error; an error means the
// backend itself failed and callers treat it as a miss.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Name() string
}

// Invalidator is implemented by stores that can drop keys by prefix
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get/GetDel when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is the injected key-value store with TTL semantics used for the
// access-token slots, refresh-token mappings and the organization tree.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// GetDel atomically reads and removes a key where the backend supports
	// it (redis GETDEL). Used for one-time refresh token consumption.
	GetDel(ctx context.Context, key string) (string, error)
}

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache: miss")

// Cache is a string key-value store with expiry. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when key is not present
	Get(ctx context.Context, key string) (string, error)

	// Set stores value for ttl; a ttl <= 0 keeps it until deleted
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and reports how many existed
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
}

package cache

import (
	"context"
	"time"
)

// Store is the narrow cache interface every chat component gets injected.
// The cache is never authoritative; callers must tolerate misses and
// recompute from the persistence store.
type Store interface {
	// Get returns the raw value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob-style pattern,
	// e.g. "room:messages:42:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	// IncrWithTTL atomically increments the counter at key, attaching the
	// window TTL on first increment. Returns the new count and the time
	// left until the key expires. The increment and the TTL attach are a
	// single atomic operation against the backend.
	IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

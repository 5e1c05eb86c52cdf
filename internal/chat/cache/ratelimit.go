package cache

import (
	"context"
	"time"
)

// RateLimitResult reports the outcome of one fixed-window check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts attempts per opaque key inside a TTL-bounded window.
// Keys are caller-defined (convention: "{action}:{userId}:{roomId}"); the
// limiter knows nothing about what they represent.
type RateLimiter struct {
	store Store
}

func NewRateLimiter(store Store) *RateLimiter {
	return &RateLimiter{store: store}
}

// CheckAndIncrement admits the call while the window counter is at or
// below maxAttempts. The increment-and-compare is a single atomic store
// operation, so concurrent callers sharing a key see exactly maxAttempts
// admits per window.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, maxAttempts int, window time.Duration) (*RateLimitResult, error) {
	count, resetIn, err := rl.store.IncrWithTTL(ctx, RateLimitKey(key), window)
	if err != nil {
		return nil, err
	}

	if count > int64(maxAttempts) {
		return &RateLimitResult{Allowed: false, Remaining: 0, ResetIn: resetIn}, nil
	}
	return &RateLimitResult{
		Allowed:   true,
		Remaining: maxAttempts - int(count),
		ResetIn:   resetIn,
	}, nil
}

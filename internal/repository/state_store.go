package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral key-value state.
// Implementations: Redis (production) or in-memory (local dev / single instance).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Incr adds one to the counter at key and returns the new value. The TTL
	// is applied when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

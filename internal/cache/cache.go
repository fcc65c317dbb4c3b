// Package cache is a key-value store with expiring entries.
package cache

import (
	"context"
	"time"
)

// Store is the cache contract used by feature services. Get reports a miss
// with ok == false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

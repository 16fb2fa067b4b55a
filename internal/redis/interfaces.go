package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking. A lock is
// released only with the token returned when it was acquired.
type LockStoreInterface interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// AttemptStoreInterface defines the interface for PIN attempt counting.
type AttemptStoreInterface interface {
	Increment(ctx context.Context, rideID string, ttl time.Duration) (int, error)
	Count(ctx context.Context, rideID string) (int, error)
	Reset(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface    = (*LockStore)(nil)
	_ AttemptStoreInterface = (*AttemptStore)(nil)
)

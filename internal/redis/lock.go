package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only while it still holds the caller's token,
// so a holder whose lock expired cannot release the next holder's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// LockClient is the subset of the Redis client LockStore uses.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client LockClient
}

// NewLockStore creates a new LockStore.
func NewLockStore(client LockClient) *LockStore {
	return &LockStore{client: client}
}

// UserSessionLockKey serializes device-session changes of one user.
func UserSessionLockKey(userID string) string {
	return fmt.Sprintf("lock:session:user:%s", userID)
}

// RideLockKey serializes PIN changes of one ride.
func RideLockKey(rideID string) string {
	return fmt.Sprintf("lock:ride:%s", rideID)
}

// AcquireLock attempts to acquire the named lock under a fresh token.
// Returns ok=false if the lock is already held.
func (s *LockStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases the named lock if it is still held with token.
func (s *LockStore) ReleaseLock(ctx context.Context, key, token string) error {
	return s.client.Eval(ctx, releaseScript, []string{key}, token).Err()
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore counts failed PIN entries per ride.
type AttemptStore struct {
	client *redis.Client
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func pinAttemptKey(rideID string) string {
	return fmt.Sprintf("pin:attempts:%s", rideID)
}

// Increment records one failed attempt and returns the new count.
// The counter expires ttl after the first failure.
func (s *AttemptStore) Increment(ctx context.Context, rideID string, ttl time.Duration) (int, error) {
	key := pinAttemptKey(rideID)

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}

	return int(n), nil
}

// Count returns the current number of failed attempts.
func (s *AttemptStore) Count(ctx context.Context, rideID string) (int, error) {
	n, err := s.client.Get(ctx, pinAttemptKey(rideID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Reset clears the counter, e.g. after the PIN was regenerated.
func (s *AttemptStore) Reset(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, pinAttemptKey(rideID)).Err()
}

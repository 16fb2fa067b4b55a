package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// LockStore is an in-memory implementation of redis.LockStoreInterface.
// TTLs are ignored.
type LockStore struct {
	mu     sync.Mutex
	tokens map[string]string
	issued int64

	AcquireCallCount int32
	ReleaseCallCount int32

	// AcquireResult forces every acquisition to fail when set to false.
	AcquireResult *bool
	AcquireError  error
}

// NewLockStore creates a new in-memory lock store.
func NewLockStore() *LockStore {
	return &LockStore{tokens: make(map[string]string)}
}

func (m *LockStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.AcquireResult != nil && !*m.AcquireResult {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.tokens[key]; held {
		return "", false, nil
	}
	m.issued++
	token := fmt.Sprintf("token-%d", m.issued)
	m.tokens[key] = token
	return token, true, nil
}

func (m *LockStore) ReleaseLock(ctx context.Context, key, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[key] == token {
		delete(m.tokens, key)
	}
	return nil
}

// Expire drops key as if its TTL had run out.
func (m *LockStore) Expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
}

// IsLocked reports whether key is currently held.
func (m *LockStore) IsLocked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.tokens[key]
	return held
}

// AttemptStore is an in-memory implementation of redis.AttemptStoreInterface.
type AttemptStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewAttemptStore creates a new in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{counts: make(map[string]int)}
}

func (m *AttemptStore) Increment(ctx context.Context, rideID string, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rideID]++
	return m.counts[rideID], nil
}

func (m *AttemptStore) Count(ctx context.Context, rideID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[rideID], nil
}

func (m *AttemptStore) Reset(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, rideID)
	return nil
}

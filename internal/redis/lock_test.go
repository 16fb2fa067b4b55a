package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeLockClient keeps lock values in a map and runs the release script's
// compare-and-delete in process.
type fakeLockClient struct {
	mu     sync.Mutex
	values map[string]string
	evals  int
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: make(map[string]string)}
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	var deleted int64
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		deleted = 1
	}
	return redis.NewCmdResult(deleted, nil)
}

// expire drops key as Redis would once its TTL runs out.
func (f *fakeLockClient) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
}

func (f *fakeLockClient) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func TestLockStore_AcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewLockStore(newFakeLockClient())
	key := RideLockKey("ride-1")

	token, ok, err := store.AcquireLock(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || token == "" {
		t.Fatalf("expected lock with a token, got ok=%v token=%q", ok, token)
	}

	_, ok, err = store.AcquireLock(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected second acquire to fail, got ok")
	}
}

func TestLockStore_ExpiredHolderCannotReleaseNextHolder(t *testing.T) {
	ctx := context.Background()
	client := newFakeLockClient()
	store := NewLockStore(client)
	key := UserSessionLockKey("user-1")

	first, ok, err := store.AcquireLock(ctx, key, time.Second)
	if err != nil || !ok {
		t.Fatalf("unexpected acquire result: ok=%v err=%v", ok, err)
	}
	client.expire(key)

	second, ok, err := store.AcquireLock(ctx, key, time.Second)
	if err != nil || !ok {
		t.Fatalf("unexpected acquire result: ok=%v err=%v", ok, err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens, got %q twice", first)
	}

	if err := store.ReleaseLock(ctx, key, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, held := client.holder(key); !held || got != second {
		t.Errorf("expected lock held with %q, got %q (held=%v)", second, got, held)
	}

	if err := store.ReleaseLock(ctx, key, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, held := client.holder(key); held {
		t.Errorf("expected lock released, got held")
	}
	if client.evals != 2 {
		t.Errorf("expected 2 release scripts, got %d", client.evals)
	}
}

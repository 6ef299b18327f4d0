package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisSourceLockerMutualExclusion(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	rdb.Del(ctx, "lock:source:lk-1")

	locker := NewRedisSourceLocker(rdb)

	unlock, err := locker.Lock(ctx, "lk-1")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 600*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(waitCtx, "lk-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second lock error = %v, want deadline exceeded while held", err)
	}

	unlock()

	unlock2, err := locker.Lock(ctx, "lk-1")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock2()
}

func TestRedisSourceLockerStaleHolderCannotRelease(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	key := "lock:source:lk-2"
	rdb.Del(ctx, key)

	locker := NewRedisSourceLocker(rdb)

	staleUnlock, err := locker.Lock(ctx, "lk-2")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Simulate TTL expiry followed by another worker taking the lock.
	rdb.Del(ctx, key)
	unlock, err := locker.Lock(ctx, "lk-2")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}

	// The stale holder's token no longer matches; the release must not
	// remove the current holder's lock.
	staleUnlock()

	if n, err := rdb.Exists(ctx, key).Result(); err != nil || n != 1 {
		t.Fatalf("lock key exists = %d (err %v), want 1 after stale release", n, err)
	}
	unlock()
}

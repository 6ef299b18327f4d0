package database

import (
	"context"
	"fmt"
	"time"

	"notebook-rag-platform/internal/logger"
	"notebook-rag-platform/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the caller still holds it,
// so a lock that expired and was re-acquired is never released by the
// old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSourceLocker is an advisory lock keyed by sourceId, serializing
// index/reindex/deindex per source. TTL-guarded so a crashed worker
// cannot wedge a source forever.
type RedisSourceLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

var _ services.SourceLocker = (*RedisSourceLocker)(nil)

func NewRedisSourceLocker(rdb *redis.Client) *RedisSourceLocker {
	return &RedisSourceLocker{
		rdb:   rdb,
		ttl:   5 * time.Minute,
		retry: 200 * time.Millisecond,
	}
}

// Lock blocks until the per-source lock is acquired or ctx is done.
func (l *RedisSourceLocker) Lock(ctx context.Context, sourceID string) (func(), error) {
	key := "lock:source:" + sourceID
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: acquire source lock: %v", services.ErrStorage, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			logger.Warn("failed to release source lock", "source_id", sourceID, "error", err)
		}
	}
	return unlock, nil
}

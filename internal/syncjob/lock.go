package syncjob

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when another run of the same kind holds the lock.
var ErrLockNotAcquired = errors.New("sync lock not acquired")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker guards a sync kind against concurrent runs.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), err error)
}

// RedisLocker holds the lock in Redis so runs from several processes exclude each other.
type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "govcon:lock:"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// Acquire takes the lock with SET NX. The returned release only deletes
// the key while it still holds this holder's token.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.rdb, []string{lockKey}, token).Err()
	}, nil
}

// LocalLocker is a process-local Locker for deployments without Redis.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire marks key as held. The ttl is ignored.
func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLockNotAcquired
	}
	l.held[key] = struct{}{}

	return func(context.Context) {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

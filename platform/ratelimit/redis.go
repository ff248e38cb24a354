package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call("zremrangebyscore", key, "-inf", window_start)
local current = redis.call("zcard", key)

if current < limit then
	redis.call("zadd", key, now, member)
	redis.call("pexpire", key, window_ms)
	return {1, limit - current - 1, 0}
end

local oldest = redis.call("zrange", key, 0, 0, "WITHSCORES")
if #oldest > 0 then
	return {0, 0, tonumber(oldest[2])}
end
return {0, 0, 0}
`)

// RedisCounter is a sliding-window counter shared across processes.
type RedisCounter struct {
	rdb       redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisCounter creates a Redis-backed counter.
func NewRedisCounter(rdb redis.UniversalClient, keyPrefix string, limit int, window time.Duration) *RedisCounter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisCounter{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Allow atomically records a hit for key if it fits in the current window.
func (r *RedisCounter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	result, err := slidingWindowScript.Run(ctx, r.rdb, []string{r.keyPrefix + key},
		now.UnixMilli(),
		now.Add(-r.window).UnixMilli(),
		r.limit,
		r.window.Milliseconds(),
		uuid.NewString(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(result) < 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected result length %d", len(result))
	}

	allowed, err := toInt64(result[0])
	if err != nil {
		return Decision{}, err
	}
	remaining, err := toInt64(result[1])
	if err != nil {
		return Decision{}, err
	}
	oldestMs, err := toInt64(result[2])
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{Allowed: allowed == 1, Remaining: int(remaining)}
	if !decision.Allowed && oldestMs > 0 {
		decision.RetryIn = time.UnixMilli(oldestMs).Add(r.window).Sub(now)
	}
	return decision, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(n, 64)
			if ferr != nil {
				return 0, err
			}
			return int64(f), nil
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSlidingScript prunes hits outside the trailing window, then either
// records the hit or reports the oldest remaining score for retry math.
// KEYS[1] bucket key; ARGV[1] now ms; ARGV[2] limit; ARGV[3] window ms;
// ARGV[4] unique member suffix.
var redisSlidingScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= limit then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  return {0, count, oldest[2]}
end
redis.call("ZADD", KEYS[1], now, ARGV[1] .. "-" .. ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, count + 1, 0}
`)

// RedisLimiter implements a sliding-window rate limiter backed by Redis,
// sharing one quota across all service instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	seq    func() string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	var counter atomic.Int64
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
		seq: func() string {
			return strconv.FormatInt(counter.Add(1), 36)
		},
	}
}

// Allow checks whether the request should be counted within the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	redisKey := l.buildKey(key)

	res, errEval := redisSlidingScript.Run(ctx, l.client,
		[]string{redisKey}, nowMs, limit, windowMs, l.seq()).Result()
	if errEval != nil {
		return Result{}, errEval
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 3 {
		return Result{}, errors.New("rate limit redis: unexpected response shape")
	}
	allowed, errAllowed := toInt64(values[0])
	if errAllowed != nil {
		return Result{}, errAllowed
	}
	count, errCount := toInt64(values[1])
	if errCount != nil {
		return Result{}, errCount
	}

	if allowed == 0 {
		oldestMs, errOldest := toInt64(values[2])
		if errOldest != nil {
			oldestMs = nowMs
		}
		reset := time.UnixMilli(oldestMs + windowMs).UTC()
		retryAfter := int((reset.Sub(now) + time.Second - 1) / time.Second)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Key:        key,
			Limit:      limit,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: retryAfter,
		}, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Key:       key,
		Limit:     limit,
		Remaining: remaining,
		Reset:     now.Add(window).UTC(),
	}, nil
}

func (l *RedisLimiter) buildKey(key string) string {
	prefix := strings.TrimSpace(l.prefix)
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// toInt64 normalizes Lua script return values across client versions.
func toInt64(v interface{}) (int64, error) {
	switch value := v.(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case uint64:
		return int64(value), nil
	case string:
		parsed, errParse := strconv.ParseFloat(value, 64)
		if errParse != nil {
			return 0, errParse
		}
		return int64(parsed), nil
	default:
		return 0, errors.New("rate limit redis: unexpected response type")
	}
}

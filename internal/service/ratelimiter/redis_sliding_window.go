package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

const redisKeyPrefix = "ratelimit:ask:"

// luaSlidingWindowScript keeps one sorted set per client, scored by request
// time in milliseconds. ARGV: now, cutoff (now - window), limit, member, window.
const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])
local window = tonumber(ARGV[5])

redis.call("ZREMRANGEBYSCORE", key, "-inf", ARGV[2])

local count = redis.call("ZCARD", key)
if count >= limit then
  local retry = window
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  if oldest[2] ~= nil then
    retry = window - (now - tonumber(oldest[2]))
  end
  if retry < 0 then
    retry = 0
  end
  return { 0, retry }
end

redis.call("ZADD", key, ARGV[1], ARGV[4])
redis.call("PEXPIRE", key, ARGV[5])
return { 1, 0 }
`

// RedisSlidingWindow shares the sliding window across replicas. The script
// runs atomically in Redis. Redis errors fail open.
type RedisSlidingWindow struct {
	redis       *redis.Client
	script      *redis.Script
	maxRequests int
	window      time.Duration
}

// NewRedisSlidingWindow returns nil when rdb is nil.
func NewRedisSlidingWindow(rdb *redis.Client, maxRequests int, window time.Duration) *RedisSlidingWindow {
	if rdb == nil {
		return nil
	}
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window < time.Millisecond {
		window = time.Hour
	}
	return &RedisSlidingWindow{
		redis:       rdb,
		script:      redis.NewScript(luaSlidingWindowScript),
		maxRequests: maxRequests,
		window:      window,
	}
}

var _ domain.RateLimiter = (*RedisSlidingWindow)(nil)

// Admit mirrors SlidingWindow.Admit against Redis.
func (l *RedisSlidingWindow) Admit(ctx context.Context, clientID string, now time.Time) error {
	if l == nil || l.redis == nil {
		return nil
	}
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + ulid.Make().String()

	res, err := l.script.Run(ctx, l.redis, []string{redisKeyPrefix + clientID},
		nowMs, nowMs-windowMs, l.maxRequests, member, windowMs,
	).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.Any("error", err))
		return nil
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		slog.Error("redis rate limiter unexpected script result", slog.Any("result", res))
		return nil
	}
	if toInt64(vals[0]) == 1 {
		return nil
	}
	return &LimitError{RetryAfter: time.Duration(toInt64(vals[1])) * time.Millisecond}
}

// Ping reports whether Redis is reachable.
func (l *RedisSlidingWindow) Ping(ctx context.Context) error {
	if l == nil || l.redis == nil {
		return nil
	}
	return l.redis.Ping(ctx).Err()
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

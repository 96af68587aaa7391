package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit defines a token bucket capacity and the window over which it refills
// linearly.
type Limit struct {
	Name     string
	Capacity int
	Window   time.Duration
}

// Decision is the result of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// RateLimiter is a token bucket per key, stored in Redis and updated
// atomically with a Lua script.
type RateLimiter struct {
	client *redis.Client
	limit  Limit
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, limit Limit) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, now: time.Now}
}

// Lua script performs token-bucket operations atomically.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local window = tonumber(ARGV[3]) -- in ms

local bucket = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])

if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local delta = now - ts
if delta < 0 then delta = 0 end

tokens = math.min(capacity, tokens + (delta * capacity) / window)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", key, window)

local retryAfterMs = 0
if allowed == 0 then
  retryAfterMs = math.ceil((1 - tokens) * window / capacity)
end

return {allowed, tostring(tokens), retryAfterMs}
`)

// Take consumes one token for principal. Redis errors are returned with an
// allowing decision; the caller chooses whether to fail open.
func (l *RateLimiter) Take(ctx context.Context, principal string) (Decision, error) {
	open := Decision{Allowed: true, Remaining: float64(l.limit.Capacity)}
	if l.limit.Capacity <= 0 || l.limit.Window <= 0 {
		return open, nil
	}

	key := fmt.Sprintf("rl:%s:%s", l.limit.Name, principal)
	res, err := rateLimitScript.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(), l.limit.Capacity, l.limit.Window.Milliseconds()).Slice()
	if err != nil {
		return open, fmt.Errorf("rate limit: %w", err)
	}
	if len(res) != 3 {
		return open, fmt.Errorf("rate limit: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	remaining, _ := toFloat(res[1])
	retryMs, _ := toFloat(res[2])
	return Decision{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
	}, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

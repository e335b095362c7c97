package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

// The bucket is a hash of tokens and the last refill time in milliseconds.
// Tokens refill continuously at limit per window.
var tokenBucketScript = rueidis.NewLuaScript(`
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now_ms
end

local elapsed = math.max(0, now_ms - ts)
tokens = math.min(capacity, tokens + elapsed * capacity / window_ms)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now_ms))
redis.call('PEXPIRE', KEYS[1], window_ms * 2)

return allowed
`)

// NewRedisClient accepts either a redis:// URL or a plain host:port address.
func NewRedisClient(address string) (rueidis.Client, error) {
	if !strings.Contains(address, "://") {
		return rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{address}})
	}

	opt, err := rueidis.ParseURL(address)
	if err != nil {
		return nil, err
	}

	return rueidis.NewClient(opt)
}

func (rl *RateLimiter) checkBucketRedis(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	allowed, err := tokenBucketScript.Exec(ctx, rl.redisClient, []string{key}, []string{
		strconv.Itoa(limit),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.FormatInt(rl.now().UnixMilli(), 10),
	}).AsInt64()
	if err != nil {
		return false, err
	}

	return allowed == 1, nil
}

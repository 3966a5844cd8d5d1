// Package ratelimit 提供基于 Redis 的令牌桶限流。
//
// 桶状态存放在 Redis 中，多实例共享；补充与消费在一个 lua 脚本里
// 原子完成。
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
if allowed then
  tokens = tokens - requested
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, tokens}
`

// Limiter 是按 key 维度限流的 Redis 令牌桶。
type Limiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64
	burst  float64
	script *redis.Script
}

// NewRedisLimiter 创建限流器。rate 为每秒补充的令牌数，burst 为桶容量。
func NewRedisLimiter(rdb *redis.Client, prefix string, rate float64, burst float64) *Limiter {
	if prefix == "" {
		prefix = "taskapi:ratelimit"
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 尝试从 key 对应的桶中取走一个令牌，不阻塞等待。
//
// 返回 false 表示应当拒绝本次请求。rate/burst 配置为 0 时限流关闭，
// 恒返回 true。
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true, nil
	}

	now := time.Now().UnixMilli()
	fullKey := l.prefix + ":" + key
	res, err := l.script.Run(ctx, l.rdb, []string{fullKey}, l.rate, l.burst, now, 1).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 1 {
		return false, fmt.Errorf("ratelimit invalid result")
	}
	return toInt64(values[0]) == 1, nil
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
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// Package ratelimit charges batch exports against a per-client token bucket
// kept in redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCostExceedsCapacity = errors.New("request cost exceeds bucket capacity")

// Decision is the outcome of one charge. Remaining is the whole number of
// tokens left after it.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// takeScript refills by elapsed time, then takes ARGV[4] tokens if the bucket
// holds that many. It returns {allowed, floor(tokens), retry_after_ms}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "timestamp")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - last) * refill_per_ms)

local allowed = 0
local wait_ms = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait_ms = math.ceil((cost - tokens) / refill_per_ms)
end

redis.call("HSET", key, "tokens", tokens, "timestamp", now_ms)
redis.call("PEXPIRE", key, ttl_ms)
return {allowed, math.floor(tokens), wait_ms}
`)

// refundScript returns ARGV[2] tokens to an existing bucket, never above
// capacity.
var refundScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])
local tokens = tonumber(redis.call("HGET", key, "tokens"))
if tokens == nil then
  return capacity
end
tokens = math.min(capacity, tokens + amount)
redis.call("HSET", key, "tokens", tokens)
return math.floor(tokens)
`)

// RedisTokenBucket holds up to capacity tokens per subject and refills the
// full capacity once per window.
type RedisTokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, errors.New("capacity must be positive")
	case window <= 0:
		return nil, errors.New("window must be positive")
	}

	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "pixelgrade:ratelimit"
	}
	windowMS := max(window.Milliseconds(), 1)

	return &RedisTokenBucket{
		client:      client,
		capacity:    int64(capacity),
		refillPerMS: float64(capacity) / float64(windowMS),
		ttl:         2 * window,
		keyPrefix:   keyPrefix,
		now:         time.Now,
	}, nil
}

func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	return l.AllowN(ctx, subject, 1)
}

// AllowN takes cost tokens at once. A cost above the bucket capacity can
// never succeed and is rejected without touching redis.
func (l *RedisTokenBucket) AllowN(ctx context.Context, subject string, cost int) (Decision, error) {
	cost = max(cost, 1)
	if int64(cost) > l.capacity {
		return Decision{}, fmt.Errorf("%w: cost %d exceeds capacity %d", ErrCostExceedsCapacity, cost, l.capacity)
	}

	reply, err := takeScript.Run(ctx, l.client, []string{l.key(subject)},
		l.capacity,
		l.refillPerMS,
		l.now().UTC().UnixMilli(),
		cost,
		l.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	return decisionFromReply(reply)
}

// Refund gives back tokens charged for work that was never started, such as
// an export that failed to enqueue.
func (l *RedisTokenBucket) Refund(ctx context.Context, subject string, cost int) error {
	if cost < 1 {
		return nil
	}
	if err := refundScript.Run(ctx, l.client, []string{l.key(subject)}, l.capacity, cost).Err(); err != nil {
		return fmt.Errorf("run token refund script: %w", err)
	}
	return nil
}

func (l *RedisTokenBucket) key(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return l.keyPrefix + ":" + subject
}

func decisionFromReply(reply []int64) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("invalid token bucket response: %v", reply)
	}
	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  reply[1],
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy is a rate limiting algorithm.
// key: limit identity (e.g. client IP)
// limit: allowed count (or bucket capacity)
// window: counting window (or token refill period)
type Strategy interface {
	Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error)
}

type Manager struct {
	rdb      *redis.Client
	strategy Strategy
}

func NewManager(rdb *redis.Client, strategy Strategy) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
	}
}

func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, key, limit, window)
}

// FixedWindowStrategy counts hits per window with an atomic INCR+EXPIRE.
type FixedWindowStrategy struct{}

func (s *FixedWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	const script = `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call("INCR", key)

		if current == 1 then
			redis.call("EXPIRE", key, window)
		end

		if current > limit then
			return 0
		end
		return 1
	`

	result, err := rdb.Eval(ctx, script, []string{key}, limit, int(window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// TokenBucketStrategy refills limit tokens per window and spends one per
// request, allowing short bursts up to the bucket capacity.
type TokenBucketStrategy struct{}

func (s *TokenBucketStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	// KEYS[1]: hash holding tokens + last refill time
	// ARGV[1]: capacity, ARGV[2]: refill rate (tokens/second), ARGV[3]: now (unix seconds)
	const script = `
		local key = KEYS[1]
		local capacity = tonumber(ARGV[1])
		local rate = tonumber(ARGV[2])
		local now = tonumber(ARGV[3])

		local info = redis.call("HMGET", key, "tokens", "last_time")
		local tokens = tonumber(info[1])
		local last_time = tonumber(info[2])

		if tokens == nil then
			tokens = capacity
			last_time = now
		end

		local delta = math.max(0, now - last_time)
		tokens = math.min(capacity, tokens + delta * rate)

		if tokens >= 1 then
			tokens = tokens - 1
			redis.call("HMSET", key, "tokens", tokens, "last_time", now)
			redis.call("EXPIRE", key, 60)
			return 1
		else
			return 0
		end
	`

	rate := float64(limit) / window.Seconds()
	if rate <= 0 {
		rate = 1
	}

	now := time.Now().Unix()
	result, err := rdb.Eval(ctx, script, []string{key}, limit, rate, now).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

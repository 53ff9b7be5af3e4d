package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucket is one token-bucket key space.
type bucket struct {
	prefix  string
	minIdle time.Duration
}

var (
	userBucket = bucket{prefix: "ratelimit:user:", minIdle: 2 * time.Minute}
	ipBucket   = bucket{prefix: "ratelimit:ip:", minIdle: 10 * time.Second}
)

// idleTTL keeps an untouched bucket at least until it would have refilled.
func (b bucket) idleTTL(perSecond float64, burst int) time.Duration {
	refill := time.Duration(math.Ceil(float64(burst) / perSecond * float64(time.Second)))
	return max(b.minIdle, refill)
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time // when the bucket is full again
	RetryAfter time.Duration
}

// takeScript refills the bucket for the elapsed milliseconds and takes one
// token. It returns {allowed, wait_ms, remaining}.
var takeScript = redis.NewScript(`
local rate  = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now   = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts     = tonumber(state[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate)
end

local allowed, wait = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, wait, math.floor(tokens)}
`)

// CheckUserRateLimit takes a token from the user's bucket. A zero rate means unlimited.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID int64, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute == 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}
	return c.take(ctx, userBucket, strconv.FormatInt(userID, 10), float64(ratePerMinute)/60, burst)
}

// CheckIPRateLimit takes a token from the bucket of a client IP. Only a hash
// of the address is stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.take(ctx, ipBucket, hashIP(ip), float64(ratePerSecond), burst)
}

func (c *Cache) take(ctx context.Context, b bucket, id string, perSecond float64, burst int) (*RateLimitResult, error) {
	now := time.Now()
	raw, err := takeScript.Run(ctx, c.client,
		[]string{b.prefix + id},
		perSecond/1000, burst, now.UnixMilli(), b.idleTTL(perSecond, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run token bucket: %w", err)
	}
	return bucketResult(now, raw, perSecond, burst), nil
}

// bucketResult interprets the script reply.
func bucketResult(now time.Time, raw []int64, perSecond float64, burst int) *RateLimitResult {
	remaining := raw[2]
	missing := float64(int64(burst) - remaining)
	return &RateLimitResult{
		Allowed:    raw[0] == 1,
		Remaining:  remaining,
		ResetAt:    now.Add(time.Duration(missing / perSecond * float64(time.Second))),
		RetryAfter: time.Duration(raw[1]) * time.Millisecond,
	}
}

// hashIP returns the first 8 bytes of the SHA-256 of ip, hex encoded.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}

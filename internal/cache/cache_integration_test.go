//go:build integration

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/testutil"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()

	c, err := New(ctx, testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, testutil.FlushRedis(ctx, c.client))
	return c
}

// ============================================================================
// Auth context cache
// ============================================================================

func TestAuthContextRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetAuthContext(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "miss must be nil, nil")

	want := &model.AuthContext{
		TokenID:     "01J0000000000000000000000",
		TokenPrefix: "rb_abcd1234",
		UserID:      42,
		Email:       "cook@example.com",
		IsStaff:     true,
	}
	require.NoError(t, c.SetAuthContext(ctx, "key", want))

	got, err = c.GetAuthContext(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl, err := c.client.TTL(ctx, authCachePrefix+"key").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, authCacheTTL/2)

	require.NoError(t, c.client.Del(ctx, authCachePrefix+"key").Err())
	got, err = c.GetAuthContext(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAuthContextCorruptEntryIsMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.client.Set(ctx, authCachePrefix+"bad", "{not json", 0).Err())

	got, err := c.GetAuthContext(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ============================================================================
// Rate limiting
// ============================================================================

func TestUserRateLimitConcurrency(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	const rpm, burst = 10, 5
	var allowed, rejected atomic.Int64

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 3 {
				result, err := c.CheckUserRateLimit(ctx, 7, rpm, burst)
				if !assert.NoError(t, err) {
					return
				}
				if result.Allowed {
					allowed.Add(1)
				} else {
					rejected.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	t.Logf("user limit: %d allowed, %d rejected", allowed.Load(), rejected.Load())
	assert.LessOrEqual(t, allowed.Load(), int64(burst+1), "bucket must not be overdrawn")
	assert.Positive(t, rejected.Load())
}

func TestUserRateLimitIsPerUser(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for range 2 {
		result, err := c.CheckUserRateLimit(ctx, 1, 1, 2)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := c.CheckUserRateLimit(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)

	result, err = c.CheckUserRateLimit(ctx, 2, 1, 2)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "another user has a separate bucket")
}

func TestIPRateLimitConcurrency(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	const rps, burst = 5, 3
	var allowed, rejected atomic.Int64

	var wg sync.WaitGroup
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.CheckIPRateLimit(ctx, "192.168.1.100", rps, burst)
			if !assert.NoError(t, err) {
				return
			}
			if result.Allowed {
				allowed.Add(1)
			} else {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	t.Logf("ip limit: %d allowed, %d rejected", allowed.Load(), rejected.Load())
	assert.Positive(t, rejected.Load())
}

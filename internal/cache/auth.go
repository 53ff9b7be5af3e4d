package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recipebox/recipebox/internal/model"
)

const (
	authCachePrefix = "auth:ctx:"
	authCacheTTL    = 5 * time.Minute
)

// cachedAuthContext is the JSON shape stored in Redis.
type cachedAuthContext struct {
	TokenID     string `json:"token_id"`
	TokenPrefix string `json:"token_prefix"`
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil, nil on a miss.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth context: %w", err)
	}

	var cached cachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted entry, treat as miss.
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		TokenID:     cached.TokenID,
		TokenPrefix: cached.TokenPrefix,
		UserID:      cached.UserID,
		Email:       cached.Email,
		IsStaff:     cached.IsStaff,
	}, nil
}

// SetAuthContext caches an auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, ac *model.AuthContext) error {
	data, err := json.Marshal(cachedAuthContext{
		TokenID:     ac.TokenID,
		TokenPrefix: ac.TokenPrefix,
		UserID:      ac.UserID,
		Email:       ac.Email,
		IsStaff:     ac.IsStaff,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL).Err()
}

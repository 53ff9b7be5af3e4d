package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

const touchTimeout = 5 * time.Second

// DefaultMaxTokens is how many tokens a user keeps; issuing one more
// revokes the oldest.
const DefaultMaxTokens = 10

// TokenService issues API tokens and resolves them back to users.
type TokenService struct {
	users     UserStore
	tokens    TokenStore
	cache     AuthCache
	params    auth.Params
	maxTokens int
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewTokenService creates a new TokenService. cache may be nil.
func NewTokenService(users UserStore, tokens TokenStore, cache AuthCache, params auth.Params, recorder metrics.Recorder, logger *slog.Logger) *TokenService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenService{
		users:     users,
		tokens:    tokens,
		cache:     cache,
		params:    params,
		maxTokens: DefaultMaxTokens,
		metrics:   recorder,
		logger:    logger,
	}
}

// WithMaxTokens sets how many tokens each user keeps. n <= 0 keeps all.
func (s *TokenService) WithMaxTokens(n int) *TokenService {
	s.maxTokens = n
	return s
}

// IssueToken exchanges valid credentials for a new plaintext token.
// Every failure cause returns ErrInvalidCredentials.
func (s *TokenService) IssueToken(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn comparable time so unknown emails are not distinguishable.
			_, _ = auth.HashPasswordWithParams(password, s.params)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok || !user.IsActive {
		return "", ErrInvalidCredentials
	}
	if auth.NeedsRehash(user.PasswordHash, s.params) {
		s.upgradeHash(ctx, user, password)
	}

	generated, err := auth.GenerateToken(s.params)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := &model.Token{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		UserID:    user.ID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.CreateToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.metrics.IncCreated(metrics.ResourceToken)
	s.logger.Info("token_issued",
		slog.Int64("user_id", user.ID),
		slog.String("token_id", token.ID),
		slog.String("token_prefix", token.KeyPrefix),
	)
	s.pruneTokens(ctx, user.ID, token.ID)
	return generated.Plaintext, nil
}

// pruneTokens revokes the user's oldest tokens beyond maxTokens.
// The new token is already stored, so failures are only logged.
func (s *TokenService) pruneTokens(ctx context.Context, userID int64, newest string) {
	if s.maxTokens <= 0 {
		return
	}
	n, err := s.tokens.PruneTokens(ctx, userID, newest, s.maxTokens)
	if err != nil {
		s.logger.Warn("token prune failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("tokens_pruned", slog.Int64("user_id", userID), slog.Int64("count", n))
	}
}

// upgradeHash re-hashes a verified password with the current parameters.
// Failures are logged and the old hash stays valid.
func (s *TokenService) upgradeHash(ctx context.Context, user *model.User, password string) {
	hash, err := auth.HashPasswordWithParams(password, s.params)
	if err == nil {
		user.PasswordHash = hash
		err = s.users.UpdateUser(ctx, user)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", slog.Int64("user_id", user.ID), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("password_rehashed", slog.Int64("user_id", user.ID))
}

// Authenticate resolves a plaintext token to the identity it was issued to.
// It returns ErrInvalidToken for any token that does not resolve to an active user.
func (s *TokenService) Authenticate(ctx context.Context, plaintext string) (*model.AuthContext, error) {
	parsed, err := auth.ParseToken(plaintext)
	if err != nil {
		s.metrics.IncAuthFailure("invalid_format")
		return nil, ErrInvalidToken
	}

	cacheKey := auth.QuickHash(plaintext)
	if s.cache != nil {
		if ac, _ := s.cache.GetAuthContext(ctx, cacheKey); ac != nil {
			s.metrics.IncAuthCacheHit()
			return ac, nil
		}
		s.metrics.IncAuthCacheMiss()
	}

	candidates, err := s.tokens.GetTokensByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	// Prefixes can collide; verify each candidate.
	var matched *model.Token
	for _, t := range candidates {
		if ok, err := auth.VerifyPassword(plaintext, t.KeyHash); err == nil && ok {
			matched = t
			break
		}
	}
	if matched == nil {
		s.metrics.IncAuthFailure("unknown_token")
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncAuthFailure("unknown_user")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get token owner: %w", err)
	}
	if !user.IsActive {
		s.metrics.IncAuthFailure("inactive_user")
		return nil, ErrInvalidToken
	}

	ac := &model.AuthContext{
		TokenID:     matched.ID,
		TokenPrefix: matched.KeyPrefix,
		UserID:      user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
	}

	if s.cache != nil {
		if err := s.cache.SetAuthContext(ctx, cacheKey, ac); err != nil {
			s.logger.Warn("auth cache write failed", slog.String("error", err.Error()))
		}
	}

	go func(id string) {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.tokens.TouchToken(touchCtx, id, time.Now().UTC()); err != nil {
			s.logger.Warn("token last_used update failed", slog.String("error", err.Error()))
		}
	}(matched.ID)

	return ac, nil
}

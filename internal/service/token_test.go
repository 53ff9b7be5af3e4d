package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
)

func TestTokenService_IssueAndAuthenticate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	u := e.user(t, "cook@example.com")

	token, err := e.tokens.IssueToken(ctx, "cook@EXAMPLE.com", "testpass123")
	require.NoError(t, err)
	assert.True(t, hasPrefix(token, "rb_"))

	ac, err := e.tokens.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, ac.UserID)
	assert.Equal(t, u.Email, ac.Email)

	// Each issuance yields a distinct, independently valid token.
	second, err := e.tokens.IssueToken(ctx, "cook@example.com", "testpass123")
	require.NoError(t, err)
	assert.NotEqual(t, token, second)
	_, err = e.tokens.Authenticate(ctx, token)
	assert.NoError(t, err)
}

func TestTokenService_IssueTokenRevokesOldestPastCap(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	tokens := service.NewTokenService(e.store, e.store, nil, testParams, e.recorder, discardLogger).WithMaxTokens(2)

	e.user(t, "cook@example.com")
	other := e.user(t, "other@example.com")
	otherToken, err := tokens.IssueToken(ctx, other.Email, "testpass123")
	require.NoError(t, err)

	issued := make([]string, 3)
	for i := range issued {
		issued[i], err = tokens.IssueToken(ctx, "cook@example.com", "testpass123")
		require.NoError(t, err)
	}

	_, err = tokens.Authenticate(ctx, issued[0])
	assert.ErrorIs(t, err, service.ErrInvalidToken)
	for _, tok := range issued[1:] {
		_, err = tokens.Authenticate(ctx, tok)
		assert.NoError(t, err)
	}

	// Caps are per user.
	_, err = tokens.Authenticate(ctx, otherToken)
	assert.NoError(t, err)
}

func TestTokenService_IssueTokenUpgradesStaleHash(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	weaker := testParams
	weaker.KeyLen = 16
	hash, err := auth.HashPasswordWithParams("testpass123", weaker)
	require.NoError(t, err)
	u := &model.User{Email: "legacy@example.com", PasswordHash: hash, IsActive: true}
	require.NoError(t, e.store.CreateUser(ctx, u))

	_, err = e.tokens.IssueToken(ctx, u.Email, "testpass123")
	require.NoError(t, err)

	stored, err := e.store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, hash, stored.PasswordHash)
	assert.False(t, auth.NeedsRehash(stored.PasswordHash, testParams))

	// The upgraded hash still accepts the same password.
	_, err = e.tokens.IssueToken(ctx, u.Email, "testpass123")
	assert.NoError(t, err)
}

func TestTokenService_IssueTokenFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	u := e.user(t, "cook@example.com")
	inactive := e.user(t, "gone@example.com")
	inactive.IsActive = false
	require.NoError(t, e.store.UpdateUser(ctx, inactive))

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", u.Email, "wrong"},
		{"unknown user", "nobody@example.com", "testpass123"},
		{"missing password", u.Email, ""},
		{"missing email", "", "testpass123"},
		{"inactive user", inactive.Email, "testpass123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := e.tokens.IssueToken(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, service.ErrInvalidCredentials)
			assert.Empty(t, token)
		})
	}
}

func TestTokenService_AuthenticateRejects(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	u := e.user(t, "cook@example.com")
	token, err := e.tokens.IssueToken(ctx, u.Email, "testpass123")
	require.NoError(t, err)

	tests := []string{
		"",
		"garbage",
		"rb_000000_00000000000000000000000000000000",
		token[:len(token)-1] + "0",
	}
	for _, tok := range tests {
		if tok == token {
			continue
		}
		_, err := e.tokens.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, service.ErrInvalidToken, "token %q", tok)
	}

	u.IsActive = false
	require.NoError(t, e.store.UpdateUser(ctx, u))
	_, err = e.tokens.Authenticate(ctx, token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

type mapCache struct {
	entries map[string]*model.AuthContext
	sets    int
}

func (m *mapCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	return m.entries[key], nil
}

func (m *mapCache) SetAuthContext(_ context.Context, key string, ac *model.AuthContext) error {
	m.sets++
	m.entries[key] = ac
	return nil
}

func TestTokenService_UsesCache(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	cache := &mapCache{entries: map[string]*model.AuthContext{}}
	tokens := service.NewTokenService(e.store, e.store, cache, testParams, e.recorder, discardLogger)

	u := e.user(t, "cook@example.com")
	token, err := tokens.IssueToken(ctx, u.Email, "testpass123")
	require.NoError(t, err)

	_, err = tokens.Authenticate(ctx, token)
	require.NoError(t, err)
	_, err = tokens.Authenticate(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	snap := e.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.AuthCacheHits)
	assert.Equal(t, uint64(1), snap.AuthCacheMisses)
}

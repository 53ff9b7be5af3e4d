package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/service"
)

func TestUserService_CreateUserNormalizesEmail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	u, err := e.users.CreateUser(context.Background(), "test@LONDONAPPDEV.COM", "test123", "")
	require.NoError(t, err)
	assert.Equal(t, "test@londonappdev.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "test123", u.PasswordHash)
	assert.True(t, e.users.CheckPassword(u, "test123"))
	assert.False(t, e.users.CheckPassword(u, "wrong"))
}

func TestUserService_CreateUserRejectsEmptyEmail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	for _, email := range []string{"", "   "} {
		_, err := e.users.CreateUser(context.Background(), email, "test123", "")
		var vErr *service.ValidationError
		require.True(t, errors.As(err, &vErr), "email %q", email)
		assert.Contains(t, vErr.Fields, "email")
	}
}

func TestUserService_CreateSuperuser(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	u, err := e.users.CreateSuperuser(context.Background(), "admin@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
}

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     service.RegisterInput
		wantField string
	}{
		{"valid", service.RegisterInput{Email: "ok@example.com", Password: "testpass", Name: "Test"}, ""},
		{"short password", service.RegisterInput{Email: "short@example.com", Password: "pw", Name: "Test"}, "password"},
		{"missing email", service.RegisterInput{Password: "testpass"}, "email"},
		{"email without at", service.RegisterInput{Email: "not-an-email", Password: "testpass"}, "email"},
		{"email without domain", service.RegisterInput{Email: "a@", Password: "testpass"}, "email"},
		{"email of separators", service.RegisterInput{Email: "@@", Password: "testpass"}, "email"},
		{"email without local part", service.RegisterInput{Email: "@example.com", Password: "testpass"}, "email"},
		{"email with display name", service.RegisterInput{Email: "Cook <cook@example.com>", Password: "testpass"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)

			u, err := e.users.Register(context.Background(), tt.input)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.input.Email, u.Email)
				return
			}

			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.wantField)

			_, err = e.store.GetUserByEmail(context.Background(), tt.input.Email)
			assert.Error(t, err, "user must not be created")
		})
	}
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.users.Register(ctx, service.RegisterInput{Email: "dup@example.com", Password: "testpass"})
	require.NoError(t, err)

	_, err = e.users.Register(ctx, service.RegisterInput{Email: "dup@EXAMPLE.com", Password: "testpass"})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	u := e.user(t, "me@example.com")

	updated, err := e.users.UpdateProfile(ctx, u.ID, service.UpdateProfileInput{
		Name:     ptr("New Name"),
		Password: ptr("newpassword"),
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "me@example.com", updated.Email)
	assert.True(t, e.users.CheckPassword(updated, "newpassword"))

	_, err = e.users.UpdateProfile(ctx, u.ID, service.UpdateProfileInput{Password: ptr("pw")})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "password")

	_, err = e.users.UpdateProfile(ctx, u.ID, service.UpdateProfileInput{Email: ptr("me@")})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "enter a valid email address", vErr.Fields["email"])

	got, err := e.users.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Email)

	_, err = e.users.UpdateProfile(ctx, 999, service.UpdateProfileInput{})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

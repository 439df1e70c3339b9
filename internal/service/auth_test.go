package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/tokens"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.Auth.Register(ctx, "marta", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "user", user.Role)

	// duplicate username
	_, err = env.Auth.Register(ctx, "marta", "another")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = env.Auth.Login(ctx, "marta", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := env.Auth.Login(ctx, "marta", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := tokens.AccessClaimsFromToken(pair.AccessToken, []byte("test-access-secret"))
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims.Subject)
	require.Equal(t, "user", claims.Role)
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Auth.Register(ctx, "jonas", "correcthorse")
	require.NoError(t, err)
	pair, err := env.Auth.Login(ctx, "jonas", "correcthorse")
	require.NoError(t, err)

	rotated, err := env.Auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)

	// the old refresh token is revoked after rotation
	_, err = env.Auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Auth.Register(ctx, "ada", "longpassword")
	require.NoError(t, err)
	pair, err := env.Auth.Login(ctx, "ada", "longpassword")
	require.NoError(t, err)

	require.NoError(t, env.Auth.Logout(ctx, pair.RefreshToken))

	_, err = env.Auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

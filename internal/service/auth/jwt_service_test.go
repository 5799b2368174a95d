package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/service/auth"
)

const testSecret = "test-jwt-secret-that-is-at-least-32-chars"

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()

		svc, err := auth.NewJWTService(config.AuthConfig{
			JWTSecret:            testSecret,
			TokenLifetimeMinutes: 30,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("secret too short", func(t *testing.T) {
		t.Parallel()

		svc, err := auth.NewJWTService(config.AuthConfig{
			JWTSecret:            "too-short",
			TokenLifetimeMinutes: 30,
		})
		assert.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return now })

	token, err := svc.GenerateToken(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateTokenFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		current := now
		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return current })

		token, err := svc.GenerateToken(ctx, "user@example.com")
		require.NoError(t, err)

		current = now.Add(31 * time.Minute)
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("token valid just before expiry", func(t *testing.T) {
		t.Parallel()

		current := now
		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return current })

		token, err := svc.GenerateToken(ctx, "user@example.com")
		require.NoError(t, err)

		current = now.Add(29 * time.Minute)
		_, err = svc.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return now })
		other := auth.NewTestJWTService(
			"another-secret-that-is-also-32-chars-long",
			30*time.Minute,
			func() time.Time { return now },
		)

		token, err := other.GenerateToken(ctx, "user@example.com")
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return now })

		for _, tokenString := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
			_, err := svc.ValidateToken(ctx, tokenString)
			assert.ErrorIs(t, err, auth.ErrInvalidToken, "token: %q", tokenString)
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return now })

		token, err := svc.GenerateToken(ctx, "user@example.com")
		require.NoError(t, err)

		tampered := token[:len(token)-4] + "AAAA"
		_, err = svc.ValidateToken(ctx, tampered)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return now })

		token, err := svc.GenerateToken(ctx, "")
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestValidateTokenIsDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Two validations of the same token at the same instant must agree.
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := now
	svc := auth.NewTestJWTService(testSecret, 30*time.Minute, func() time.Time { return current })

	token, err := svc.GenerateToken(ctx, "user@example.com")
	require.NoError(t, err)

	current = now.Add(30*time.Minute + time.Second)
	_, firstErr := svc.ValidateToken(ctx, token)
	_, secondErr := svc.ValidateToken(ctx, token)

	assert.ErrorIs(t, firstErr, auth.ErrExpiredToken)
	assert.ErrorIs(t, secondErr, auth.ErrExpiredToken)
}

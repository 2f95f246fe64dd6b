package repository

import (
	"context"
	"testing"
	"time"

	"muadati/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	require.NoError(t, Ping(ctx, client))

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:1.2.3.4"
		for i := 0; i < 2; i++ {
			allowed, err := repo.CheckRateLimit(ctx, key, 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, s.TTL(rateLimitPrefix+key) > 0)

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ResetRateLimit", func(t *testing.T) {
		key := "login:reset"
		_, _ = repo.CheckRateLimit(ctx, key, 1, time.Minute)
		allowed, _ := repo.CheckRateLimit(ctx, key, 1, time.Minute)
		assert.False(t, allowed)

		require.NoError(t, repo.ResetRateLimit(ctx, key))
		allowed, err := repo.CheckRateLimit(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("RevokeToken", func(t *testing.T) {
		revoked, err := repo.IsTokenRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, repo.RevokeToken(ctx, "jti-1", time.Hour))
		revoked, err = repo.IsTokenRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		s.FastForward(2 * time.Hour)
		revoked, err = repo.IsTokenRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("ZeroTTLIgnored", func(t *testing.T) {
		require.NoError(t, repo.RevokeToken(ctx, "jti-expired", 0))
		revoked, err := repo.IsTokenRevoked(ctx, "jti-expired")
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}

func TestRedisSessionRepository_Errors(t *testing.T) {
	ctx := context.Background()

	nilRepo := NewRedisSessionRepository(nil)
	_, err := nilRepo.CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)
	_, err = nilRepo.IsTokenRevoked(ctx, "k")
	assert.Error(t, err)

	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	repo := NewRedisSessionRepository(client)
	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)
	assert.Error(t, Ping(ctx, client))
}

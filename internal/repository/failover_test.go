package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ResetRateLimit(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockRepo) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	return m.Called(ctx, tokenID, ttl).Error(0)
}

func (m *mockRepo) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := NewMemorySessionRepository()
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "k", 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "k", 1, time.Minute).Return(false, errors.New("redis down")).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())

		// while down, primary is not consulted
		allowed, err = repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("RevokeWritesBoth", func(t *testing.T) {
		require.NoError(t, repo.RevokeToken(ctx, "jti", time.Hour))
		revoked, err := repo.IsTokenRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("Recovery", func(t *testing.T) {
		repo.mu.Lock()
		repo.lastCheck = time.Now().Add(-2 * recoveryInterval)
		repo.mu.Unlock()

		primary.On("IsTokenRevoked", ctx, "other").Return(false, nil).Once()
		revoked, err := repo.IsTokenRevoked(ctx, "other")
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})
}

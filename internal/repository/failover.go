package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"muadati/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository serves from primary and switches to fallback
// when primary errors, probing primary again once a minute.
type FailoverSessionRepository struct {
	primary  domain.SessionRepository
	fallback domain.SessionRepository
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should try primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverSessionRepository) observe(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("primary session repository recovered")
		}
		return
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	}
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverSessionRepository) ResetRateLimit(ctx context.Context, key string) error {
	// both sides may hold a counter for key
	_ = r.fallback.ResetRateLimit(ctx, key)
	if r.usePrimary() {
		err := r.primary.ResetRateLimit(ctx, key)
		r.observe(err)
	}
	return nil
}

func (r *FailoverSessionRepository) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := r.fallback.RevokeToken(ctx, tokenID, ttl); err != nil {
		return err
	}
	if r.usePrimary() {
		err := r.primary.RevokeToken(ctx, tokenID, ttl)
		r.observe(err)
	}
	return nil
}

func (r *FailoverSessionRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.usePrimary() {
		revoked, err := r.primary.IsTokenRevoked(ctx, tokenID)
		r.observe(err)
		if err == nil && revoked {
			return true, nil
		}
	}
	return r.fallback.IsTokenRevoked(ctx, tokenID)
}

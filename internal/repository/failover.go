package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fixora/internal/domain"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverProviderCache uses the primary cache until it errors, then serves
// from the fallback and retries the primary once a minute.
type FailoverProviderCache struct {
	primary   domain.ProviderCache
	fallback  domain.ProviderCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverProviderCache(primary, fallback domain.ProviderCache, logger *zerolog.Logger) *FailoverProviderCache {
	return &FailoverProviderCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverProviderCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary provider cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether the primary is up or due for a recovery try.
func (r *FailoverProviderCache) shouldProbe() bool {
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

func (r *FailoverProviderCache) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	if r.shouldProbe() {
		wasDown := r.isDown.Load()
		provider, err := r.primary.GetProvider(ctx, id)
		if err == nil {
			if wasDown {
				r.logger.Info().Msg("Primary provider cache recovered")
			}
			r.isDown.Store(false)
			return provider, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetProvider(ctx, id)
}

func (r *FailoverProviderCache) SetProvider(ctx context.Context, provider *models.Provider) error {
	if !r.isDown.Load() {
		err := r.primary.SetProvider(ctx, provider)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetProvider(ctx, provider)
}

func (r *FailoverProviderCache) InvalidateProvider(ctx context.Context, id string) error {
	// Invalidate both sides so a recovered primary cannot serve a stale entry
	// the fallback already dropped, and vice versa.
	_ = r.fallback.InvalidateProvider(ctx, id)
	if !r.isDown.Load() {
		err := r.primary.InvalidateProvider(ctx, id)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}

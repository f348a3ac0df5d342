package repository

import (
	"context"
	"sync"
	"time"

	"fixora/internal/models"
)

type memoryEntry struct {
	provider  models.Provider
	expiresAt time.Time
}

// MemoryProviderCache is the in-process fallback used when Redis is not
// configured or down.
type MemoryProviderCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryProviderCache(ttl time.Duration) *MemoryProviderCache {
	return &MemoryProviderCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryProviderCache) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	val, ok := r.entries.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.CompareAndDelete(id, val)
		return nil, nil
	}
	p := entry.provider
	p.Categories = append([]string(nil), entry.provider.Categories...)
	return &p, nil
}

func (r *MemoryProviderCache) SetProvider(ctx context.Context, provider *models.Provider) error {
	if provider == nil || provider.ID == "" {
		return nil
	}
	entry := &memoryEntry{provider: *provider, expiresAt: r.now().Add(r.ttl)}
	entry.provider.Categories = append([]string(nil), provider.Categories...)
	r.entries.Store(provider.ID, entry)
	return nil
}

func (r *MemoryProviderCache) InvalidateProvider(ctx context.Context, id string) error {
	r.entries.Delete(id)
	return nil
}

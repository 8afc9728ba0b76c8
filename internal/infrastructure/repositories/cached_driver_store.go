package repositories

import (
	"context"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
	"seryvo/pkg/cache"
)

const (
	driverProfilePrefix = "driver:"
	availableDriversKey = "drivers:available"
)

// CachedDriverStore decorates a DriverStore with a short-TTL memory cache.
// Dispatch recomputes eligibility on every new booking; caching the available
// set keeps that off the backing store's hot path. Writes invalidate the
// affected entries, so staleness is bounded by the TTL only for other
// processes' writes.
type CachedDriverStore struct {
	inner ports.DriverStore
	cache *cache.Cache
}

func NewCachedDriverStore(inner ports.DriverStore, ttl time.Duration) *CachedDriverStore {
	return &CachedDriverStore{
		inner: inner,
		cache: cache.New(ttl),
	}
}

func (s *CachedDriverStore) SaveProfile(ctx context.Context, profile *domain.DriverProfile) error {
	if err := s.inner.SaveProfile(ctx, profile); err != nil {
		return err
	}
	s.cache.Delete(driverProfilePrefix + string(profile.UserID))
	s.cache.Delete(availableDriversKey)
	return nil
}

func (s *CachedDriverStore) GetProfile(ctx context.Context, id domain.UserID) (*domain.DriverProfile, error) {
	key := driverProfilePrefix + string(id)
	if v, ok := s.cache.Get(key); ok {
		profile := v.(domain.DriverProfile)
		return &profile, nil
	}

	profile, err := s.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, *profile)
	return profile, nil
}

func (s *CachedDriverStore) SetAvailability(ctx context.Context, id domain.UserID, available bool) error {
	if err := s.inner.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	s.cache.Delete(driverProfilePrefix + string(id))
	s.cache.Delete(availableDriversKey)
	return nil
}

func (s *CachedDriverStore) ListAvailableDrivers(ctx context.Context) ([]domain.UserID, error) {
	if v, ok := s.cache.Get(availableDriversKey); ok {
		cached := v.([]domain.UserID)
		out := make([]domain.UserID, len(cached))
		copy(out, cached)
		return out, nil
	}

	ids, err := s.inner.ListAvailableDrivers(ctx)
	if err != nil {
		return nil, err
	}
	stored := make([]domain.UserID, len(ids))
	copy(stored, ids)
	s.cache.Set(availableDriversKey, stored)
	return ids, nil
}

// Close stops the cache's sweep goroutine.
func (s *CachedDriverStore) Close() {
	s.cache.Stop()
}

package memory

import (
	"context"
	"sync"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
)

type MemoryDriverStore struct {
	profiles map[domain.UserID]*domain.DriverProfile
	mu       sync.RWMutex
}

func NewMemoryDriverStore() ports.DriverStore {
	return &MemoryDriverStore{
		profiles: make(map[domain.UserID]*domain.DriverProfile),
	}
}

func (s *MemoryDriverStore) SaveProfile(ctx context.Context, profile *domain.DriverProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *profile
	s.profiles[profile.UserID] = &clone
	return nil
}

func (s *MemoryDriverStore) GetProfile(ctx context.Context, id domain.UserID) (*domain.DriverProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[id]
	if !exists {
		return nil, domain.ErrDriverNotFound
	}
	clone := *profile
	return &clone, nil
}

func (s *MemoryDriverStore) SetAvailability(ctx context.Context, id domain.UserID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, exists := s.profiles[id]
	if !exists {
		return domain.ErrDriverNotFound
	}
	profile.Available = available
	return nil
}

func (s *MemoryDriverStore) ListAvailableDrivers(ctx context.Context) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []domain.UserID
	for _, profile := range s.profiles {
		if profile.Approved && profile.Available {
			ids = append(ids, profile.UserID)
		}
	}
	return ids, nil
}

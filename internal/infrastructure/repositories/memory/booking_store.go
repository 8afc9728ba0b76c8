package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
)

// MemoryBookingStore keeps bookings and their event log in process memory.
// All conditional writes happen under one mutex, which gives the same
// winner-takes-all semantics a relational store provides with row locking.
type MemoryBookingStore struct {
	bookings map[domain.BookingID]*domain.Booking
	events   map[domain.BookingID][]*domain.BookingEvent
	mu       sync.Mutex
}

func NewMemoryBookingStore() ports.BookingStore {
	return &MemoryBookingStore{
		bookings: make(map[domain.BookingID]*domain.Booking),
		events:   make(map[domain.BookingID][]*domain.BookingEvent),
	}
}

func (s *MemoryBookingStore) Create(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[booking.ID]; exists {
		return fmt.Errorf("booking already exists: %s", booking.ID)
	}
	clone := *booking
	s.bookings[booking.ID] = &clone
	return nil
}

func (s *MemoryBookingStore) GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, exists := s.bookings[id]
	if !exists {
		return nil, domain.ErrBookingNotFound
	}
	clone := *booking
	return &clone, nil
}

func (s *MemoryBookingStore) ClaimForDriver(ctx context.Context, id domain.BookingID, driverID domain.UserID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, exists := s.bookings[id]
	if !exists {
		return nil, domain.ErrBookingNotFound
	}
	if booking.DriverID != nil || booking.Status != domain.StatusRequested {
		return nil, domain.ErrBookingClaimed
	}

	now := time.Now().UTC()
	booking.DriverID = &driverID
	booking.Status = domain.StatusDriverAssigned
	booking.AcceptedAt = &now

	clone := *booking
	return &clone, nil
}

func (s *MemoryBookingStore) AdvanceStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, exists := s.bookings[id]
	if !exists {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != from {
		return nil, fmt.Errorf("%w: booking is %s, expected %s", domain.ErrInvalidTransition, booking.Status, from)
	}

	now := time.Now().UTC()
	booking.Status = to
	switch to {
	case domain.StatusInProgress:
		booking.StartedAt = &now
	case domain.StatusCompleted:
		booking.CompletedAt = &now
	}

	clone := *booking
	return &clone, nil
}

func (s *MemoryBookingStore) Cancel(ctx context.Context, id domain.BookingID, to domain.BookingStatus) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, exists := s.bookings[id]
	if !exists {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: booking is already %s", domain.ErrInvalidTransition, booking.Status)
	}
	if !to.IsCancellation() {
		return nil, fmt.Errorf("%w: %s is not a cancellation state", domain.ErrInvalidTransition, to)
	}

	now := time.Now().UTC()
	booking.Status = to
	booking.CanceledAt = &now

	clone := *booking
	return &clone, nil
}

func (s *MemoryBookingStore) AppendEvent(ctx context.Context, event *domain.BookingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *event
	s.events[event.BookingID] = append(s.events[event.BookingID], &clone)
	return nil
}

func (s *MemoryBookingStore) ListEvents(ctx context.Context, id domain.BookingID) ([]*domain.BookingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[id]
	out := make([]*domain.BookingEvent, len(events))
	for i, e := range events {
		clone := *e
		out[i] = &clone
	}
	return out, nil
}

package ports

import (
	"context"

	"seryvo/internal/core/domain"
)

// BookingStore is the persistent booking record, accessed through simple CRUD
// calls plus the conditional writes the accept race depends on. Every
// conditional method must be atomic under the store's isolation guarantees.
type BookingStore interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error)

	// ClaimForDriver sets driver_id and status=driver_assigned only if
	// driver_id is currently null and status is currently requested.
	// Returns domain.ErrBookingClaimed when another driver already won.
	ClaimForDriver(ctx context.Context, id domain.BookingID, driverID domain.UserID) (*domain.Booking, error)

	// AdvanceStatus moves status from -> to only if the current status
	// equals from. Returns domain.ErrInvalidTransition on a stale read.
	AdvanceStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) (*domain.Booking, error)

	// Cancel moves the booking into the given cancellation state only if
	// the current status is non-terminal.
	Cancel(ctx context.Context, id domain.BookingID, to domain.BookingStatus) (*domain.Booking, error)

	AppendEvent(ctx context.Context, event *domain.BookingEvent) error
	ListEvents(ctx context.Context, id domain.BookingID) ([]*domain.BookingEvent, error)
}

// DriverStore exposes the driver records dispatch eligibility is computed
// from.
type DriverStore interface {
	SaveProfile(ctx context.Context, profile *domain.DriverProfile) error
	GetProfile(ctx context.Context, id domain.UserID) (*domain.DriverProfile, error)
	SetAvailability(ctx context.Context, id domain.UserID, available bool) error

	// ListAvailableDrivers returns the ids of drivers that are approved and
	// currently marked available.
	ListAvailableDrivers(ctx context.Context) ([]domain.UserID, error)
}

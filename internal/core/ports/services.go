package ports

import (
	"context"
	"time"

	"seryvo/internal/core/domain"
)

// Presence answers who is online right now. The registry owns the underlying
// state; readers get copies, never live references.
type Presence interface {
	IsOnline(id domain.UserID) bool
	OnlineWithRole(role domain.Role) []domain.UserID
	OnlineUsers() []domain.UserID
	ConnectionCount() int
}

// Broker fans an envelope out to a target set. Delivery is best-effort and
// at-most-once: a failed send to one connection never aborts the rest, and
// nothing is queued or retried.
type Broker interface {
	ToUser(id domain.UserID, env domain.Envelope)
	ToRoom(roomID string, env domain.Envelope, exclude domain.UserID)
	ToChannel(channel domain.Channel, env domain.Envelope, exclude domain.UserID)
	ToRole(role domain.Role, env domain.Envelope, exclude domain.UserID)
	ToAll(env domain.Envelope, exclude domain.UserID)
}

// LifecycleService validates and applies booking status transitions.
type LifecycleService interface {
	CreateBooking(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error)

	// Transition applies one step of the state machine on behalf of actor.
	// requested -> driver_assigned binds the actor as the booking's driver
	// and is resolved atomically against the store; concurrent losers get
	// domain.ErrBookingClaimed.
	Transition(ctx context.Context, id domain.BookingID, actor domain.Identity, to domain.BookingStatus) (*domain.Booking, error)

	// Cancel moves the booking into a terminal cancellation state and
	// records the reason in the event log.
	Cancel(ctx context.Context, id domain.BookingID, actor domain.Identity, reason string) (*domain.Booking, error)
}

// DispatchService is the coordination surface this core exposes to the rest
// of the backend.
type DispatchService interface {
	// DispatchNewBookingOffer pushes an offer to every eligible driver:
	// available and approved in the store AND online with role driver.
	// Returns the drivers actually offered to.
	DispatchNewBookingOffer(ctx context.Context, bookingID domain.BookingID, payload map[string]interface{}) ([]domain.UserID, error)

	// BroadcastBookingUpdate notifies the client, the assigned driver and
	// the booking's room about a lifecycle event.
	BroadcastBookingUpdate(bookingID domain.BookingID, clientID domain.UserID, driverID *domain.UserID, msgType domain.MessageType, data map[string]interface{})

	IsIdentityOnline(id domain.UserID) bool
	OnlineIdentitiesWithRole(role domain.Role) []domain.UserID
}

// TokenVerifier decodes a bearer token into an identity, or fails.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// ConnectionInfo describes one live connection for the status surface.
type ConnectionInfo struct {
	UserID      domain.UserID
	Role        domain.Role
	ConnectedAt time.Time
}

package domain

import "time"

type BookingID string

// BookingStatus is the canonical booking lifecycle state.
type BookingStatus string

const (
	StatusRequested           BookingStatus = "requested"
	StatusDriverAssigned      BookingStatus = "driver_assigned"
	StatusDriverEnRoutePickup BookingStatus = "driver_en_route_pickup"
	StatusDriverArrived       BookingStatus = "driver_arrived"
	StatusInProgress          BookingStatus = "in_progress"
	StatusCompleted           BookingStatus = "completed"
	StatusCanceledByClient    BookingStatus = "canceled_by_client"
	StatusCanceledByDriver    BookingStatus = "canceled_by_driver"
	StatusCanceledBySystem    BookingStatus = "canceled_by_system"
	StatusNoShowClient        BookingStatus = "no_show_client"
	StatusNoShowDriver        BookingStatus = "no_show_driver"
)

// progressTransitions maps a status to the statuses reachable by the assigned
// driver as the trip advances. Acceptance (requested -> driver_assigned) is
// handled separately because it also binds driver_id.
var progressTransitions = map[BookingStatus][]BookingStatus{
	StatusDriverAssigned:      {StatusDriverEnRoutePickup},
	StatusDriverEnRoutePickup: {StatusDriverArrived},
	StatusDriverArrived:       {StatusInProgress},
	StatusInProgress:          {StatusCompleted},
}

// CanProgressTo reports whether the trip-progress transition from -> to is in
// the table. It never covers acceptance or cancellation.
func CanProgressTo(from, to BookingStatus) bool {
	for _, next := range progressTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave the status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted,
		StatusCanceledByClient, StatusCanceledByDriver, StatusCanceledBySystem,
		StatusNoShowClient, StatusNoShowDriver:
		return true
	}
	return false
}

// IsCancellation reports whether the status is one of the terminal
// cancellation or no-show variants.
func (s BookingStatus) IsCancellation() bool {
	switch s {
	case StatusCanceledByClient, StatusCanceledByDriver, StatusCanceledBySystem,
		StatusNoShowClient, StatusNoShowDriver:
		return true
	}
	return false
}

// Booking is the persisted booking record. The store owns it; the core reads
// it to decide eligibility and writes it through conditional updates only.
type Booking struct {
	ID       BookingID     `json:"id"`
	ClientID UserID        `json:"client_id"`
	DriverID *UserID       `json:"driver_id,omitempty"` // nil until a driver claims the booking
	Status   BookingStatus `json:"status"`

	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	FareEstimate   float64 `json:"fare_estimate"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
}

// BookingEvent is one immutable entry in a booking's audit trail. Events are
// appended on every accepted transition and never mutated or deleted.
type BookingEvent struct {
	BookingID  BookingID         `json:"booking_id"`
	ActorID    UserID            `json:"actor_id"`
	FromStatus BookingStatus     `json:"from_status"`
	ToStatus   BookingStatus     `json:"to_status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Vehicle is the vehicle summary shown to clients when a driver is assigned.
type Vehicle struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Color        string `json:"color,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// DriverProfile is the subset of the driver record dispatch cares about.
type DriverProfile struct {
	UserID    UserID   `json:"user_id"`
	Name      string   `json:"name,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Vehicle   *Vehicle `json:"vehicle,omitempty"`
	Approved  bool     `json:"approved"`
	Available bool     `json:"available"`
}

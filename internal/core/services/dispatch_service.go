package services

import (
	"context"
	"fmt"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dispatcher pushes booking offers to eligible drivers and broadcasts
// lifecycle updates. Eligibility is the intersection of the store's
// available+approved drivers and the presence registry's online drivers.
type Dispatcher struct {
	drivers  ports.DriverStore
	presence ports.Presence
	broker   ports.Broker
	tracer   trace.Tracer
	metrics  Metrics
	logger   *zap.SugaredLogger
}

func NewDispatcher(drivers ports.DriverStore, presence ports.Presence, broker ports.Broker, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		drivers:  drivers,
		presence: presence,
		broker:   broker,
		tracer:   otel.Tracer("seryvo/dispatch"),
		metrics:  nopMetrics{},
		logger:   logger,
	}
}

// WithMetrics installs a domain metrics sink and returns the receiver.
func (d *Dispatcher) WithMetrics(m Metrics) *Dispatcher {
	if m != nil {
		d.metrics = m
	}
	return d
}

// DispatchNewBookingOffer sends one offer envelope per eligible driver,
// addressed to the driver directly so candidates never see each other. An
// empty eligible set sends nothing and leaves the booking requested.
func (d *Dispatcher) DispatchNewBookingOffer(ctx context.Context, bookingID domain.BookingID, payload map[string]interface{}) ([]domain.UserID, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.offer", trace.WithAttributes(
		attribute.String("booking.id", string(bookingID)),
	))
	defer span.End()

	available, err := d.drivers.ListAvailableDrivers(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list available drivers: %w", err)
	}

	online := make(map[domain.UserID]struct{})
	for _, id := range d.presence.OnlineWithRole(domain.RoleDriver) {
		online[id] = struct{}{}
	}

	var eligible []domain.UserID
	for _, id := range available {
		if _, ok := online[id]; ok {
			eligible = append(eligible, id)
		}
	}
	span.SetAttributes(attribute.Int("dispatch.eligible_count", len(eligible)))

	d.metrics.RecordOfferDispatched(len(eligible))
	if len(eligible) == 0 {
		d.logger.Infow("no eligible drivers online, booking stays requested", "booking_id", bookingID)
		return nil, nil
	}

	offer := map[string]interface{}{
		"booking_id": string(bookingID),
		"offer_type": "new_booking",
		"status":     string(domain.StatusRequested),
	}
	for k, v := range payload {
		offer[k] = v
	}
	env := domain.NewEnvelope(domain.MsgBookingCreated, domain.ChannelBooking, offer)

	for _, driverID := range eligible {
		d.broker.ToUser(driverID, env)
	}

	d.logger.Infow("booking offer dispatched",
		"booking_id", bookingID,
		"driver_count", len(eligible),
	)
	return eligible, nil
}

// BroadcastBookingUpdate notifies the booking's client, its assigned driver
// and everyone in the booking's room.
func (d *Dispatcher) BroadcastBookingUpdate(bookingID domain.BookingID, clientID domain.UserID, driverID *domain.UserID, msgType domain.MessageType, data map[string]interface{}) {
	payload := map[string]interface{}{
		"booking_id": string(bookingID),
	}
	for k, v := range data {
		payload[k] = v
	}
	env := domain.NewEnvelope(msgType, domain.ChannelBooking, payload)

	d.broker.ToUser(clientID, env)
	if driverID != nil {
		d.broker.ToUser(*driverID, env)
	}
	// Room members that are neither client nor driver (support watching the
	// trip) get it through the room; duplicates to the principals are
	// acceptable, the web clients de-duplicate on message_id.
	d.broker.ToRoom(domain.BookingRoom(bookingID), env, "")
}

// NotifyUser pushes a direct notification to one user's devices.
func (d *Dispatcher) NotifyUser(userID domain.UserID, title, message string) {
	d.broker.ToUser(userID, domain.NewEnvelope(domain.MsgNotificationNew, domain.ChannelNotification, map[string]interface{}{
		"title":   title,
		"message": message,
	}))
}

func (d *Dispatcher) IsIdentityOnline(id domain.UserID) bool {
	return d.presence.IsOnline(id)
}

func (d *Dispatcher) OnlineIdentitiesWithRole(role domain.Role) []domain.UserID {
	return d.presence.OnlineWithRole(role)
}

package services

import (
	"context"
	"fmt"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BookingLifecycle validates and applies booking status transitions. It
// never caches booking state: every transition re-reads the record for role
// checks and then issues a conditional write, so the store's isolation is
// what resolves concurrent attempts.
type BookingLifecycle struct {
	store    ports.BookingStore
	drivers  ports.DriverStore
	dispatch ports.DispatchService
	tracer   trace.Tracer
	metrics  Metrics
	logger   *zap.SugaredLogger
}

func NewBookingLifecycle(store ports.BookingStore, dispatch ports.DispatchService, logger *zap.SugaredLogger) *BookingLifecycle {
	return &BookingLifecycle{
		store:    store,
		dispatch: dispatch,
		tracer:   otel.Tracer("seryvo/lifecycle"),
		metrics:  nopMetrics{},
		logger:   logger,
	}
}

// WithMetrics installs a domain metrics sink and returns the receiver.
func (l *BookingLifecycle) WithMetrics(m Metrics) *BookingLifecycle {
	if m != nil {
		l.metrics = m
	}
	return l
}

// WithDriverProfiles lets assignment broadcasts carry a driver summary.
// Without it the payload falls back to the driver id alone.
func (l *BookingLifecycle) WithDriverProfiles(store ports.DriverStore) *BookingLifecycle {
	l.drivers = store
	return l
}

// CreateBooking persists a new booking in the requested state and records
// the creation event. Offer dispatch is the caller's next step.
func (l *BookingLifecycle) CreateBooking(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	if booking.ID == "" {
		booking.ID = domain.BookingID(uuid.NewString())
	}
	booking.Status = domain.StatusRequested
	booking.DriverID = nil
	booking.CreatedAt = time.Now().UTC()

	if err := l.store.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	event := &domain.BookingEvent{
		BookingID:  booking.ID,
		ActorID:    booking.ClientID,
		FromStatus: "",
		ToStatus:   domain.StatusRequested,
		OccurredAt: booking.CreatedAt,
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		l.logger.Warnw("failed to append creation event", "booking_id", booking.ID, "error", err)
	}

	return booking, nil
}

func (l *BookingLifecycle) GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	return l.store.GetByID(ctx, id)
}

// Transition applies one step of the state machine on behalf of actor.
func (l *BookingLifecycle) Transition(ctx context.Context, id domain.BookingID, actor domain.Identity, to domain.BookingStatus) (*domain.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "booking.transition", trace.WithAttributes(
		attribute.String("booking.id", string(id)),
		attribute.String("booking.to_status", string(to)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	booking, err := l.store.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var updated *domain.Booking
	switch {
	case to == domain.StatusDriverAssigned:
		updated, err = l.accept(ctx, booking, actor)
	case to.IsCancellation():
		// Cancellation variants encode who canceled; accepting them here
		// would let any participant forge the attribution. Cancel derives
		// the variant from the actor instead.
		err = fmt.Errorf("%w: cancellation statuses cannot be set directly", domain.ErrInvalidTransition)
	case domain.CanProgressTo(booking.Status, to):
		updated, err = l.progress(ctx, booking, actor, to)
	default:
		err = fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, booking.Status, to)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return updated, nil
}

// Cancel moves the booking into the cancellation state implied by the actor's
// role and records the reason in the event log.
func (l *BookingLifecycle) Cancel(ctx context.Context, id domain.BookingID, actor domain.Identity, reason string) (*domain.Booking, error) {
	booking, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to := domain.StatusCanceledBySystem
	switch {
	case actor.UserID == booking.ClientID:
		to = domain.StatusCanceledByClient
	case booking.DriverID != nil && actor.UserID == *booking.DriverID:
		to = domain.StatusCanceledByDriver
	}
	return l.cancel(ctx, booking, actor, to, reason)
}

// accept resolves the offer race: the store's conditional claim admits
// exactly one winner regardless of how many drivers race to accept.
func (l *BookingLifecycle) accept(ctx context.Context, booking *domain.Booking, actor domain.Identity) (*domain.Booking, error) {
	if actor.Role != domain.RoleDriver && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only drivers can accept booking offers", domain.ErrForbidden)
	}

	// No status pre-check here: the claim itself is the arbiter, and a
	// stale read would misreport a lost race as a bad transition.
	claimed, err := l.store.ClaimForDriver(ctx, booking.ID, actor.UserID)
	if err != nil {
		return nil, err
	}

	l.appendEvent(ctx, claimed, actor, domain.StatusRequested, domain.StatusDriverAssigned, nil)
	l.metrics.RecordBookingTransition(domain.StatusRequested, domain.StatusDriverAssigned)
	l.logger.Infow("booking claimed",
		"booking_id", claimed.ID,
		"driver_id", actor.UserID,
	)

	payload := map[string]interface{}{
		"status":    string(claimed.Status),
		"driver_id": string(actor.UserID),
	}
	if summary := l.driverSummary(ctx, actor.UserID); summary != nil {
		payload["driver"] = summary
	}
	l.dispatch.BroadcastBookingUpdate(claimed.ID, claimed.ClientID, claimed.DriverID, domain.MsgDriverAssigned, payload)
	return claimed, nil
}

func (l *BookingLifecycle) progress(ctx context.Context, booking *domain.Booking, actor domain.Identity, to domain.BookingStatus) (*domain.Booking, error) {
	isAssigned := booking.DriverID != nil && *booking.DriverID == actor.UserID
	if !isAssigned && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only the assigned driver can update trip status", domain.ErrForbidden)
	}

	from := booking.Status
	updated, err := l.store.AdvanceStatus(ctx, booking.ID, from, to)
	if err != nil {
		return nil, err
	}

	l.appendEvent(ctx, updated, actor, from, to, nil)
	l.metrics.RecordBookingTransition(from, to)

	msgType := domain.MsgBookingStatusChanged
	if to == domain.StatusDriverArrived {
		msgType = domain.MsgDriverArrived
	}
	l.dispatch.BroadcastBookingUpdate(updated.ID, updated.ClientID, updated.DriverID, msgType, map[string]interface{}{
		"status":          string(to),
		"previous_status": string(from),
		"updated_at":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	return updated, nil
}

func (l *BookingLifecycle) cancel(ctx context.Context, booking *domain.Booking, actor domain.Identity, to domain.BookingStatus, reason string) (*domain.Booking, error) {
	isParticipant := actor.UserID == booking.ClientID ||
		(booking.DriverID != nil && actor.UserID == *booking.DriverID)
	if !isParticipant && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: not authorized to cancel this booking", domain.ErrForbidden)
	}
	if booking.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: booking is already %s", domain.ErrInvalidTransition, booking.Status)
	}

	from := booking.Status
	updated, err := l.store.Cancel(ctx, booking.ID, to)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{}
	if reason != "" {
		metadata["reason"] = reason
	}
	l.appendEvent(ctx, updated, actor, from, to, metadata)
	l.metrics.RecordBookingTransition(from, to)
	l.logger.Infow("booking cancelled",
		"booking_id", updated.ID,
		"to_status", to,
		"actor_id", actor.UserID,
	)

	payload := map[string]interface{}{
		"status":       string(to),
		"cancelled_by": string(actor.UserID),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if updated.CanceledAt != nil {
		payload["cancelled_at"] = updated.CanceledAt.UTC().Format(time.RFC3339Nano)
	}
	l.dispatch.BroadcastBookingUpdate(updated.ID, updated.ClientID, updated.DriverID, domain.MsgBookingCancelled, payload)
	return updated, nil
}

// driverSummary builds the client-facing driver blob for assignment
// notifications. Profile lookup failures degrade to no summary.
func (l *BookingLifecycle) driverSummary(ctx context.Context, driverID domain.UserID) map[string]interface{} {
	if l.drivers == nil {
		return nil
	}
	profile, err := l.drivers.GetProfile(ctx, driverID)
	if err != nil {
		l.logger.Debugw("driver profile unavailable for assignment broadcast",
			"driver_id", driverID, "error", err)
		return nil
	}

	summary := map[string]interface{}{
		"id": string(profile.UserID),
	}
	if profile.Name != "" {
		summary["name"] = profile.Name
	}
	if profile.Phone != "" {
		summary["phone"] = profile.Phone
	}
	if profile.Vehicle != nil {
		summary["vehicle"] = map[string]interface{}{
			"make":          profile.Vehicle.Make,
			"model":         profile.Vehicle.Model,
			"color":         profile.Vehicle.Color,
			"license_plate": profile.Vehicle.LicensePlate,
		}
	}
	return summary
}

// appendEvent writes one audit record. Event log failures are logged, never
// propagated: the transition already committed.
func (l *BookingLifecycle) appendEvent(ctx context.Context, booking *domain.Booking, actor domain.Identity, from, to domain.BookingStatus, metadata map[string]string) {
	event := &domain.BookingEvent{
		BookingID:  booking.ID,
		ActorID:    actor.UserID,
		FromStatus: from,
		ToStatus:   to,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		l.logger.Errorw("failed to append booking event",
			"booking_id", booking.ID,
			"to_status", to,
			"error", err,
		)
	}
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Conditional writes run as Lua scripts so the check and the write are one
// atomic step on the Redis side. Each script returns 1 on success, 0 when the
// precondition failed, and -1 when the booking hash does not exist.
var (
	claimScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local status = redis.call("HGET", KEYS[1], "status")
local driver = redis.call("HGET", KEYS[1], "driver_id")
if status ~= "requested" or (driver and driver ~= "") then
  return 0
end
redis.call("HSET", KEYS[1], "driver_id", ARGV[1], "status", "driver_assigned", "accepted_at", ARGV[2])
return 1
`)

	advanceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "status") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2])
if ARGV[3] ~= "" then
  redis.call("HSET", KEYS[1], ARGV[3], ARGV[4])
end
return 1
`)

	cancelScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local status = redis.call("HGET", KEYS[1], "status")
local terminal = {
  ["completed"]=true, ["canceled_by_client"]=true, ["canceled_by_driver"]=true,
  ["canceled_by_system"]=true, ["no_show_client"]=true, ["no_show_driver"]=true,
}
if terminal[status] then
  return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[1], "canceled_at", ARGV[2])
return 1
`)
)

type RedisBookingStore struct {
	client *redis.Client
	prefix string
}

func NewRedisBookingStore(client *redis.Client) ports.BookingStore {
	return &RedisBookingStore{
		client: client,
		prefix: "seryvo:booking:",
	}
}

func (r *RedisBookingStore) bookingKey(id domain.BookingID) string {
	return r.prefix + string(id)
}

func (r *RedisBookingStore) eventsKey(id domain.BookingID) string {
	return r.prefix + string(id) + ":events"
}

func (r *RedisBookingStore) Create(ctx context.Context, booking *domain.Booking) error {
	fields := bookingToFields(booking)
	if err := r.client.HSet(ctx, r.bookingKey(booking.ID), fields).Err(); err != nil {
		return fmt.Errorf("failed to set booking in Redis: %w", err)
	}
	return nil
}

func (r *RedisBookingStore) GetByID(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	fields, err := r.client.HGetAll(ctx, r.bookingKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrBookingNotFound
	}
	return bookingFromFields(fields)
}

func (r *RedisBookingStore) ClaimForDriver(ctx context.Context, id domain.BookingID, driverID domain.UserID) (*domain.Booking, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := claimScript.Run(ctx, r.client, []string{r.bookingKey(id)}, string(driverID), now).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to claim booking in Redis: %w", err)
	}
	switch res {
	case -1:
		return nil, domain.ErrBookingNotFound
	case 0:
		return nil, domain.ErrBookingClaimed
	}
	return r.GetByID(ctx, id)
}

func (r *RedisBookingStore) AdvanceStatus(ctx context.Context, id domain.BookingID, from, to domain.BookingStatus) (*domain.Booking, error) {
	// Side timestamps ride along in the same script invocation.
	tsField, tsValue := "", ""
	switch to {
	case domain.StatusInProgress:
		tsField, tsValue = "started_at", time.Now().UTC().Format(time.RFC3339Nano)
	case domain.StatusCompleted:
		tsField, tsValue = "completed_at", time.Now().UTC().Format(time.RFC3339Nano)
	}

	res, err := advanceScript.Run(ctx, r.client, []string{r.bookingKey(id)}, string(from), string(to), tsField, tsValue).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to advance booking in Redis: %w", err)
	}
	switch res {
	case -1:
		return nil, domain.ErrBookingNotFound
	case 0:
		return nil, domain.ErrInvalidTransition
	}
	return r.GetByID(ctx, id)
}

func (r *RedisBookingStore) Cancel(ctx context.Context, id domain.BookingID, to domain.BookingStatus) (*domain.Booking, error) {
	if !to.IsCancellation() {
		return nil, domain.ErrInvalidTransition
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := cancelScript.Run(ctx, r.client, []string{r.bookingKey(id)}, string(to), now).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking in Redis: %w", err)
	}
	switch res {
	case -1:
		return nil, domain.ErrBookingNotFound
	case 0:
		return nil, domain.ErrInvalidTransition
	}
	return r.GetByID(ctx, id)
}

func (r *RedisBookingStore) AppendEvent(ctx context.Context, event *domain.BookingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}
	if err := r.client.RPush(ctx, r.eventsKey(event.BookingID), data).Err(); err != nil {
		return fmt.Errorf("failed to append booking event in Redis: %w", err)
	}
	return nil
}

func (r *RedisBookingStore) ListEvents(ctx context.Context, id domain.BookingID) ([]*domain.BookingEvent, error) {
	raw, err := r.client.LRange(ctx, r.eventsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list booking events from Redis: %w", err)
	}

	events := make([]*domain.BookingEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.BookingEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal booking event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

func bookingToFields(b *domain.Booking) map[string]interface{} {
	fields := map[string]interface{}{
		"id":              string(b.ID),
		"client_id":       string(b.ClientID),
		"status":          string(b.Status),
		"pickup_address":  b.PickupAddress,
		"dropoff_address": b.DropoffAddress,
		"pickup_lat":      strconv.FormatFloat(b.PickupLat, 'f', -1, 64),
		"pickup_lng":      strconv.FormatFloat(b.PickupLng, 'f', -1, 64),
		"dropoff_lat":     strconv.FormatFloat(b.DropoffLat, 'f', -1, 64),
		"dropoff_lng":     strconv.FormatFloat(b.DropoffLng, 'f', -1, 64),
		"fare_estimate":   strconv.FormatFloat(b.FareEstimate, 'f', -1, 64),
		"created_at":      b.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if b.DriverID != nil {
		fields["driver_id"] = string(*b.DriverID)
	}
	if b.AcceptedAt != nil {
		fields["accepted_at"] = b.AcceptedAt.UTC().Format(time.RFC3339Nano)
	}
	if b.StartedAt != nil {
		fields["started_at"] = b.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if b.CompletedAt != nil {
		fields["completed_at"] = b.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if b.CanceledAt != nil {
		fields["canceled_at"] = b.CanceledAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func bookingFromFields(fields map[string]string) (*domain.Booking, error) {
	b := &domain.Booking{
		ID:             domain.BookingID(fields["id"]),
		ClientID:       domain.UserID(fields["client_id"]),
		Status:         domain.BookingStatus(fields["status"]),
		PickupAddress:  fields["pickup_address"],
		DropoffAddress: fields["dropoff_address"],
	}
	if v := fields["driver_id"]; v != "" {
		id := domain.UserID(v)
		b.DriverID = &id
	}

	var err error
	if b.PickupLat, err = parseFloatField(fields, "pickup_lat"); err != nil {
		return nil, err
	}
	if b.PickupLng, err = parseFloatField(fields, "pickup_lng"); err != nil {
		return nil, err
	}
	if b.DropoffLat, err = parseFloatField(fields, "dropoff_lat"); err != nil {
		return nil, err
	}
	if b.DropoffLng, err = parseFloatField(fields, "dropoff_lng"); err != nil {
		return nil, err
	}
	if b.FareEstimate, err = parseFloatField(fields, "fare_estimate"); err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTimeField(fields, "created_at"); err != nil {
		return nil, err
	}
	for field, dst := range map[string]**time.Time{
		"accepted_at":  &b.AcceptedAt,
		"started_at":   &b.StartedAt,
		"completed_at": &b.CompletedAt,
		"canceled_at":  &b.CanceledAt,
	} {
		if fields[field] == "" {
			continue
		}
		t, err := parseTimeField(fields, field)
		if err != nil {
			return nil, err
		}
		*dst = &t
	}
	return b, nil
}

func parseFloatField(fields map[string]string, name string) (float64, error) {
	v := fields[name]
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse booking field %s: %w", name, err)
	}
	return f, nil
}

func parseTimeField(fields map[string]string, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, fields[name])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse booking field %s: %w", name, err)
	}
	return t, nil
}

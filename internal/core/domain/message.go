package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a coarse, role-oriented broadcast group.
type Channel string

const (
	ChannelBooking        Channel = "booking"
	ChannelDriverLocation Channel = "driver_location"
	ChannelChat           Channel = "chat"
	ChannelNotification   Channel = "notification"
	ChannelAdmin          Channel = "admin"
)

// Channels lists every channel; the registry seeds its subscription table
// from this.
func Channels() []Channel {
	return []Channel{
		ChannelBooking,
		ChannelDriverLocation,
		ChannelChat,
		ChannelNotification,
		ChannelAdmin,
	}
}

// Valid reports whether the channel name is known.
func (c Channel) Valid() bool {
	switch c {
	case ChannelBooking, ChannelDriverLocation, ChannelChat, ChannelNotification, ChannelAdmin:
		return true
	}
	return false
}

// MessageType tags an envelope in either direction.
type MessageType string

const (
	// Connection management
	MsgConnect MessageType = "connect"
	MsgPing    MessageType = "ping"
	MsgPong    MessageType = "pong"
	MsgError   MessageType = "error"

	// Subscription management (client to server)
	MsgSubscribe   MessageType = "subscribe"
	MsgUnsubscribe MessageType = "unsubscribe"

	// Booking events
	MsgBookingCreated       MessageType = "booking_created"
	MsgBookingStatusChanged MessageType = "booking_status_changed"
	MsgBookingCancelled     MessageType = "booking_cancelled"

	// Driver events
	MsgDriverLocationUpdate MessageType = "driver_location_update"
	MsgDriverAssigned       MessageType = "driver_assigned"
	MsgDriverArrived        MessageType = "driver_arrived"

	// Chat events
	MsgChatMessage MessageType = "chat_message"
	MsgChatTyping  MessageType = "chat_typing"

	// Notification events
	MsgNotificationNew  MessageType = "notification_new"
	MsgNewSupportTicket MessageType = "new_support_ticket"
)

// Envelope is the wire format for every message in both directions.
type Envelope struct {
	Type      MessageType            `json:"type"`
	Channel   Channel                `json:"channel"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp string                 `json:"timestamp"`
	MessageID string                 `json:"message_id"`
}

// NewEnvelope builds an outbound envelope with a fresh message id and an
// RFC 3339 UTC timestamp.
func NewEnvelope(msgType MessageType, channel Channel, payload map[string]interface{}) Envelope {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return Envelope{
		Type:      msgType,
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		MessageID: uuid.NewString(),
	}
}

// BookingRoom names the ad-hoc room scoped to one booking.
func BookingRoom(id BookingID) string {
	return "booking:" + string(id)
}

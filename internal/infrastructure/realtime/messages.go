package realtime

import (
	"encoding/json"
	"fmt"

	"seryvo/internal/core/domain"
)

// ClientMessage is the closed set of messages a client may send. Decoding
// produces exactly one of the concrete types below; handlers switch over them
// exhaustively, so adding a type is a compile-visible change instead of a new
// string branch.
type ClientMessage interface {
	clientMessage()
}

// PingMessage requests a pong reply.
type PingMessage struct{}

// SubscribeMessage subscribes to a channel and/or joins a room.
type SubscribeMessage struct {
	Channel domain.Channel
	RoomID  string
}

// UnsubscribeMessage unsubscribes from a channel and/or leaves a room.
type UnsubscribeMessage struct {
	Channel domain.Channel
	RoomID  string
}

// LocationUpdateMessage carries a driver GPS fix. Driver role only.
type LocationUpdateMessage struct {
	Lat     float64
	Lng     float64
	Heading *float64
	Speed   *float64
	RoomID  string
}

// ChatMessage carries a chat line for a room.
type ChatMessage struct {
	RoomID string
	Text   string
}

// ChatTypingMessage carries a typing indicator for a room.
type ChatTypingMessage struct {
	RoomID   string
	IsTyping bool
}

func (PingMessage) clientMessage()           {}
func (SubscribeMessage) clientMessage()      {}
func (UnsubscribeMessage) clientMessage()    {}
func (LocationUpdateMessage) clientMessage() {}
func (ChatMessage) clientMessage()           {}
func (ChatTypingMessage) clientMessage()     {}

// UnknownMessageTypeError reports an inbound type outside the closed set.
// The connection stays open; the sender gets an error envelope.
type UnknownMessageTypeError struct {
	Type string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type: %s", e.Type)
}

type rawEnvelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeClientMessage parses one inbound frame into a ClientMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}

	switch domain.MessageType(raw.Type) {
	case domain.MsgPing:
		return PingMessage{}, nil

	case domain.MsgSubscribe, domain.MsgUnsubscribe:
		var payload struct {
			RoomID string `json:"room_id"`
		}
		if len(raw.Payload) > 0 {
			if err := json.Unmarshal(raw.Payload, &payload); err != nil {
				return nil, fmt.Errorf("invalid %s payload: %w", raw.Type, err)
			}
		}
		if domain.MessageType(raw.Type) == domain.MsgSubscribe {
			return SubscribeMessage{Channel: domain.Channel(raw.Channel), RoomID: payload.RoomID}, nil
		}
		return UnsubscribeMessage{Channel: domain.Channel(raw.Channel), RoomID: payload.RoomID}, nil

	case domain.MsgDriverLocationUpdate:
		var payload struct {
			Lat     *float64 `json:"lat"`
			Lng     *float64 `json:"lng"`
			Heading *float64 `json:"heading"`
			Speed   *float64 `json:"speed"`
			RoomID  string   `json:"room_id"`
		}
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid driver_location_update payload: %w", err)
		}
		if payload.Lat == nil || payload.Lng == nil {
			return nil, fmt.Errorf("driver_location_update requires lat and lng")
		}
		return LocationUpdateMessage{
			Lat:     *payload.Lat,
			Lng:     *payload.Lng,
			Heading: payload.Heading,
			Speed:   payload.Speed,
			RoomID:  payload.RoomID,
		}, nil

	case domain.MsgChatMessage:
		var payload struct {
			RoomID  string `json:"room_id"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid chat_message payload: %w", err)
		}
		if payload.RoomID == "" {
			return nil, fmt.Errorf("chat_message requires room_id")
		}
		return ChatMessage{RoomID: payload.RoomID, Text: payload.Message}, nil

	case domain.MsgChatTyping:
		var payload struct {
			RoomID   string `json:"room_id"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid chat_typing payload: %w", err)
		}
		if payload.RoomID == "" {
			return nil, fmt.Errorf("chat_typing requires room_id")
		}
		return ChatTypingMessage{RoomID: payload.RoomID, IsTyping: payload.IsTyping}, nil

	default:
		return nil, &UnknownMessageTypeError{Type: raw.Type}
	}
}

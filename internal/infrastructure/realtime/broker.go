package realtime

import (
	"seryvo/internal/core/domain"

	"go.uber.org/zap"
)

// Metrics is the slice of the monitoring surface the realtime layer feeds.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageReceived(msgType string)
	DeliveryAttempted()
	DeliveryFailed()
}

// NopMetrics satisfies Metrics without recording anything.
type NopMetrics struct{}

func (NopMetrics) ConnectionOpened()      {}
func (NopMetrics) ConnectionClosed()      {}
func (NopMetrics) MessageReceived(string) {}
func (NopMetrics) DeliveryAttempted()     {}
func (NopMetrics) DeliveryFailed()        {}

// Broker fans envelopes out over the registry's routing tables. Delivery is
// best-effort and at-most-once: a failed send is logged, the dead connection
// is reaped, and the remaining targets still get the message. Nothing is
// queued, acknowledged or retried.
type Broker struct {
	registry *Registry
	metrics  Metrics
	logger   *zap.SugaredLogger
}

func NewBroker(registry *Registry, metrics Metrics, logger *zap.SugaredLogger) *Broker {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Broker{registry: registry, metrics: metrics, logger: logger}
}

// ToUser delivers to every live connection owned by the user.
func (b *Broker) ToUser(userID domain.UserID, env domain.Envelope) {
	for _, conn := range b.registry.connectionsOf(userID) {
		b.send(conn, env)
	}
}

// ToRoom delivers to every member of the room except the excluded sender.
func (b *Broker) ToRoom(roomID string, env domain.Envelope, exclude domain.UserID) {
	for _, userID := range b.registry.roomMembers(roomID) {
		if userID == exclude {
			continue
		}
		b.ToUser(userID, env)
	}
}

// ToChannel delivers to every subscriber of the channel except the excluded
// sender.
func (b *Broker) ToChannel(channel domain.Channel, env domain.Envelope, exclude domain.UserID) {
	for _, userID := range b.registry.channelSubscribers(channel) {
		if userID == exclude {
			continue
		}
		b.ToUser(userID, env)
	}
}

// ToRole delivers to every online user holding the role.
func (b *Broker) ToRole(role domain.Role, env domain.Envelope, exclude domain.UserID) {
	for _, userID := range b.registry.OnlineWithRole(role) {
		if userID == exclude {
			continue
		}
		b.ToUser(userID, env)
	}
}

// ToAll delivers to every online user.
func (b *Broker) ToAll(env domain.Envelope, exclude domain.UserID) {
	for _, userID := range b.registry.OnlineUsers() {
		if userID == exclude {
			continue
		}
		b.ToUser(userID, env)
	}
}

func (b *Broker) send(conn *Connection, env domain.Envelope) {
	b.metrics.DeliveryAttempted()
	if err := conn.Send(env); err != nil {
		b.metrics.DeliveryFailed()
		b.logger.Warnw("delivery failed, reaping connection",
			"user_id", conn.UserID(),
			"message_type", env.Type,
			"error", err,
		)
		b.registry.Disconnect(conn)
	}
}

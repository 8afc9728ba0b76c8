package realtime

import (
	"sync"
	"time"

	"seryvo/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender writes one envelope to a live transport connection. Implementations
// must be safe for concurrent use; the broker sends from multiple goroutines.
type Sender interface {
	Send(env domain.Envelope) error
}

// Connection is the handle returned by Registry.Connect. One user may hold
// several handles at once (multi-device).
type Connection struct {
	id          uuid.UUID
	userID      domain.UserID
	role        domain.Role
	connectedAt time.Time
	sender      Sender
}

func (c *Connection) UserID() domain.UserID   { return c.userID }
func (c *Connection) Role() domain.Role       { return c.role }
func (c *Connection) ConnectedAt() time.Time  { return c.connectedAt }
func (c *Connection) Send(env domain.Envelope) error { return c.sender.Send(env) }

// Registry tracks live connections per user, their roles, and channel/room
// membership. It exclusively owns this state for the process lifetime: all
// mutations go through its single mutex, and readers for broadcast copy a
// snapshot out before any network I/O happens.
type Registry struct {
	mu sync.RWMutex

	connections map[domain.UserID]map[uuid.UUID]*Connection
	roles       map[domain.UserID]domain.Role
	channels    map[domain.Channel]map[domain.UserID]struct{}
	rooms       map[string]map[domain.UserID]struct{}

	logger *zap.SugaredLogger
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	channels := make(map[domain.Channel]map[domain.UserID]struct{}, len(domain.Channels()))
	for _, ch := range domain.Channels() {
		channels[ch] = make(map[domain.UserID]struct{})
	}
	return &Registry{
		connections: make(map[domain.UserID]map[uuid.UUID]*Connection),
		roles:       make(map[domain.UserID]domain.Role),
		channels:    channels,
		rooms:       make(map[string]map[domain.UserID]struct{}),
		logger:      logger,
	}
}

// Connect registers a new live connection. The user's first connection also
// initializes their membership sets and auto-subscribes role defaults:
// everyone gets "notification", drivers get "driver_location", admins get
// "admin". Each call always creates a new handle.
func (r *Registry) Connect(userID domain.UserID, role domain.Role, sender Sender) *Connection {
	conn := &Connection{
		id:          uuid.New(),
		userID:      userID,
		role:        role,
		connectedAt: time.Now(),
		sender:      sender,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conns, online := r.connections[userID]
	if !online {
		conns = make(map[uuid.UUID]*Connection)
		r.connections[userID] = conns
		r.roles[userID] = role

		r.channels[domain.ChannelNotification][userID] = struct{}{}
		switch role {
		case domain.RoleDriver:
			r.channels[domain.ChannelDriverLocation][userID] = struct{}{}
		case domain.RoleAdmin:
			r.channels[domain.ChannelAdmin][userID] = struct{}{}
		}
	}
	conns[conn.id] = conn

	r.logger.Infow("connection registered",
		"user_id", userID,
		"role", role,
		"devices", len(conns),
	)
	return conn
}

// Disconnect removes the handle. When it was the user's last connection their
// channel and room memberships are discarded atomically: nothing survives a
// fully-offline user.
func (r *Registry) Disconnect(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.connections[conn.userID]
	if !ok {
		return
	}
	delete(conns, conn.id)
	if len(conns) > 0 {
		r.logger.Infow("connection closed", "user_id", conn.userID, "devices", len(conns))
		return
	}

	delete(r.connections, conn.userID)
	delete(r.roles, conn.userID)
	for _, subscribers := range r.channels {
		delete(subscribers, conn.userID)
	}
	for roomID, members := range r.rooms {
		delete(members, conn.userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}

	r.logger.Infow("user offline, memberships discarded", "user_id", conn.userID)
}

// Subscribe adds the user to a named channel. Unknown channels are ignored.
func (r *Registry) Subscribe(userID domain.UserID, channel domain.Channel) {
	if !channel.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel][userID] = struct{}{}
}

// Unsubscribe removes the user from a named channel.
func (r *Registry) Unsubscribe(userID domain.UserID, channel domain.Channel) {
	if !channel.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels[channel], userID)
}

// JoinRoom adds the user to an ad-hoc room, creating it on first join.
func (r *Registry) JoinRoom(userID domain.UserID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[domain.UserID]struct{})
		r.rooms[roomID] = members
	}
	members[userID] = struct{}{}
}

// LeaveRoom removes the user from a room; the last member leaving deletes the
// room entry.
func (r *Registry) LeaveRoom(userID domain.UserID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[userID]) > 0
}

// OnlineWithRole returns every online user whose connection role matches.
func (r *Registry) OnlineWithRole(role domain.Role) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []domain.UserID
	for userID, userRole := range r.roles {
		if userRole == role {
			ids = append(ids, userID)
		}
	}
	return ids
}

// OnlineUsers returns every online user id.
func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.UserID, 0, len(r.connections))
	for userID := range r.connections {
		ids = append(ids, userID)
	}
	return ids
}

// ConnectionCount returns the total number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conns := range r.connections {
		n += len(conns)
	}
	return n
}

// connectionsOf copies the user's current connection handles. The broker
// sends on the copy after the lock is released.
func (r *Registry) connectionsOf(userID domain.UserID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.connections[userID]
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// roomMembers copies the member set of a room.
func (r *Registry) roomMembers(roomID string) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]domain.UserID, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	return out
}

// channelSubscribers copies the subscriber set of a channel.
func (r *Registry) channelSubscribers(channel domain.Channel) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscribers := r.channels[channel]
	out := make([]domain.UserID, 0, len(subscribers))
	for userID := range subscribers {
		out = append(out, userID)
	}
	return out
}

// RoomMemberships reports whether the user is in the given room.
func (r *Registry) InRoom(userID domain.UserID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][userID]
	return ok
}

// SubscribedTo reports whether the user is subscribed to the channel.
func (r *Registry) SubscribedTo(userID domain.UserID, channel domain.Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[channel][userID]
	return ok
}

// ChannelSizes returns subscriber counts per channel for the status surface.
func (r *Registry) ChannelSizes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sizes := make(map[string]int, len(r.channels))
	for ch, subscribers := range r.channels {
		sizes[string(ch)] = len(subscribers)
	}
	return sizes
}

// RoomSizes returns member counts per room for the status surface.
func (r *Registry) RoomSizes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sizes := make(map[string]int, len(r.rooms))
	for roomID, members := range r.rooms {
		sizes[roomID] = len(members)
	}
	return sizes
}

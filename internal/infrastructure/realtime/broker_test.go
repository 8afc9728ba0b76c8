package realtime

import (
	"errors"
	"testing"

	"seryvo/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBroker(t *testing.T) (*Broker, *Registry) {
	registry := newTestRegistry(t)
	broker := NewBroker(registry, nil, zaptest.NewLogger(t).Sugar())
	return broker, registry
}

func envelopeOf(t domain.MessageType) domain.Envelope {
	return domain.NewEnvelope(t, domain.ChannelNotification, map[string]interface{}{"k": "v"})
}

func TestToUser_FansOutToEveryDevice(t *testing.T) {
	broker, registry := newTestBroker(t)

	dev1 := &fakeSender{}
	dev2 := &fakeSender{}
	other := &fakeSender{}
	registry.Connect("u1", domain.RoleClient, dev1)
	registry.Connect("u1", domain.RoleClient, dev2)
	registry.Connect("u2", domain.RoleClient, other)

	broker.ToUser("u1", envelopeOf(domain.MsgNotificationNew))

	assert.Len(t, dev1.received(), 1)
	assert.Len(t, dev2.received(), 1)
	assert.Empty(t, other.received(), "unrelated user must not receive")
}

func TestToRoom_ExcludesSenderAndOutsiders(t *testing.T) {
	broker, registry := newTestBroker(t)

	client := &fakeSender{}
	driver := &fakeSender{}
	outsider := &fakeSender{}
	registry.Connect("c1", domain.RoleClient, client)
	registry.Connect("d1", domain.RoleDriver, driver)
	registry.Connect("e1", domain.RoleClient, outsider)

	registry.JoinRoom("c1", "booking:42")
	registry.JoinRoom("d1", "booking:42")

	broker.ToRoom("booking:42", envelopeOf(domain.MsgDriverLocationUpdate), "d1")

	assert.Len(t, client.received(), 1)
	assert.Empty(t, driver.received(), "sender must be excluded")
	assert.Empty(t, outsider.received(), "non-member must not receive")
}

func TestToChannel_OnlySubscribers(t *testing.T) {
	broker, registry := newTestBroker(t)

	subscribed := &fakeSender{}
	unsubscribed := &fakeSender{}
	registry.Connect("u1", domain.RoleClient, subscribed)
	registry.Connect("u2", domain.RoleClient, unsubscribed)
	registry.Subscribe("u1", domain.ChannelBooking)

	broker.ToChannel(domain.ChannelBooking, envelopeOf(domain.MsgBookingStatusChanged), "")

	assert.Len(t, subscribed.received(), 1)
	assert.Empty(t, unsubscribed.received())
}

func TestToRole_MatchesRoleOnly(t *testing.T) {
	broker, registry := newTestBroker(t)

	admin := &fakeSender{}
	driver := &fakeSender{}
	registry.Connect("a1", domain.RoleAdmin, admin)
	registry.Connect("d1", domain.RoleDriver, driver)

	broker.ToRole(domain.RoleAdmin, envelopeOf(domain.MsgNewSupportTicket), "")

	assert.Len(t, admin.received(), 1)
	assert.Empty(t, driver.received())
}

func TestToAll_WithExclusion(t *testing.T) {
	broker, registry := newTestBroker(t)

	u1 := &fakeSender{}
	u2 := &fakeSender{}
	registry.Connect("u1", domain.RoleClient, u1)
	registry.Connect("u2", domain.RoleClient, u2)

	broker.ToAll(envelopeOf(domain.MsgNotificationNew), "u1")

	assert.Empty(t, u1.received())
	assert.Len(t, u2.received(), 1)
}

func TestSendFailure_ReapsConnectionAndContinues(t *testing.T) {
	broker, registry := newTestBroker(t)

	dead := &fakeSender{fail: errors.New("broken pipe")}
	alive := &fakeSender{}
	registry.Connect("u1", domain.RoleClient, dead)
	registry.Connect("u2", domain.RoleClient, alive)

	broker.ToAll(envelopeOf(domain.MsgNotificationNew), "")

	// The healthy target still got the message.
	require.Len(t, alive.received(), 1)
	// The dead connection was u1's only one, so the user is now offline.
	assert.False(t, registry.IsOnline("u1"))
	assert.True(t, registry.IsOnline("u2"))
}

func TestSendFailure_OtherDeviceSurvives(t *testing.T) {
	broker, registry := newTestBroker(t)

	dead := &fakeSender{fail: errors.New("closed")}
	alive := &fakeSender{}
	registry.Connect("u1", domain.RoleClient, dead)
	registry.Connect("u1", domain.RoleClient, alive)

	broker.ToUser("u1", envelopeOf(domain.MsgNotificationNew))

	assert.Len(t, alive.received(), 1)
	assert.True(t, registry.IsOnline("u1"), "user keeps their healthy device")
	assert.Equal(t, 1, registry.ConnectionCount())
}

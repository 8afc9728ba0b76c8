package realtime

import (
	"net/http"
	"sync"
	"time"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"
	"seryvo/pkg/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server owns the realtime transport endpoint: it authenticates handshakes,
// registers connections with the presence registry and pumps inbound client
// messages into the broker.
type Server struct {
	registry *Registry
	broker   *Broker
	verifier ports.TokenVerifier
	metrics  Metrics

	pingInterval time.Duration
	pongTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	messagesPerSecond rate.Limit
	messageBurst      int
	maxMessageSize    int64

	logger *zap.SugaredLogger
}

func NewServer(
	registry *Registry,
	broker *Broker,
	verifier ports.TokenVerifier,
	metrics Metrics,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *Server {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	s := &Server{
		registry:     registry,
		broker:       broker,
		verifier:     verifier,
		metrics:      metrics,
		pingInterval: cfg.Realtime.PingInterval,
		pongTimeout:  cfg.Realtime.PongTimeout,
		readTimeout:  cfg.Realtime.ReadTimeout,
		writeTimeout: cfg.Realtime.WriteTimeout,
		logger:       logger,
	}
	if cfg.RateLimiting.Enabled {
		s.messagesPerSecond = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.messageBurst = cfg.RateLimiting.WebSocket.Burst
		s.maxMessageSize = cfg.RateLimiting.WebSocket.MaxMessageSizeBytes
	}
	return s
}

// wsSender serializes writes to one gorilla connection. The websocket package
// allows only one concurrent writer.
type wsSender struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (s *wsSender) Send(env domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteJSON(env)
}

func (s *wsSender) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// HandleWebSocket upgrades the request and runs the connection until it
// closes. A missing or invalid token closes the socket with a policy
// violation code before anything is registered.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer wsConn.Close()

	identity, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warnw("handshake rejected", "error", err)
		deadline := time.Now().Add(s.writeTimeout)
		wsConn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			deadline,
		)
		return
	}

	sender := &wsSender{conn: wsConn, writeTimeout: s.writeTimeout}
	conn := s.registry.Connect(identity.UserID, identity.Role, sender)
	s.metrics.ConnectionOpened()

	// Handshake ack
	sender.Send(domain.NewEnvelope(domain.MsgConnect, domain.ChannelNotification, map[string]interface{}{
		"status":  "connected",
		"user_id": string(identity.UserID),
	}))

	if s.maxMessageSize > 0 {
		wsConn.SetReadLimit(s.maxMessageSize)
	}
	wsConn.SetReadDeadline(time.Now().Add(s.readTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	var limiter *rate.Limiter
	if s.messagesPerSecond > 0 {
		limiter = rate.NewLimiter(s.messagesPerSecond, s.messageBurst)
	}

	frameChan := make(chan []byte, 10)
	errorChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go s.readFrames(wsConn, frameChan, errorChan, done)

	for {
		select {
		case data := <-frameChan:
			if limiter != nil && !limiter.Allow() {
				s.sendError(sender, "message rate limit exceeded")
				continue
			}
			s.handleFrame(conn, sender, data)

		case <-pingTicker.C:
			if err := sender.ping(); err != nil {
				s.logger.Infow("error sending ping", "user_id", identity.UserID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message", "user_id", identity.UserID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.registry.Disconnect(conn)
	s.metrics.ConnectionClosed()
	s.logger.Infow("user disconnected", "user_id", identity.UserID)
}

// readFrames pumps inbound frames into frames until the read fails or done
// closes. Every send selects against done so the goroutine never stays
// parked on a full channel after the connection loop has exited.
func (s *Server) readFrames(wsConn *websocket.Conn, frames chan<- []byte, errs chan<- error, done <-chan struct{}) {
	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			select {
			case errs <- err:
			case <-done:
			}
			return
		}
		wsConn.SetReadDeadline(time.Now().Add(s.readTimeout))
		select {
		case frames <- data:
		case <-done:
			return
		}
	}
}

func (s *Server) handleFrame(conn *Connection, sender *wsSender, data []byte) {
	msg, err := DecodeClientMessage(data)
	if err != nil {
		s.logger.Infow("rejected client frame", "user_id", conn.UserID(), "error", err)
		s.sendError(sender, err.Error())
		return
	}

	switch m := msg.(type) {
	case PingMessage:
		s.metrics.MessageReceived(string(domain.MsgPing))
		sender.Send(domain.NewEnvelope(domain.MsgPong, domain.ChannelNotification, nil))

	case SubscribeMessage:
		s.metrics.MessageReceived(string(domain.MsgSubscribe))
		if m.Channel.Valid() {
			s.registry.Subscribe(conn.UserID(), m.Channel)
		}
		if m.RoomID != "" {
			s.registry.JoinRoom(conn.UserID(), m.RoomID)
		}

	case UnsubscribeMessage:
		s.metrics.MessageReceived(string(domain.MsgUnsubscribe))
		if m.Channel.Valid() {
			s.registry.Unsubscribe(conn.UserID(), m.Channel)
		}
		if m.RoomID != "" {
			s.registry.LeaveRoom(conn.UserID(), m.RoomID)
		}

	case LocationUpdateMessage:
		s.metrics.MessageReceived(string(domain.MsgDriverLocationUpdate))
		if conn.Role() != domain.RoleDriver {
			s.sendError(sender, "only drivers may send location updates")
			return
		}
		payload := map[string]interface{}{
			"driver_id": string(conn.UserID()),
			"lat":       m.Lat,
			"lng":       m.Lng,
		}
		if m.Heading != nil {
			payload["heading"] = *m.Heading
		}
		if m.Speed != nil {
			payload["speed"] = *m.Speed
		}
		env := domain.NewEnvelope(domain.MsgDriverLocationUpdate, domain.ChannelDriverLocation, payload)
		if m.RoomID != "" {
			s.broker.ToRoom(m.RoomID, env, conn.UserID())
		} else {
			s.broker.ToChannel(domain.ChannelDriverLocation, env, conn.UserID())
		}

	case ChatMessage:
		s.metrics.MessageReceived(string(domain.MsgChatMessage))
		env := domain.NewEnvelope(domain.MsgChatMessage, domain.ChannelChat, map[string]interface{}{
			"sender_id":   string(conn.UserID()),
			"sender_role": string(conn.Role()),
			"message":     m.Text,
			"room_id":     m.RoomID,
		})
		// Sender included: chat echoes back to all devices.
		s.broker.ToRoom(m.RoomID, env, "")

	case ChatTypingMessage:
		s.metrics.MessageReceived(string(domain.MsgChatTyping))
		env := domain.NewEnvelope(domain.MsgChatTyping, domain.ChannelChat, map[string]interface{}{
			"sender_id": string(conn.UserID()),
			"is_typing": m.IsTyping,
			"room_id":   m.RoomID,
		})
		s.broker.ToRoom(m.RoomID, env, conn.UserID())
	}
}

func (s *Server) sendError(sender *wsSender, message string) {
	sender.Send(domain.NewEnvelope(domain.MsgError, domain.ChannelNotification, map[string]interface{}{
		"error": message,
	}))
}

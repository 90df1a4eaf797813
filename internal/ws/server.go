package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/service"
)

// StatusMirror reflects connect/disconnect into the external presence view.
// nil disables mirroring.
type StatusMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
}

// Server owns the channel protocol state machine. One instance is built at
// process start and injected wherever fan-out is needed.
type Server struct {
	hub      *Hub
	delivery *Delivery
	mirror   StatusMirror
	opts     Options
	log      *zap.SugaredLogger
}

func NewServer(hub *Hub, delivery *Delivery, mirror StatusMirror, opts Options, log *zap.SugaredLogger) *Server {
	if opts.PingInterval == 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline == 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMsgSize == 0 {
		opts.MaxMsgSize = 64 * 1024
	}
	return &Server{hub: hub, delivery: delivery, mirror: mirror, opts: opts, log: log}
}

// HandleWS runs for the lifetime of one connection. The identity comes from
// the authenticated upgrade; the connection stays unidentified for routing
// purposes until the client announces itself with user_connected.
func (s *Server) HandleWS(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	if userID == "" {
		_ = conn.Close()
		return
	}

	c := NewClient(conn, userID)
	go c.writePump(s.opts.PingInterval, s.opts.WriteDeadline)

	identified := s.readLoop(c)

	if identified {
		s.hub.Unregister(c)
		if s.mirror != nil && !s.hub.Online(c.UserID) {
			if err := s.mirror.SetOffline(context.Background(), c.UserID); err != nil {
				s.log.Warnw("presence mirror offline failed", "user_id", c.UserID, "err", err)
			}
		}
	}
	c.Close()
}

func (s *Server) readLoop(c *Client) (identified bool) {
	c.conn.SetReadLimit(s.opts.MaxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return identified
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Queue(errorEvent("malformed envelope"))
			continue
		}
		identified = s.dispatch(context.Background(), c, env, identified)
	}
}

// dispatch advances the per-connection state machine by one event. It never
// touches the raw connection, only the hub, so it is exercised directly in
// tests.
func (s *Server) dispatch(ctx context.Context, c *Client, env Envelope, identified bool) bool {
	switch env.Event {
	case EventUserConnected:
		if identified {
			return true
		}
		s.hub.Register(c)
		if s.mirror != nil {
			if err := s.mirror.SetOnline(ctx, c.UserID); err != nil {
				s.log.Warnw("presence mirror online failed", "user_id", c.UserID, "err", err)
			}
		}
		return true

	case EventTyping, EventStopTyping:
		if !identified {
			c.Queue(errorEvent("identify first"))
			return false
		}
		var sig TypingSignal
		if err := json.Unmarshal(env.Payload, &sig); err != nil || sig.ReceiverID == "" {
			c.Queue(errorEvent("invalid typing payload"))
			return identified
		}
		// The connection's identity is authoritative, not the payload.
		sig.SenderID = c.UserID
		// Perishable: dropped when the receiver has no live handle.
		s.hub.SendToUser(sig.ReceiverID, marshalEvent(env.Event, sig))
		return identified

	case EventSendMessage:
		if !identified {
			c.Queue(errorEvent("identify first"))
			return false
		}
		var p SendPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Queue(errorEvent("invalid send payload"))
			return identified
		}
		_, err := s.delivery.Deliver(ctx, service.SendInput{
			SenderID:   c.UserID,
			ReceiverID: p.ReceiverID,
			Content:    p.Content,
			Type:       p.Type,
			FileURL:    p.FileURL,
			FileSize:   p.FileSize,
		})
		if err != nil {
			// Surfaced to the sender only; nothing was broadcast.
			c.Queue(errorEvent(err.Error()))
		}
		return identified

	default:
		return identified
	}
}

package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/domain"
	"github.com/fathima-sithara/messaging-service/internal/service"
)

// Publisher mirrors events.Publisher; nil disables event publishing.
type Publisher interface {
	PublishMessageCreated(ctx context.Context, m *domain.Message) error
	PublishMessageEdited(ctx context.Context, m *domain.Message) error
}

// Delivery persists inbound sends and fans the result out to exactly the two
// participants. Never a global broadcast, and never a channel event without
// prior successful persistence.
type Delivery struct {
	svc *service.MessageService
	hub *Hub
	pub Publisher
	log *zap.SugaredLogger
}

func NewDelivery(svc *service.MessageService, hub *Hub, pub Publisher, log *zap.SugaredLogger) *Delivery {
	return &Delivery{svc: svc, hub: hub, pub: pub, log: log}
}

// Deliver persists and then routes. The registry is consulted only after the
// store call returns: a receiver disconnecting across that suspension is
// handled as a plain miss.
func (d *Delivery) Deliver(ctx context.Context, in service.SendInput) (*domain.Message, error) {
	msg, err := d.svc.Send(ctx, in)
	if err != nil {
		return nil, err
	}

	frame := marshalEvent(EventReceive, msg)
	d.hub.SendToUser(msg.SenderID, frame)
	if !d.hub.SendToUser(msg.ReceiverID, frame) {
		d.log.Debugw("receiver offline, delivery deferred to catch-up", "receiver_id", msg.ReceiverID)
	}

	update := marshalEvent(EventMessageUpdate, MessageUpdate{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Type:       msg.Type,
	})
	d.hub.SendToUser(msg.SenderID, update)
	d.hub.SendToUser(msg.ReceiverID, update)

	if d.pub != nil {
		if err := d.pub.PublishMessageCreated(ctx, msg); err != nil {
			d.log.Warnw("publish message.created failed", "message_id", msg.ID, "err", err)
		}
	}
	return msg, nil
}

// NotifyEdited fans out an already-persisted edit to both participants. It
// is a notification path only; the mutation happened over REST.
func (d *Delivery) NotifyEdited(ctx context.Context, msg *domain.Message) {
	frame := marshalEvent(EventMessageEdited, msg)
	d.hub.SendToUser(msg.SenderID, frame)
	d.hub.SendToUser(msg.ReceiverID, frame)

	if d.pub != nil {
		if err := d.pub.PublishMessageEdited(ctx, msg); err != nil {
			d.log.Warnw("publish message.edited failed", "message_id", msg.ID, "err", err)
		}
	}
}

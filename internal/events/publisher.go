package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

// Publisher emits message lifecycle events for downstream consumers
// (notification fan-out, list refreshers). Publishing is best-effort and
// always happens after successful persistence.
type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Publisher{writer: w}
}

type envelope struct {
	Event   string          `json:"event"`
	Message *domain.Message `json:"message"`
}

func (p *Publisher) publish(ctx context.Context, event string, m *domain.Message) error {
	b, err := json.Marshal(envelope{Event: event, Message: m})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(m.SenderID + ":" + m.ReceiverID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) PublishMessageCreated(ctx context.Context, m *domain.Message) error {
	return p.publish(ctx, "message.created", m)
}

func (p *Publisher) PublishMessageEdited(ctx context.Context, m *domain.Message) error {
	return p.publish(ctx, "message.edited", m)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

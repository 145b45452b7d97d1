package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// envelope is the broker wire format shared with downstream consumers.
type envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   Event     `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaNotifier publishes events to a topic for out-of-process consumers
// (mail, push). Writes are asynchronous.
type KafkaNotifier struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("failed to publish notifications", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaNotifier{writer: w, log: log}
}

func (n *KafkaNotifier) Emit(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(envelope{
		EventID:   uuid.NewString(),
		EventType: event.Type,
		Payload:   event,
		Timestamp: event.CreatedAt,
	})
	if err != nil {
		n.log.Warn("failed to encode notification", zap.String("type", event.Type), zap.Error(err))
		return
	}

	msg := kafka.Message{Key: []byte(event.Type), Value: value}
	if err := n.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		n.log.Warn("failed to queue notification", zap.String("type", event.Type), zap.Error(err))
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

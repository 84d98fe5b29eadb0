package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/logger"
)

// OrderEvent feeds the external notification scheduler: it decides which
// customers get campaign messages based on this stream.
type OrderEvent struct {
	EventType     string    `json:"event_type"` // order_created, status_changed
	OrderUUID     string    `json:"order_uuid"`
	DisplayID     string    `json:"display_id"`
	CustomerEmail string    `json:"customer_email"`
	Status        string    `json:"status"`
	TotalPrice    float64   `json:"total_price"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	EventOrderCreated  = "order_created"
	EventStatusChanged = "status_changed"
)

type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.CustomerEmail),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured; events are logged
// and dropped.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	logger.Log.Debug("order event dropped (no brokers configured)",
		zap.String("event_type", event.EventType),
		zap.String("order_uuid", event.OrderUUID))
	return nil
}

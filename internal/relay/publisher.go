package relay

import (
	"context"
	"time"

	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers one outbox row downstream. A nil error means the broker
// accepted it; the relay then marks the row DISPATCHED.
type Publisher interface {
	Publish(ctx context.Context, row model.OutboxEvent) error
	Close() error
}

// Header names carried on every message. Consumers dedupe on HeaderEventID.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderAggregate = "aggregate"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes rows to one topic keyed by target id, so a partition
// sees a target's events in journal order.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher backed by a synchronous kafka.Writer.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  1,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, row model.OutboxEvent) error {
	return p.w.WriteMessages(ctx, toMessage(row))
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func toMessage(row model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(row.AggregateID.String()),
		Value: []byte(row.Payload),
		Time:  row.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(row.EventID.String())},
			{Key: HeaderEventType, Value: []byte(row.EventType)},
			{Key: HeaderAggregate, Value: []byte(row.Aggregate)},
		},
	}
}

// LogPublisher writes events to the log. Used for local runs without a broker.
type LogPublisher struct {
	log *zap.SugaredLogger
}

func NewLogPublisher(log *zap.SugaredLogger) *LogPublisher { return &LogPublisher{log: log} }

func (p *LogPublisher) Publish(ctx context.Context, row model.OutboxEvent) error {
	p.log.Infow("event",
		"event_id", row.EventID,
		"event_type", row.EventType,
		"target_id", row.AggregateID,
		"created_at", row.CreatedAt.Format(time.RFC3339Nano),
		"payload", string(row.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

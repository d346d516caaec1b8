package outbox

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ErrPermanent marks an event that can never be dispatched. The relay fails
// it immediately instead of retrying.
var ErrPermanent = errors.New("permanent")

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event.AggregateID == "" || event.Type == "" {
		return errors.Join(ErrPermanent, errors.New("event has no aggregate id or type"))
	}

	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	headers = tracing.InjectEventTrace(ctx, headers, event.Traceparent)

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}

// LogProducer writes messages to the log instead of a broker. It stands in
// for Kafka when no broker is configured.
type LogProducer struct {
	Log *slog.Logger
}

func (p LogProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		p.Log.Info("event", "topic", m.Topic, "key", string(m.Key), "headers", len(m.Headers), "value", string(m.Value))
	}
	return nil
}

package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Handler interface {
	Handle(ctx context.Context, eventType string, payload []byte) error
}

type Consumer struct {
	log      *slog.Logger
	reader   Reader
	handler  Handler
	idem     Deduper
	attempts int
	backoff  time.Duration
	tracer   trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, handler Handler, idem Deduper) *Consumer {
	return &Consumer{
		log:      log,
		reader:   reader,
		handler:  handler,
		idem:     idem,
		attempts: 3,
		backoff:  time.Second,
		tracer:   otel.Tracer("reconcile-consumer"),
	}
}

// Run consumes until ctx ends. Every fetched message is committed once
// handled; a message that keeps failing is logged, forgotten by the
// deduplicator and committed so it does not block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Warn("idempotency check failed, handling anyway", "key", key, "err", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	eventType := headerValue(msg.Headers, outbox.HeaderEventType)
	msgCtx := tracing.ExtractMessageTrace(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent", trace.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("order_id", string(msg.Key)),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		err = c.handler.Handle(msgCtx, eventType, msg.Value)
		if err == nil {
			return
		}
		if attempt >= c.attempts || ctx.Err() != nil {
			break
		}
		c.log.Warn("event handling failed, retrying", "type", eventType, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.log.Error("event handling failed", "type", eventType, "order_id", string(msg.Key), "key", key, "err", err)
	if fErr := c.idem.Forget(ctx, key); fErr != nil {
		c.log.Warn("idempotency forget failed", "key", key, "err", fErr)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}

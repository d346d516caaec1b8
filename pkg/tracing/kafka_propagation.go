package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TraceparentHeader = "traceparent"

// MessageHeaders adapts Kafka message headers to a TextMapCarrier. Set
// replaces an existing header of the same key rather than adding a second.
type MessageHeaders struct {
	Headers *[]kafka.Header
}

var _ propagation.TextMapCarrier = MessageHeaders{}

func (m MessageHeaders) Get(key string) string {
	for _, h := range *m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (m MessageHeaders) Set(key, value string) {
	for i, h := range *m.Headers {
		if h.Key == key {
			(*m.Headers)[i].Value = []byte(value)
			return
		}
	}
	*m.Headers = append(*m.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (m MessageHeaders) Keys() []string {
	keys := make([]string, 0, len(*m.Headers))
	for _, h := range *m.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectEventTrace stamps the trace of an outbox event onto headers. A
// traceparent recorded when the event was appended wins over the span in
// ctx, which belongs to the relay rather than the request that caused it.
func InjectEventTrace(ctx context.Context, headers []kafka.Header, traceparent string) []kafka.Header {
	carrier := MessageHeaders{Headers: &headers}
	if traceparent != "" {
		carrier.Set(TraceparentHeader, traceparent)
		return headers
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return headers
}

// ExtractMessageTrace returns ctx carrying the remote span recorded in headers.
func ExtractMessageTrace(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, MessageHeaders{Headers: &headers})
}

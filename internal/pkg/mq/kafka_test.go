package mq

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/mq/mqtest"
)

func TestPartitionKeyBalancer_UsesPartitionKeyHeader(t *testing.T) {
	b := &PartitionKeyBalancer{}
	partitions := []int{0, 1, 2, 3, 4, 5, 6, 7}

	msg := func(routingKey, orderID string) kafka.Message {
		return kafka.Message{
			Key:     []byte(routingKey),
			Headers: []kafka.Header{{Key: HeaderPartitionKey, Value: []byte(orderID)}},
		}
	}

	created := b.Balance(msg("order-created", "order-1"), partitions...)
	completed := b.Balance(msg("order-completed", "order-1"), partitions...)
	assert.Equal(t, created, completed, "events of one order share a partition")
}

func TestProduceMessage_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &mqtest.FakeWriter{}
	require.NoError(t, ProduceMessage(ctx, w, []byte("order-created"), []byte(`{}`),
		kafka.Header{Key: HeaderPartitionKey, Value: []byte("order-1")}))

	written := w.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "order-1", GetHeader(written[0].Headers, HeaderPartitionKey))
	assert.NotEmpty(t, GetHeader(written[0].Headers, "traceparent"))

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), written[0].Headers))
	assert.Equal(t, traceID, extracted.TraceID())
}

// internal/service/order/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

var producerTracer = otel.Tracer("orderflow/order-event-producer")

// OrderEventProducerAdapter 实现了 port.EventPublisher，把生命周期事件写入共享主题。
// 消息 Key 是路由 Key，分区按订单 ID 计算。
type OrderEventProducerAdapter struct {
	writer mq.MessageWriter
	topic  string
	now    func() time.Time
}

func NewOrderEventProducerAdapter(writer mq.MessageWriter, topic string) *OrderEventProducerAdapter {
	return &OrderEventProducerAdapter{writer: writer, topic: topic, now: time.Now}
}

func (p *OrderEventProducerAdapter) PublishCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, domain.EventOrderCreated, order)
}

func (p *OrderEventProducerAdapter) PublishCompleted(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, domain.EventOrderCompleted, order)
}

func (p *OrderEventProducerAdapter) PublishExpired(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, domain.EventOrderExpired, order)
}

func (p *OrderEventProducerAdapter) publish(ctx context.Context, eventType domain.EventType, order *domain.Order) error {
	routingKey := eventType.RoutingKey()
	ctx, span := producerTracer.Start(ctx, "publish "+routingKey, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", p.topic),
		attribute.String("messaging.kafka.message.key", routingKey),
		attribute.String("order.id", order.ID),
	)

	event := domain.NewLifecycleEvent(eventType, order, p.now())
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return errors.Wrapf(domain.ErrPublishFailure, "marshal %s for order %s: %v", eventType, order.ID, err)
	}

	err = mq.ProduceMessage(ctx, p.writer, []byte(routingKey), payload,
		kafka.Header{Key: mq.HeaderPartitionKey, Value: []byte(order.ID)},
		kafka.Header{Key: mq.HeaderEventType, Value: []byte(eventType)},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "produce failed")
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID).
			Str("routing_key", routingKey).
			Msg("Failed to produce lifecycle event")
		return errors.Wrapf(domain.ErrPublishFailure, "produce %s for order %s: %v", eventType, order.ID, err)
	}

	metrics.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("event_id", event.EventID).
		Str("routing_key", routingKey).
		Msg("Lifecycle event published")
	return nil
}

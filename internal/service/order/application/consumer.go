// internal/service/order/application/consumer.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// OrderEventConsumer 处理 order-created 事件：PENDING → PROCESSING，模拟结算，
// 成功则 PROCESSING → COMPLETED 并发布 OrderCompleted，失败则保持 PROCESSING 等待超时回收。
type OrderEventConsumer struct {
	uow        domain.UnitOfWork
	publisher  port.EventPublisher
	settlement *SettlementSimulator
	tracer     trace.Tracer
	now        func() time.Time
}

func NewOrderEventConsumer(uow domain.UnitOfWork, publisher port.EventPublisher, settlement *SettlementSimulator, tracer trace.Tracer) *OrderEventConsumer {
	return &OrderEventConsumer{
		uow:        uow,
		publisher:  publisher,
		settlement: settlement,
		tracer:     tracer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage 是驱动适配器调用的入口。其他路由 Key 的消息直接忽略。
// 返回错误表示消息未处理成功，由驱动适配器重试或转入死信。
func (c *OrderEventConsumer) HandleMessage(ctx context.Context, key string, payload []byte) error {
	if key != domain.RoutingKeyCreated {
		logger.Ctx(ctx).Debug().Str("routing_key", key).Msg("Ignoring event not addressed to order consumer")
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "app.HandleOrderCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	event, err := domain.DecodeLifecycleEvent(payload)
	if err != nil {
		return recordErr(span, err, "decode failed")
	}
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("event.id", event.EventID),
	)
	log := logger.Ctx(ctx).With().Str("order_id", event.OrderID).Str("event_id", event.EventID).Logger()

	if event.Status != domain.StatusPending {
		log.Info().Str("status", event.Status.String()).Msg("Created event does not carry PENDING, ignored")
		return nil
	}

	started, err := c.startProcessing(ctx, event.OrderID)
	if err != nil {
		return recordErr(span, err, "start processing failed")
	}
	if !started {
		log.Info().Msg("Order is no longer PENDING, redelivered event skipped")
		span.AddEvent("redelivery skipped")
		return nil
	}
	span.AddEvent("Order moved to PROCESSING.")

	succeeded, err := c.settlement.Settle(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Settlement interrupted, order stays PROCESSING")
		return recordErr(span, err, "settlement interrupted")
	}
	if !succeeded {
		log.Info().Msg("Settlement failed, order stays PROCESSING until expiration")
		span.AddEvent("settlement failed")
		return nil
	}

	completed, err := c.complete(ctx, event.OrderID)
	if err != nil {
		return recordErr(span, err, "complete failed")
	}
	if completed == nil {
		log.Info().Msg("Order left PROCESSING before settlement finished, completion skipped")
		span.AddEvent("completion lost race")
		return nil
	}

	if err := c.publisher.PublishCompleted(ctx, completed); err != nil {
		log.Error().Err(err).Msg("🚨 Order completed but OrderCompleted was not published")
		return recordErr(span, err, "publish completed failed")
	}
	log.Info().Msg("✅ Order completed")
	return nil
}

// startProcessing 返回 false 表示订单已不在 PENDING（重复投递）
func (c *OrderEventConsumer) startProcessing(ctx context.Context, orderID string) (bool, error) {
	started := false
	err := c.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusPending {
			return nil
		}
		if err := order.StartProcessing(c.now()); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		started = true
		return nil
	})
	return started, err
}

// complete 重新读取订单并确认仍是 PROCESSING。超时回收抢先时返回 nil 订单而不是错误。
func (c *OrderEventConsumer) complete(ctx context.Context, orderID string) (*domain.Order, error) {
	var completed *domain.Order
	err := c.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusProcessing {
			return nil
		}
		if err := order.Complete(c.now()); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		completed = order
		return nil
	})
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return nil, nil
	}
	return completed, err
}

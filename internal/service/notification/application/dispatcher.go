// internal/service/notification/application/dispatcher.go
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/notification/domain"
	"orderflow/internal/service/notification/domain/port"
)

// NotificationDispatcher 消费终态事件并生成用户通知，完成事件额外发送邮件。
type NotificationDispatcher struct {
	notifications domain.NotificationRepository
	directory     port.OrderDirectory
	email         port.EmailSender
	dedupe        port.Deduplicator
	pusher        port.Pusher
	tracer        trace.Tracer
	now           func() time.Time
}

func NewNotificationDispatcher(notifications domain.NotificationRepository, directory port.OrderDirectory, email port.EmailSender, tracer trace.Tracer) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		directory:     directory,
		email:         email,
		tracer:        tracer,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithDeduplicator 开启按事件 ID 去重。默认关闭，重复投递的完成事件会产生重复通知。
func (d *NotificationDispatcher) WithDeduplicator(dedupe port.Deduplicator) *NotificationDispatcher {
	d.dedupe = dedupe
	return d
}

// WithPusher 通知持久化后推送给在线的 websocket 客户端
func (d *NotificationDispatcher) WithPusher(pusher port.Pusher) *NotificationDispatcher {
	d.pusher = pusher
	return d
}

// HandleMessage 按路由 Key 分发；order-created 和未知的 Key 都忽略。
func (d *NotificationDispatcher) HandleMessage(ctx context.Context, key string, payload []byte) error {
	var handle func(ctx context.Context, ev *domain.OrderEvent) error
	switch key {
	case domain.RoutingKeyCompleted:
		handle = d.handleCompleted
	case domain.RoutingKeyExpired:
		handle = d.handleExpired
	default:
		logger.Ctx(ctx).Debug().Str("routing_key", key).Msg("Ignoring event not addressed to notification dispatcher")
		return nil
	}

	ctx, span := d.tracer.Start(ctx, "app.DispatchNotification", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("messaging.kafka.message.key", key))

	ev, err := domain.DecodeOrderEvent(payload)
	if err != nil {
		return recordErr(span, err, "decode failed")
	}
	span.SetAttributes(attribute.String("order.id", ev.OrderID), attribute.String("event.id", ev.EventID))

	if d.dedupe != nil && ev.EventID != "" {
		first, err := d.dedupe.Claim(ctx, ev.EventID)
		if err != nil {
			return recordErr(span, errors.Wrapf(domain.ErrProcessingFailure, "claim event %s: %v", ev.EventID, err), "dedupe failed")
		}
		if !first {
			logger.Ctx(ctx).Info().Str("event_id", ev.EventID).Msg("Duplicate event skipped")
			span.AddEvent("duplicate skipped")
			return nil
		}
	}

	if err := handle(ctx, ev); err != nil {
		if d.dedupe != nil && ev.EventID != "" {
			if rerr := d.dedupe.Release(ctx, ev.EventID); rerr != nil {
				logger.Ctx(ctx).Warn().Err(rerr).Str("event_id", ev.EventID).Msg("Failed to release dedupe claim")
			}
		}
		return recordErr(span, err, "dispatch failed")
	}
	return nil
}

// handleCompleted 两阶段写入：未发送 → 发送邮件 → 标记已发送
func (d *NotificationDispatcher) handleCompleted(ctx context.Context, ev *domain.OrderEvent) error {
	order, err := d.directory.FindOrder(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	user, err := d.directory.FindUser(ctx, order.UserID)
	if err != nil {
		return err
	}

	// 上一次投递留下的未发送通知直接复用，重试只补发邮件
	n, err := d.pendingCompletion(ctx, order.ID)
	if err != nil {
		return err
	}
	if n == nil {
		message := fmt.Sprintf("Hi %s, your order %s (%d x %s) has been completed. Total charged: %s.",
			user.Name, order.ID, order.Quantity, order.ProductID, order.Total.StringFixed(2))
		n = domain.NewNotification(order.ID, order.UserID, domain.TypeCompleted, message, d.now())
		if err := d.notifications.Save(ctx, n); err != nil {
			return errors.Wrapf(domain.ErrProcessingFailure, "save notification: %v", err)
		}
		metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	} else {
		logger.Ctx(ctx).Info().Str("notification_id", n.ID).Msg("Resuming unsent completion notification")
	}

	if err := d.email.Send(ctx, user.Email, "Your order has been completed", n.Message); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("notification_id", n.ID).
			Str("order_id", order.ID).
			Msg("Email send failed, notification left unsent")
		return errors.Wrapf(domain.ErrProcessingFailure, "send email for order %s: %v", order.ID, err)
	}
	metrics.EmailsSent.WithLabelValues("ok").Inc()

	n.MarkEmailSent(d.now())
	if err := d.notifications.Save(ctx, n); err != nil {
		return errors.Wrapf(domain.ErrProcessingFailure, "mark notification %s sent: %v", n.ID, err)
	}

	logger.Ctx(ctx).Info().
		Str("notification_id", n.ID).
		Str("order_id", order.ID).
		Msg("✅ Completion notification sent")
	d.push(ctx, n)
	return nil
}

// pendingCompletion 返回该订单最早的未发送完成通知，没有时返回 nil
func (d *NotificationDispatcher) pendingCompletion(ctx context.Context, orderID string) (*domain.Notification, error) {
	existing, err := d.notifications.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrProcessingFailure, "load notifications of order %s: %v", orderID, err)
	}
	for _, n := range existing {
		if n.Type == domain.TypeCompleted && !n.EmailSent {
			return n, nil
		}
	}
	return nil, nil
}

// handleExpired 只持久化通知，不发邮件
func (d *NotificationDispatcher) handleExpired(ctx context.Context, ev *domain.OrderEvent) error {
	order, err := d.directory.FindOrder(ctx, ev.OrderID)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Your order %s has expired because payment could not be settled in time.", order.ID)
	n := domain.NewNotification(order.ID, order.UserID, domain.TypeExpired, message, d.now())
	if err := d.notifications.Save(ctx, n); err != nil {
		return errors.Wrapf(domain.ErrProcessingFailure, "save notification: %v", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	logger.Ctx(ctx).Info().
		Str("notification_id", n.ID).
		Str("order_id", order.ID).
		Msg("Expiration notification recorded")
	d.push(ctx, n)
	return nil
}

func (d *NotificationDispatcher) push(ctx context.Context, n *domain.Notification) {
	if d.pusher == nil {
		return
	}
	payload, err := json.Marshal(ToNotificationDTO(n))
	if err != nil {
		return
	}
	if !d.pusher.Push(n.UserID, payload) {
		logger.Ctx(ctx).Debug().Str("user_id", n.UserID).Msg("User not connected, push skipped")
	}
}

// ListByUser 返回用户的所有通知
func (d *NotificationDispatcher) ListByUser(ctx context.Context, userID string) ([]*NotificationDTO, error) {
	ctx, span := d.tracer.Start(ctx, "app.ListNotifications")
	defer span.End()

	list, err := d.notifications.FindByUser(ctx, userID)
	if err != nil {
		return nil, recordErr(span, err, "list notifications failed")
	}
	out := make([]*NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, ToNotificationDTO(n))
	}
	return out, nil
}

func recordErr(span trace.Span, err error, description string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	return err
}

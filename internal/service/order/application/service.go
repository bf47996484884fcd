// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// OrderApplicationService 编排订单的同步用例：创建、修改、删除和查询。
// 状态推进由事件驱动，见 OrderEventConsumer 和 ExpirationSweeper。
type OrderApplicationService struct {
	repos     domain.Repositories
	uow       domain.UnitOfWork
	publisher port.EventPublisher
	tracer    trace.Tracer
	now       func() time.Time
}

func NewOrderApplicationService(repos domain.Repositories, uow domain.UnitOfWork, publisher port.EventPublisher, tracer trace.Tracer) *OrderApplicationService {
	return &OrderApplicationService{
		repos:     repos,
		uow:       uow,
		publisher: publisher,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder 在一个事务内扣减库存并保存 PENDING 订单，提交后发布 OrderCreated。
// 发布失败时订单已经持久化，返回订单的同时返回 ErrPublishFailure。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("product.id", req.ProductID),
		attribute.Int("order.quantity", req.Quantity),
	)

	if req.Quantity <= 0 {
		return nil, recordErr(span, domain.ErrInvalidQuantity, "invalid quantity")
	}

	var order *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Users.FindByID(ctx, req.UserID); err != nil {
			return err
		}
		product, err := repos.Products.FindByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if err := product.Reserve(req.Quantity); err != nil {
			return errors.Wrapf(err, "product %s (stock %d, requested %d)", product.ID, product.Stock, req.Quantity)
		}
		if err := repos.Products.Save(ctx, product); err != nil {
			return err
		}
		order, err = domain.NewOrder(req.UserID, product, req.Quantity, s.now())
		if err != nil {
			return err
		}
		return repos.Orders.Save(ctx, order)
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("user_id", req.UserID).
			Str("product_id", req.ProductID).
			Msg("Order creation rejected")
		return nil, recordErr(span, err, "create order failed")
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	span.AddEvent("Order saved with PENDING status.")

	if err := s.publisher.PublishCreated(ctx, order); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).
			Msg("🚨 Order persisted but OrderCreated was not published")
		return ToOrderDTO(order), recordErr(span, err, "publish created failed")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("total", order.Total.StringFixed(2)).
		Msg("✅ Order created")
	return ToOrderDTO(order), nil
}

// UpdateOrder 修改数量或直接覆盖状态。数量变化时先归还旧数量再扣减新数量，都在同一事务内。
// 覆盖状态不发布事件。
func (s *OrderApplicationService) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	var status domain.Status
	if req.Status != nil {
		st, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return nil, recordErr(span, errors.Wrapf(err, "%q", *req.Status), "invalid status")
		}
		status = st
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return nil, recordErr(span, domain.ErrInvalidQuantity, "invalid quantity")
	}

	var order *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = repos.Orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return errors.Wrapf(domain.ErrInvalidState, "order %s is %s", order.ID, order.Status)
		}
		now := s.now()

		if req.Quantity != nil && *req.Quantity != order.Quantity {
			product, err := repos.Products.FindByID(ctx, order.ProductID)
			if err != nil {
				return err
			}
			product.Release(order.Quantity)
			if err := product.Reserve(*req.Quantity); err != nil {
				return errors.Wrapf(err, "product %s (available %d, requested %d)", product.ID, product.Stock, *req.Quantity)
			}
			if err := order.ChangeQuantity(*req.Quantity, product.Price, now); err != nil {
				return err
			}
			if err := repos.Products.Save(ctx, product); err != nil {
				return err
			}
		}
		if req.Status != nil {
			if err := order.OverrideStatus(status, now); err != nil {
				return err
			}
		}
		return repos.Orders.Save(ctx, order)
	})
	if err != nil {
		return nil, recordErr(span, err, "update order failed")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("status", order.Status.String()).
		Int("quantity", order.Quantity).
		Msg("Order updated")
	return ToOrderDTO(order), nil
}

// DeleteOrder 删除订单，不归还库存
func (s *OrderApplicationService) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "app.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	if err := s.repos.Orders.DeleteByID(ctx, id); err != nil {
		return recordErr(span, err, "delete order failed")
	}
	logger.Ctx(ctx).Info().Str("order_id", id).Msg("Order deleted")
	return nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, id string) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	order, err := s.repos.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, recordErr(span, err, "get order failed")
	}
	return ToOrderDTO(order), nil
}

func (s *OrderApplicationService) ListOrdersByUser(ctx context.Context, userID string) ([]*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrdersByUser")
	defer span.End()

	orders, err := s.repos.Orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, recordErr(span, err, "list orders failed")
	}
	return toOrderDTOs(orders), nil
}

func (s *OrderApplicationService) ListOrdersByStatus(ctx context.Context, status string) ([]*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrdersByStatus")
	defer span.End()

	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, recordErr(span, errors.Wrapf(err, "%q", status), "invalid status")
	}
	orders, err := s.repos.Orders.FindByStatus(ctx, st)
	if err != nil {
		return nil, recordErr(span, err, "list orders failed")
	}
	return toOrderDTOs(orders), nil
}

func recordErr(span trace.Span, err error, description string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	return err
}

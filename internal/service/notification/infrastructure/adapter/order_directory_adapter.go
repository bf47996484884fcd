package adapter

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/service/notification/domain"
	orderdomain "orderflow/internal/service/order/domain"
)

// OrderDirectoryAdapter 通过订单服务的仓储读取订单库（共享同一个 MySQL，或同进程的内存存储）
type OrderDirectoryAdapter struct {
	orders orderdomain.OrderRepository
	users  orderdomain.UserRepository
}

func NewOrderDirectoryAdapter(orders orderdomain.OrderRepository, users orderdomain.UserRepository) *OrderDirectoryAdapter {
	return &OrderDirectoryAdapter{orders: orders, users: users}
}

func (a *OrderDirectoryAdapter) FindOrder(ctx context.Context, orderID string) (*domain.OrderView, error) {
	o, err := a.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "order", orderID)
	}
	return &domain.OrderView{
		ID:        o.ID,
		UserID:    o.UserID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Total:     o.Total,
		Status:    o.Status.String(),
	}, nil
}

func (a *OrderDirectoryAdapter) FindUser(ctx context.Context, userID string) (*domain.Recipient, error) {
	u, err := a.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user", userID)
	}
	return &domain.Recipient{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func translate(err error, kind, id string) error {
	if errors.Is(err, orderdomain.ErrNotFound) {
		return errors.Wrapf(domain.ErrNotFound, "%s %s", kind, id)
	}
	return errors.Wrapf(domain.ErrProcessingFailure, "resolve %s %s: %v", kind, id, err)
}

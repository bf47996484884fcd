// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体
type Order struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version 是乐观锁版本号，0 表示尚未持久化
	Version int64
}

// NewOrder 创建一个 PENDING 状态的订单，总价 = 单价 × 数量
func NewOrder(userID string, product *Product, quantity int, now time.Time) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  quantity,
		Total:     CalculateTotal(product.Price, quantity),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CalculateTotal 按两位小数计算总价
func CalculateTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// StartProcessing PENDING → PROCESSING
func (o *Order) StartProcessing(now time.Time) error {
	return o.transition(StatusPending, StatusProcessing, now)
}

// Complete PROCESSING → COMPLETED
func (o *Order) Complete(now time.Time) error {
	return o.transition(StatusProcessing, StatusCompleted, now)
}

// Expire PROCESSING → EXPIRED
func (o *Order) Expire(now time.Time) error {
	return o.transition(StatusProcessing, StatusExpired, now)
}

func (o *Order) transition(from, to Status, now time.Time) error {
	if o.Status != from {
		return errors.Wrapf(ErrInvalidState, "order %s: %s -> %s not allowed", o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// ChangeQuantity 修改数量并按商品单价重新计算总价，终态订单不可修改
func (o *Order) ChangeQuantity(quantity int, unitPrice decimal.Decimal, now time.Time) error {
	if o.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidState, "order %s is %s", o.ID, o.Status)
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	o.Quantity = quantity
	o.Total = CalculateTotal(unitPrice, quantity)
	o.UpdatedAt = now
	return nil
}

// OverrideStatus 是管理员直接设置状态的入口，不走事件驱动的状态机，但终态依然不可变更
func (o *Order) OverrideStatus(status Status, now time.Time) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if o.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidState, "order %s is %s", o.ID, o.Status)
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// NotificationRepository 的 Save 是插入或按 ID 覆盖，查询结果按创建时间排序
type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	FindByUser(ctx context.Context, userID string) ([]*Notification, error)
	FindByOrder(ctx context.Context, orderID string) ([]*Notification, error)
}

// OrderView 是组装通知文案所需的订单只读视图
type OrderView struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Total     decimal.Decimal
	Status    string
}

// Recipient 是通知的接收人
type Recipient struct {
	ID    string
	Name  string
	Email string
}

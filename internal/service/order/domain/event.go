// internal/service/order/domain/event.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EventType 是事件负载中的类型标识
type EventType string

const (
	EventOrderCreated   EventType = "ORDER_CREATED"
	EventOrderCompleted EventType = "ORDER_COMPLETED"
	EventOrderExpired   EventType = "ORDER_EXPIRED"
)

// 路由 Key：所有事件共享一个主题，消费组按消息 Key 过滤
const (
	RoutingKeyCreated   = "order-created"
	RoutingKeyCompleted = "order-completed"
	RoutingKeyExpired   = "order-expired"
)

// RoutingKey 返回事件类型对应的路由 Key
func (t EventType) RoutingKey() string {
	switch t {
	case EventOrderCreated:
		return RoutingKeyCreated
	case EventOrderCompleted:
		return RoutingKeyCompleted
	case EventOrderExpired:
		return RoutingKeyExpired
	}
	return ""
}

// LifecycleEvent 是订单状态变化的不可变事实，而不是命令。
type LifecycleEvent struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	Total      string    `json:"total"`
	Status     Status    `json:"status,omitempty"` // 只有 ORDER_CREATED 携带
	OccurredAt time.Time `json:"occurredAt"`
}

// NewLifecycleEvent 根据订单当前快照构造事件
func NewLifecycleEvent(eventType EventType, order *Order, now time.Time) *LifecycleEvent {
	ev := &LifecycleEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		Total:      order.Total.StringFixed(2),
		OccurredAt: now.UTC(),
	}
	if eventType == EventOrderCreated {
		ev.Status = order.Status
	}
	return ev
}

// TotalAmount 解析十进制字符串形式的总价
func (e *LifecycleEvent) TotalAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(e.Total)
}

// DecodeLifecycleEvent 反序列化事件负载，失败时返回 ErrMalformedEvent
func DecodeLifecycleEvent(payload []byte) (*LifecycleEvent, error) {
	var ev LifecycleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Wrapf(ErrMalformedEvent, "decode lifecycle event: %v", err)
	}
	if ev.OrderID == "" {
		return nil, errors.Wrap(ErrMalformedEvent, "lifecycle event without orderId")
	}
	return &ev, nil
}

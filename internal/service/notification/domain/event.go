// internal/service/notification/domain/event.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// 订阅的路由 Key，order-created 不在其中
const (
	RoutingKeyCompleted = "order-completed"
	RoutingKeyExpired   = "order-expired"
)

// OrderEvent 是通知服务关心的生命周期事件字段
type OrderEvent struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurredAt"`
}

func DecodeOrderEvent(payload []byte) (*OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Wrapf(ErrMalformedEvent, "decode order event: %v", err)
	}
	if ev.OrderID == "" {
		return nil, errors.Wrap(ErrMalformedEvent, "order event without orderId")
	}
	return &ev, nil
}

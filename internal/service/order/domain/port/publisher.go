package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// EventPublisher 是生命周期事件的出站端口。
// 发布失败返回 domain.ErrPublishFailure，内部不重试：此时存储中的状态已经变更，但事实没有广播出去。
type EventPublisher interface {
	PublishCreated(ctx context.Context, order *domain.Order) error
	PublishCompleted(ctx context.Context, order *domain.Order) error
	PublishExpired(ctx context.Context, order *domain.Order) error
}

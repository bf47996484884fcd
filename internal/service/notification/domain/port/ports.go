package port

import (
	"context"

	"orderflow/internal/service/notification/domain"
)

// OrderDirectory 从订单库读取订单和用户，不存在时返回 domain.ErrNotFound
type OrderDirectory interface {
	FindOrder(ctx context.Context, orderID string) (*domain.OrderView, error)
	FindUser(ctx context.Context, userID string) (*domain.Recipient, error)
}

// EmailSender 是邮件发送的出站端口
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Deduplicator 按事件 ID 去重。Claim 返回 false 表示事件已经处理过；
// 处理失败时调用 Release，让重新投递的事件可以再次被认领。
type Deduplicator interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Pusher 尽力而为地把通知推送给在线用户
type Pusher interface {
	Push(userID string, payload []byte) bool
}

// internal/service/notification/domain/notification.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Type 与触发通知的终态事件一一对应
type Type string

const (
	TypeCompleted Type = "COMPLETED"
	TypeExpired   Type = "EXPIRED"
)

// Notification 由一个终态事件派生。完成通知先以 EmailSent=false 持久化，
// 邮件发送成功后再 MarkEmailSent 并第二次持久化；超时通知永远不发邮件。
type Notification struct {
	ID        string
	OrderID   string
	UserID    string
	Type      Type
	Message   string
	EmailSent bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewNotification(orderID, userID string, t Type, message string, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		UserID:    userID,
		Type:      t,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkEmailSent 只对完成通知有意义
func (n *Notification) MarkEmailSent(now time.Time) {
	n.EmailSent = true
	n.UpdatedAt = now
}

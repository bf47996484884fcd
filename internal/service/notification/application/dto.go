package application

import (
	"time"

	"orderflow/internal/service/notification/domain"
)

type NotificationDTO struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	EmailSent bool      `json:"emailSent"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToNotificationDTO(n *domain.Notification) *NotificationDTO {
	return &NotificationDTO{
		ID:        n.ID,
		OrderID:   n.OrderID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		EmailSent: n.EmailSent,
		CreatedAt: n.CreatedAt,
	}
}

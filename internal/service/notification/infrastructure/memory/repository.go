package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"orderflow/internal/service/notification/domain"
)

// NotificationRepository 是进程内的通知存储，保存的是副本
type NotificationRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[string]domain.Notification)}
}

func (r *NotificationRepository) Save(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = *n
	return nil
}

func (r *NotificationRepository) FindByUser(_ context.Context, userID string) ([]*domain.Notification, error) {
	return r.filter(func(n domain.Notification) bool { return n.UserID == userID }), nil
}

func (r *NotificationRepository) FindByOrder(_ context.Context, orderID string) ([]*domain.Notification, error) {
	return r.filter(func(n domain.Notification) bool { return n.OrderID == orderID }), nil
}

func (r *NotificationRepository) filter(match func(domain.Notification) bool) []*domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Notification
	for _, n := range r.items {
		if match(n) {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

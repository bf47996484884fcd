// internal/service/notification/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"orderflow/internal/service/notification/domain"
)

// GormNotificationRepository 是 domain.NotificationRepository 的 GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save 按主键 upsert，第二阶段写入只会更新 email_sent 和 updated_at
func (r *GormNotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	if err := r.db.WithContext(ctx).Save(fromDomain(n)).Error; err != nil {
		return errors.Wrapf(err, "save notification %s", n.ID)
	}
	return nil
}

func (r *GormNotificationRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return r.find(ctx, "user_id = ?", userID)
}

func (r *GormNotificationRepository) FindByOrder(ctx context.Context, orderID string) ([]*domain.Notification, error) {
	return r.find(ctx, "order_id = ?", orderID)
}

func (r *GormNotificationRepository) find(ctx context.Context, cond string, arg string) ([]*domain.Notification, error) {
	var models []NotificationModel
	if err := r.db.WithContext(ctx).Where(cond, arg).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find notifications")
	}
	out := make([]*domain.Notification, 0, len(models))
	for i := range models {
		out = append(out, toDomain(&models[i]))
	}
	return out, nil
}

func toDomain(m *NotificationModel) *domain.Notification {
	return &domain.Notification{
		ID:        m.ID,
		OrderID:   m.OrderID,
		UserID:    m.UserID,
		Type:      domain.Type(m.Type),
		Message:   m.Message,
		EmailSent: m.EmailSent,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func fromDomain(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		OrderID:   n.OrderID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		EmailSent: n.EmailSent,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

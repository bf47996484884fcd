// internal/service/notification/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

type NotificationModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	OrderID   string    `gorm:"type:varchar(36);not null;index"`
	UserID    string    `gorm:"type:varchar(64);not null;index"`
	Type      string    `gorm:"type:varchar(16);not null"`
	Message   string    `gorm:"type:varchar(512);not null"`
	EmailSent bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&NotificationModel{})
}

// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderModel 对应 orders 表。idx_status_created 服务于超时扫描的 status + created_at 查询。
type OrderModel struct {
	ID        string          `gorm:"type:varchar(36);primaryKey"`
	UserID    string          `gorm:"type:varchar(64);not null;index"`
	ProductID string          `gorm:"type:varchar(64);not null"`
	Quantity  int             `gorm:"not null"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status    string          `gorm:"type:varchar(16);not null;index:idx_status_created,priority:1"`
	CreatedAt time.Time       `gorm:"not null;index:idx_status_created,priority:2"`
	UpdatedAt time.Time       `gorm:"not null"`
	Version   int64           `gorm:"not null;default:1"`
}

func (OrderModel) TableName() string {
	return "orders"
}

type ProductModel struct {
	ID        string          `gorm:"type:varchar(64);primaryKey"`
	Name      string          `gorm:"type:varchar(128);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock     int             `gorm:"not null"`
	UpdatedAt time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

type UserModel struct {
	ID    string `gorm:"type:varchar(64);primaryKey"`
	Name  string `gorm:"type:varchar(128);not null"`
	Email string `gorm:"type:varchar(255);not null"`
}

func (UserModel) TableName() string {
	return "users"
}

// AutoMigrate 创建或更新订单服务需要的表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{}, &ProductModel{}, &UserModel{})
}

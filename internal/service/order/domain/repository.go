// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByUser(ctx context.Context, userID string) ([]*Order, error)
	FindByStatus(ctx context.Context, status Status) ([]*Order, error)
	// FindByStatusOlderThan 查找指定状态且创建时间早于 cutoff 的订单，用于超时回收
	FindByStatusOlderThan(ctx context.Context, status Status, cutoff time.Time) ([]*Order, error)

	// Save 创建或更新订单。更新时按 Version 做比较并交换，不匹配返回 ErrConcurrentUpdate；
	// 成功后 order.Version 会递增。
	Save(ctx context.Context, order *Order) error

	ExistsByID(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) error
}

type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, product *Product) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, user *User) error
}

// Repositories 是一次事务内可见的仓储集合
type Repositories struct {
	Orders   OrderRepository
	Products ProductRepository
	Users    UserRepository
}

// UnitOfWork 把多个仓储操作包在同一个存储事务里：fn 返回错误时全部回滚。
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
// 在事务内创建时 lock 为 true，读取订单和商品都会加行锁。
type GormOrderRepository struct {
	db   *gorm.DB
	lock bool
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var m OrderModel
	if err := r.query(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return toDomainOrder(&m), nil
}

func (r *GormOrderRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find orders of user %s", userID)
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find orders with status %s", status)
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByStatusOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(status), cutoff.UTC()).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find %s orders older than %s", status, cutoff)
	}
	return toDomainOrders(models), nil
}

// Save 新订单 (Version == 0) 直接插入；已有订单用 version 做条件更新
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order.Version == 0 {
		m := fromDomainOrder(order)
		m.Version = 1
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(domain.ErrConcurrentUpdate, "order %s already exists", order.ID)
			}
			return errors.Wrapf(err, "insert order %s", order.ID)
		}
		order.Version = 1
		return nil
	}

	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"quantity":   order.Quantity,
			"total":      order.Total,
			"status":     string(order.Status),
			"updated_at": order.UpdatedAt,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update order %s", order.ID)
	}
	if res.RowsAffected == 0 {
		exists, err := r.ExistsByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(domain.ErrNotFound, "order %s", order.ID)
		}
		return errors.Wrapf(domain.ErrConcurrentUpdate, "order %s at version %d", order.ID, order.Version)
	}
	order.Version++
	return nil
}

func (r *GormOrderRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "count order %s", id)
	}
	return count > 0, nil
}

func (r *GormOrderRepository) DeleteByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&OrderModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete order %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return nil
}

type GormProductRepository struct {
	db   *gorm.DB
	lock bool
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m ProductModel
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "product %s", id)
		}
		return nil, errors.Wrapf(err, "find product %s", id)
	}
	return toDomainProduct(&m), nil
}

func (r *GormProductRepository) Save(ctx context.Context, product *domain.Product) error {
	if err := r.db.WithContext(ctx).Save(fromDomainProduct(product)).Error; err != nil {
		return errors.Wrapf(err, "save product %s", product.ID)
	}
	return nil
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "user %s", id)
		}
		return nil, errors.Wrapf(err, "find user %s", id)
	}
	return toDomainUser(&m), nil
}

func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Save(fromDomainUser(user)).Error; err != nil {
		return errors.Wrapf(err, "save user %s", user.ID)
	}
	return nil
}

// GormUnitOfWork 用 gorm 事务实现 domain.UnitOfWork
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, domain.Repositories{
			Orders:   &GormOrderRepository{db: tx, lock: true},
			Products: &GormProductRepository{db: tx, lock: true},
			Users:    &GormUserRepository{db: tx},
		})
	})
}

// GormStore 汇总非事务仓储和工作单元，供组合根使用
type GormStore struct {
	Orders   *GormOrderRepository
	Products *GormProductRepository
	Users    *GormUserRepository
	UoW      *GormUnitOfWork
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		Orders:   NewGormOrderRepository(db),
		Products: NewGormProductRepository(db),
		Users:    NewGormUserRepository(db),
		UoW:      NewGormUnitOfWork(db),
	}
}

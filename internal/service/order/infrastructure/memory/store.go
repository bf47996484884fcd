// internal/service/order/infrastructure/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"orderflow/internal/service/order/domain"
)

// Store 是订单、商品、用户的进程内存储，用于本地运行和测试。
// Do 在持有全局锁的情况下操作一份快照，fn 成功后才替换，提供与数据库事务相同的原子性。
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	orders   map[string]domain.Order
	products map[string]domain.Product
	users    map[string]domain.User
}

func NewStore() *Store {
	return &Store{st: &state{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		users:    make(map[string]domain.User),
	}}
}

func (s *state) clone() *state {
	c := &state{
		orders:   make(map[string]domain.Order, len(s.orders)),
		products: make(map[string]domain.Product, len(s.products)),
		users:    make(map[string]domain.User, len(s.users)),
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

func (s *Store) Orders() domain.OrderRepository     { return &orderRepo{store: s} }
func (s *Store) Products() domain.ProductRepository { return &productRepo{store: s} }
func (s *Store) Users() domain.UserRepository       { return &userRepo{store: s} }

// Do 实现 domain.UnitOfWork
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	repos := domain.Repositories{
		Orders:   &orderRepo{tx: tx},
		Products: &productRepo{tx: tx},
		Users:    &userRepo{tx: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// view 在事务快照上执行，或者在加锁后直接作用于已提交数据
func (s *Store) view(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

type orderRepo struct {
	store *Store
	tx    *state
}

func (r *orderRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.store.view(r.tx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "order %s", id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.UserID == userID })
}

func (r *orderRepo) FindByStatus(_ context.Context, status domain.Status) ([]*domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.Status == status })
}

func (r *orderRepo) FindByStatusOlderThan(_ context.Context, status domain.Status, cutoff time.Time) ([]*domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.Status == status && o.CreatedAt.Before(cutoff) })
}

func (r *orderRepo) filter(match func(o domain.Order) bool) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.store.view(r.tx, func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				o := o
				out = append(out, &o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r *orderRepo) Save(_ context.Context, order *domain.Order) error {
	return r.store.view(r.tx, func(st *state) error {
		existing, ok := st.orders[order.ID]
		switch {
		case order.Version == 0 && ok:
			return errors.Wrapf(domain.ErrConcurrentUpdate, "order %s already exists", order.ID)
		case order.Version != 0 && !ok:
			return errors.Wrapf(domain.ErrNotFound, "order %s", order.ID)
		case order.Version != 0 && existing.Version != order.Version:
			return errors.Wrapf(domain.ErrConcurrentUpdate, "order %s: version %d, stored %d",
				order.ID, order.Version, existing.Version)
		}
		order.Version++
		st.orders[order.ID] = *order
		return nil
	})
}

func (r *orderRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	var exists bool
	err := r.store.view(r.tx, func(st *state) error {
		_, exists = st.orders[id]
		return nil
	})
	return exists, err
}

func (r *orderRepo) DeleteByID(_ context.Context, id string) error {
	return r.store.view(r.tx, func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return errors.Wrapf(domain.ErrNotFound, "order %s", id)
		}
		delete(st.orders, id)
		return nil
	})
}

type productRepo struct {
	store *Store
	tx    *state
}

func (r *productRepo) FindByID(_ context.Context, id string) (*domain.Product, error) {
	var out *domain.Product
	err := r.store.view(r.tx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "product %s", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *productRepo) Save(_ context.Context, product *domain.Product) error {
	return r.store.view(r.tx, func(st *state) error {
		st.products[product.ID] = *product
		return nil
	})
}

type userRepo struct {
	store *Store
	tx    *state
}

func (r *userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.store.view(r.tx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "user %s", id)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) Save(_ context.Context, user *domain.User) error {
	return r.store.view(r.tx, func(st *state) error {
		st.users[user.ID] = *user
		return nil
	})
}

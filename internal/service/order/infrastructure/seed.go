package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

// Seed 写入配置里的用户和商品。已存在的记录保持不变，重启不会把库存重置。
func Seed(ctx context.Context, uow domain.UnitOfWork, seed bootstrap.SeedConfig) error {
	var users, products int
	err := uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		for _, u := range seed.Users {
			_, err := repos.Users.FindByID(ctx, u.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err := repos.Users.Save(ctx, &domain.User{ID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
				return err
			}
			users++
		}
		for _, p := range seed.Products {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return errors.Wrapf(err, "seed product %s: invalid price %q", p.ID, p.Price)
			}
			if p.Stock < 0 {
				return errors.Errorf("seed product %s: negative stock", p.ID)
			}
			_, err = repos.Products.FindByID(ctx, p.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err := repos.Products.Save(ctx, &domain.Product{ID: p.ID, Name: p.Name, Price: price, Stock: p.Stock}); err != nil {
				return err
			}
			products++
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Int("users", users).Int("products", products).Msg("seed data written")
	return nil
}

// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"orderflow/internal/service/order/domain"
)

// toDomainOrder 将数据库模型转换为领域模型
func toDomainOrder(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	return &domain.Order{
		ID:        m.ID,
		UserID:    m.UserID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Total:     m.Total,
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Version:   m.Version,
	}
}

// fromDomainOrder 用于插入：Version 由仓储决定
func fromDomainOrder(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:        o.ID,
		UserID:    o.UserID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Total:     o.Total,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		Version:   o.Version,
	}
}

func toDomainOrders(models []OrderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{ID: m.ID, Name: m.Name, Price: m.Price, Stock: m.Stock}
}

func fromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

func toDomainUser(m *UserModel) *domain.User {
	return &domain.User{ID: m.ID, Name: m.Name, Email: m.Email}
}

func fromDomainUser(u *domain.User) *UserModel {
	return &UserModel{ID: u.ID, Name: u.Name, Email: u.Email}
}

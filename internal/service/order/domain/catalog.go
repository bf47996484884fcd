package domain

import "github.com/shopspring/decimal"

// User 是订单的所属用户（用户管理本身不在本服务范围内）
type User struct {
	ID    string
	Name  string
	Email string
}

// Product 是被购买的商品，Stock 为可用库存
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Reserve 扣减库存
func (p *Product) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.Stock == 0 {
		return ErrOutOfStock
	}
	if p.Stock < quantity {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

// Release 归还库存
func (p *Product) Release(quantity int) {
	if quantity > 0 {
		p.Stock += quantity
	}
}

package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories 聚合各仓储，便于在同一事务里组合使用
type Repositories struct {
	db        *gorm.DB
	Users     UserRepository
	Shops     ShopRepository
	Products  ProductRepository
	Orders    OrderRepository
	Dashboard DashboardRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:        db,
		Users:     NewUserRepository(db),
		Shops:     NewShopRepository(db),
		Products:  NewProductRepository(db),
		Orders:    NewOrderRepository(db),
		Dashboard: NewDashboardRepository(db),
	}
}

// Transaction fn 内只能使用 tx 上的仓储，否则 sqlite 单连接下会死锁
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

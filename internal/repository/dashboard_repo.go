package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"etsy_backoffice/internal/model"
)

// DashboardTotals 仪表盘计数
type DashboardTotals struct {
	Shops          int64 `json:"shops"`
	ActiveProducts int64 `json:"active_products"`
	Orders         int64 `json:"orders"`
	PendingOrders  int64 `json:"pending_orders"`
}

// CurrencyRevenue 按币种汇总的销售额 (不含已取消订单)
type CurrencyRevenue struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Orders   int64           `json:"orders"`
}

// DashboardRepository 仪表盘只读查询，全部按 owner 隔离
type DashboardRepository interface {
	Totals(ctx context.Context, ownerID int64) (*DashboardTotals, error)
	LowStockProducts(ctx context.Context, ownerID int64, limit int) ([]model.Product, error)
	RevenueByCurrency(ctx context.Context, ownerID int64) ([]CurrencyRevenue, error)
	RecentOrders(ctx context.Context, ownerID int64, limit int) ([]model.Order, error)
}

type dashboardRepo struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepo{db: db}
}

func (r *dashboardRepo) ownedShops(ctx context.Context, ownerID int64) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Select("id").Where("owner_id = ?", ownerID)
}

func (r *dashboardRepo) Totals(ctx context.Context, ownerID int64) (*DashboardTotals, error) {
	out := &DashboardTotals{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Shop{}).Where("owner_id = ?", ownerID).Count(&out.Shops).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).
		Where("shop_id IN (?) AND is_active = ?", r.ownedShops(ctx, ownerID), true).
		Count(&out.ActiveProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Order{}).
		Where("shop_id IN (?)", r.ownedShops(ctx, ownerID)).
		Count(&out.Orders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Order{}).
		Where("shop_id IN (?) AND status = ?", r.ownedShops(ctx, ownerID), model.OrderStatusPending).
		Count(&out.PendingOrders).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LowStockProducts quantity <= low_stock_threshold 的在售商品
func (r *dashboardRepo) LowStockProducts(ctx context.Context, ownerID int64, limit int) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id IN (?) AND is_active = ? AND quantity <= low_stock_threshold", r.ownedShops(ctx, ownerID), true).
		Order("quantity ASC, id ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *dashboardRepo) RevenueByCurrency(ctx context.Context, ownerID int64) ([]CurrencyRevenue, error) {
	var rows []CurrencyRevenue
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("currency, COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS orders").
		Where("shop_id IN (?) AND status <> ?", r.ownedShops(ctx, ownerID), model.OrderStatusCancelled).
		Group("currency").
		Order("currency ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	// sqlite 以浮点求和，统一收敛到两位小数
	for i := range rows {
		rows[i].Total = rows[i].Total.Round(2)
	}
	return rows, nil
}

func (r *dashboardRepo) RecentOrders(ctx context.Context, ownerID int64, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id IN (?)", r.ownedShops(ctx, ownerID)).
		Order("sale_date DESC, id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"etsy_backoffice/internal/model"
)

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
// 订单与明细是一次写入的事实数据，之后只允许状态前进
type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.Order, error)
	GetByReceipt(ctx context.Context, shopID, receiptID int64) (*model.Order, error)
	ListByShop(ctx context.Context, shopID int64) ([]model.Order, error)

	// 同步
	CreateIfAbsent(ctx context.Context, order *model.Order) (created bool, err error)
	AdvanceStatus(ctx context.Context, id int64, from, to string) (bool, error)
	InsertItems(ctx context.Context, items []model.OrderItem) (int64, error)

	WithTx(tx *gorm.DB) OrderRepository
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

// GetByID 根据 ID 获取订单 (含明细)
func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDForOwner 只能访问自己店铺的订单
func (r *orderRepository) GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Joins("JOIN shops ON shops.id = orders.shop_id").
		Where("orders.id = ? AND shops.owner_id = ?", id, ownerID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByReceipt(ctx context.Context, shopID, receiptID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND etsy_receipt_id = ?", shopID, receiptID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByShop(ctx context.Context, shopID int64) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("sale_date DESC").
		Find(&orders).Error
	return orders, err
}

// CreateIfAbsent 首次出现时创建订单头，已存在则回填 ID 与当前状态
func (r *orderRepository) CreateIfAbsent(ctx context.Context, order *model.Order) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "etsy_receipt_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	existing, err := r.GetByReceipt(ctx, order.ShopID, order.EtsyReceiptID)
	if err != nil {
		return false, err
	}
	*order = *existing
	return false, nil
}

// AdvanceStatus 条件更新，状态已被别人改过时返回 false
func (r *orderRepository) AdvanceStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// InsertItems 明细一次写入，(order_id, etsy_transaction_id) 冲突时忽略
func (r *orderRepository) InsertItems(ctx context.Context, items []model.OrderItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "etsy_transaction_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).CreateInBatches(&items, upsertBatchSize)
	return res.RowsAffected, res.Error
}

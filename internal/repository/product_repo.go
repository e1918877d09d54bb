package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"etsy_backoffice/internal/model"
)

// 单批写入行数，控制在 sqlite / postgres 参数上限以内
const upsertBatchSize = 200

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	ListByShop(ctx context.Context, shopID int64) ([]model.Product, error)

	// 同步
	BatchUpsert(ctx context.Context, products []model.Product) error
	DeactivateMissing(ctx context.Context, shopID int64, seenListingIDs []int64, at time.Time) (int64, error)
	MapListingIDs(ctx context.Context, shopID int64, listingIDs []int64) (map[int64]int64, error)

	WithTx(tx *gorm.DB) ProductRepository
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) ListByShop(ctx context.Context, shopID int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

// BatchUpsert 按 (shop_id, etsy_listing_id) 插入或整体覆盖同步列
// low_stock_threshold 不在覆盖列中，本地设置永远保留
func (r *productRepo) BatchUpsert(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "etsy_listing_id"}},
		DoUpdates: clause.AssignmentColumns(model.ProductSyncColumns),
	}).CreateInBatches(&products, upsertBatchSize).Error
}

// DeactivateMissing 本轮未出现的商品软下架，从不物理删除
func (r *productRepo) DeactivateMissing(ctx context.Context, shopID int64, seenListingIDs []int64, at time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("shop_id = ? AND is_active = ?", shopID, true)
	// NOT IN () 在空切片时会被渲染成 NOT IN (NULL)，一条都匹配不上
	if len(seenListingIDs) > 0 {
		query = query.Where("etsy_listing_id NOT IN ?", seenListingIDs)
	}
	res := query.Updates(map[string]interface{}{
		"is_active":  false,
		"updated_at": at,
	})
	return res.RowsAffected, res.Error
}

// MapListingIDs etsy_listing_id -> 本地 product.id
func (r *productRepo) MapListingIDs(ctx context.Context, shopID int64, listingIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ID            int64
		EtsyListingID int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select("id, etsy_listing_id").
		Where("shop_id = ? AND etsy_listing_id IN ?", shopID, listingIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.EtsyListingID] = row.ID
	}
	return out, nil
}

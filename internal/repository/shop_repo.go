package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"etsy_backoffice/internal/model"
)

var (
	// ErrShopLinkedElsewhere etsy_shop_id 已被其他用户连接
	ErrShopLinkedElsewhere = errors.New("shop is already linked to another account")
)

// ==================== 接口定义 ====================

// ShopRepository 店铺 (连接 + Token) 仓储接口
type ShopRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.Shop, error)
	GetByEtsyShopID(ctx context.Context, etsyShopID string) (*model.Shop, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Shop, error)

	// 定时任务
	ListSyncCandidates(ctx context.Context) ([]model.Shop, error)
	ListExpiring(ctx context.Context, before time.Time) ([]model.Shop, error)

	// OAuth 回调写入
	UpsertConnection(ctx context.Context, shop *model.Shop) (created bool, err error)

	// Token
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateTokenStatus(ctx context.Context, id int64, tokenStatus string) error
	WithShopLock(ctx context.Context, id int64, fn func(tx ShopRepository, shop *model.Shop) error) error

	// 本地配置
	UpdateSettings(ctx context.Context, id int64, settings ShopSettings) error

	// 同步
	LockActive(ctx context.Context, id int64) (*model.Shop, error)
	RecordSync(ctx context.Context, id int64, at time.Time, syncErr string) error

	// 断开
	DeleteCascade(ctx context.Context, id int64) (*CascadeResult, error)

	WithTx(tx *gorm.DB) ShopRepository
}

// ShopSettings 可由用户修改的本地字段，nil 表示不修改
type ShopSettings struct {
	SyncEnabled  *bool
	SyncInterval *int
}

// CascadeResult 断开店铺时各表删除行数
type CascadeResult struct {
	OrderItems int64 `json:"order_items"`
	Orders     int64 `json:"orders"`
	Products   int64 `json:"products"`
	Shops      int64 `json:"shops"`
}

// OAuth 回调时覆盖的列
// sync_enabled / sync_interval / last_sync_at 属于本地配置，不覆盖
var connectionColumns = []string{
	"etsy_user_id", "shop_name", "currency_code",
	"access_token", "refresh_token", "token_expires_at", "token_status",
	"granted_scopes", "is_active", "updated_at",
}

// ==================== 仓储实现 ====================

type shopRepo struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓储
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepo{db: db}
}

func (r *shopRepo) WithTx(tx *gorm.DB) ShopRepository {
	return &shopRepo{db: tx}
}

func (r *shopRepo) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).First(&shop, id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) GetByIDForOwner(ctx context.Context, id, ownerID int64) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) GetByEtsyShopID(ctx context.Context, etsyShopID string) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).Where("etsy_shop_id = ?", etsyShopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&shops).Error
	return shops, err
}

// ListSyncCandidates 可参与自动同步的店铺，是否到期由调用方判断
func (r *shopRepo) ListSyncCandidates(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND sync_enabled = ? AND token_status <> ?", true, true, model.TokenStatusInvalid).
		Order("last_sync_at ASC").
		Find(&shops).Error
	return shops, err
}

// ListExpiring token 在 before 之前过期且仍可刷新的店铺
func (r *shopRepo) ListExpiring(ctx context.Context, before time.Time) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND token_status <> ? AND token_expires_at <= ?", true, model.TokenStatusInvalid, before).
		Find(&shops).Error
	return shops, err
}

// UpsertConnection 按 etsy_shop_id 插入或更新
// 同一用户重复授权: 覆盖 token 与店铺名；其他用户已连接: ErrShopLinkedElsewhere
func (r *shopRepo) UpsertConnection(ctx context.Context, shop *model.Shop) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Shop
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("etsy_shop_id = ?", shop.EtsyShopID).
			Take(&existing).Error
		switch {
		case err == nil:
			if existing.OwnerID != shop.OwnerID {
				return ErrShopLinkedElsewhere
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
		default:
			return err
		}

		// 并发插入同一个店铺时由 ON CONFLICT 兜底，WHERE 保证不会抢走别人的店铺
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "etsy_shop_id"}},
			DoUpdates: clause.AssignmentColumns(connectionColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "shops.owner_id = excluded.owner_id"},
			}},
		}).Create(shop)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrShopLinkedElsewhere
		}

		// 重新读取，拿到主键与未被覆盖的本地字段
		return tx.Where("etsy_shop_id = ?", shop.EtsyShopID).Take(shop).Error
	})
	return created, err
}

// UpdateTokens 刷新成功后覆盖 token
// 使用结构体更新，保证经过 secret 序列化器加密
func (r *shopRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Shop{}).
		Where("id = ?", id).
		Select("access_token", "refresh_token", "token_expires_at", "token_status", "updated_at").
		Updates(&model.Shop{
			AccessToken:    accessToken,
			RefreshToken:   refreshToken,
			TokenExpiresAt: expiresAt,
			TokenStatus:    model.TokenStatusValid,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *shopRepo) UpdateTokenStatus(ctx context.Context, id int64, tokenStatus string) error {
	return r.db.WithContext(ctx).
		Model(&model.Shop{}).
		Where("id = ?", id).
		Update("token_status", tokenStatus).Error
}

func (r *shopRepo) UpdateSettings(ctx context.Context, id int64, settings ShopSettings) error {
	fields := map[string]interface{}{}
	if settings.SyncEnabled != nil {
		fields["sync_enabled"] = *settings.SyncEnabled
	}
	if settings.SyncInterval != nil {
		fields["sync_interval"] = *settings.SyncInterval
	}
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", id).Updates(fields).Error
}

// LockActive 在事务中锁定店铺行 (sqlite 忽略 FOR UPDATE)
// 店铺已断开或停用时返回 gorm.ErrRecordNotFound
func (r *shopRepo) LockActive(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", id, true).
		Take(&shop).Error
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// WithShopLock 在事务中以 FOR UPDATE 锁住店铺行再执行 fn，多实例间同一店铺串行
// fn 内只能使用传入的 tx 仓储；店铺不存在时返回 gorm.ErrRecordNotFound
func (r *shopRepo) WithShopLock(ctx context.Context, id int64, fn func(tx ShopRepository, shop *model.Shop) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shop model.Shop
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&shop).Error
		if err != nil {
			return err
		}
		return fn(&shopRepo{db: tx}, &shop)
	})
}

// RecordSync 记录同步结果，成功时 syncErr 为空并刷新 last_sync_at
func (r *shopRepo) RecordSync(ctx context.Context, id int64, at time.Time, syncErr string) error {
	fields := map[string]interface{}{"last_sync_err": syncErr}
	if syncErr == "" {
		fields["last_sync_at"] = at
	}
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCascade 按 明细 -> 订单 -> 商品 -> 店铺 顺序物理删除
// 调用方负责放在事务里
func (r *shopRepo) DeleteCascade(ctx context.Context, id int64) (*CascadeResult, error) {
	db := r.db.WithContext(ctx)
	out := &CascadeResult{}

	orderIDs := db.Model(&model.Order{}).Select("id").Where("shop_id = ?", id)
	res := db.Where("order_id IN (?)", orderIDs).Delete(&model.OrderItem{})
	if res.Error != nil {
		return nil, res.Error
	}
	out.OrderItems = res.RowsAffected

	if res = db.Where("shop_id = ?", id).Delete(&model.Order{}); res.Error != nil {
		return nil, res.Error
	}
	out.Orders = res.RowsAffected

	if res = db.Where("shop_id = ?", id).Delete(&model.Product{}); res.Error != nil {
		return nil, res.Error
	}
	out.Products = res.RowsAffected

	if res = db.Delete(&model.Shop{}, id); res.Error != nil {
		return nil, res.Error
	}
	out.Shops = res.RowsAffected
	return out, nil
}

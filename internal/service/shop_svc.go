package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
)

// 自动同步间隔范围 (分钟)
const (
	minSyncInterval = 5
	maxSyncInterval = 24 * 60
)

// ShopService 店铺查询与本地设置，所有操作都校验归属
type ShopService struct {
	repos *repository.Repositories
	sync  *SyncService
}

func NewShopService(repos *repository.Repositories, sync *SyncService) *ShopService {
	return &ShopService{repos: repos, sync: sync}
}

// ListShops 当前用户的店铺
func (s *ShopService) ListShops(ctx context.Context, ownerID int64) (*dto.ShopListResp, error) {
	shops, err := s.repos.Shops.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := &dto.ShopListResp{Total: len(shops), List: make([]dto.ShopResp, 0, len(shops))}
	for i := range shops {
		out.List = append(out.List, s.toResp(&shops[i]))
	}
	return out, nil
}

// GetShop 单个店铺
func (s *ShopService) GetShop(ctx context.Context, ownerID, shopID int64) (*model.Shop, error) {
	shop, err := s.repos.Shops.GetByIDForOwner(ctx, shopID, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	return shop, err
}

// GetShopResp 单个店铺 (响应结构)
func (s *ShopService) GetShopResp(ctx context.Context, ownerID, shopID int64) (*dto.ShopResp, error) {
	shop, err := s.GetShop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	resp := s.toResp(shop)
	return &resp, nil
}

// UpdateSettings 修改 sync_enabled / sync_interval，同步永远不会覆盖这两项
func (s *ShopService) UpdateSettings(ctx context.Context, ownerID, shopID int64, req *dto.ShopSettingsReq) (*dto.ShopResp, error) {
	if req.SyncInterval != nil && (*req.SyncInterval < minSyncInterval || *req.SyncInterval > maxSyncInterval) {
		return nil, fmt.Errorf("%w: sync_interval must be between %d and %d minutes", ErrInvalidSettings, minSyncInterval, maxSyncInterval)
	}
	if _, err := s.GetShop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	if err := s.repos.Shops.UpdateSettings(ctx, shopID, repository.ShopSettings{
		SyncEnabled:  req.SyncEnabled,
		SyncInterval: req.SyncInterval,
	}); err != nil {
		return nil, err
	}
	return s.GetShopResp(ctx, ownerID, shopID)
}

// ListProducts 店铺商品
func (s *ShopService) ListProducts(ctx context.Context, ownerID, shopID int64) (*dto.ProductListResponse, error) {
	if _, err := s.GetShop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	products, err := s.repos.Products.ListByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return &dto.ProductListResponse{Total: len(products), List: products}, nil
}

func (s *ShopService) toResp(shop *model.Shop) dto.ShopResp {
	resp := dto.NewShopResp(shop)
	if s.sync != nil {
		resp.Syncing = s.sync.IsSyncing(shop.ID)
	}
	return resp
}

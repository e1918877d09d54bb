package dto

import (
	"time"

	"etsy_backoffice/internal/model"
)

// ================== Shop DTO ==================

// ShopResp 店铺响应，不含任何 token
type ShopResp struct {
	ID             int64      `json:"id"`
	EtsyShopID     string     `json:"etsy_shop_id"`
	EtsyUserID     string     `json:"etsy_user_id"`
	ShopName       string     `json:"shop_name"`
	CurrencyCode   string     `json:"currency_code"`
	TokenStatus    string     `json:"token_status"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	NeedsReauth    bool       `json:"needs_reauth"`
	GrantedScopes  []string   `json:"granted_scopes"`
	IsActive       bool       `json:"is_active"`
	SyncEnabled    bool       `json:"sync_enabled"`
	SyncInterval   int        `json:"sync_interval"`
	Syncing        bool       `json:"syncing"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
	LastSyncError  string     `json:"last_sync_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewShopResp 模型转响应
func NewShopResp(s *model.Shop) ShopResp {
	scopes := []string(s.GrantedScopes)
	if scopes == nil {
		scopes = []string{}
	}
	return ShopResp{
		ID:             s.ID,
		EtsyShopID:     s.EtsyShopID,
		EtsyUserID:     s.EtsyUserID,
		ShopName:       s.ShopName,
		CurrencyCode:   s.CurrencyCode,
		TokenStatus:    s.TokenStatus,
		TokenExpiresAt: s.TokenExpiresAt,
		NeedsReauth:    s.NeedsReauth(),
		GrantedScopes:  scopes,
		IsActive:       s.IsActive,
		SyncEnabled:    s.SyncEnabled,
		SyncInterval:   s.SyncInterval,
		LastSyncAt:     s.LastSyncAt,
		LastSyncError:  s.LastSyncErr,
		CreatedAt:      s.CreatedAt,
	}
}

// ShopListResp 店铺列表响应
type ShopListResp struct {
	Total int        `json:"total"`
	List  []ShopResp `json:"list"`
}

// ShopSettingsReq 本地同步设置，字段为空表示不修改
type ShopSettingsReq struct {
	SyncEnabled  *bool `json:"sync_enabled"`
	SyncInterval *int  `json:"sync_interval" binding:"omitempty,min=5,max=1440"`
}

// ConnectResp 发起授权
type ConnectResp struct {
	AuthURL string `json:"auth_url"`
}

// CallbackResp 授权完成
type CallbackResp struct {
	State   string   `json:"state"`
	Created bool     `json:"created"`
	Shop    ShopResp `json:"shop"`
}

// DisconnectResp 断开店铺时删除的数据量
type DisconnectResp struct {
	Products   int64 `json:"products"`
	Orders     int64 `json:"orders"`
	OrderItems int64 `json:"order_items"`
}

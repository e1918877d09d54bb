package model

import (
	"time"

	// 注册 gorm 的 secret 序列化器 (init)
	_ "etsy_backoffice/pkg/security"
)

// Token 状态常量
const (
	TokenStatusValid   = "valid"        // 有效
	TokenStatusExpired = "expired"      // 已过期 (刷新暂时失败)
	TokenStatusInvalid = "auth_invalid" // 需重新授权
)

const DefaultSyncInterval = 15 // 分钟

// Shop 已连接的 Etsy 店铺，同时保存 OAuth Token
type Shop struct {
	BaseModel

	// 1. 归属
	OwnerID int64 `gorm:"index;not null" json:"owner_id"`

	// 2. 核心身份
	// etsy_shop_id 全局唯一: 同一个 Etsy 店铺只能被一个用户连接
	EtsyShopID   string `gorm:"size:64;uniqueIndex;not null" json:"etsy_shop_id"`
	EtsyUserID   string `gorm:"size:64;index" json:"etsy_user_id"`
	ShopName     string `gorm:"size:255" json:"shop_name"`
	CurrencyCode string `gorm:"size:8" json:"currency_code"`

	// 3. API Token (落库加密，永不输出到 JSON / 日志)
	AccessToken    string    `gorm:"type:text;serializer:secret" json:"-"`
	RefreshToken   string    `gorm:"type:text;serializer:secret" json:"-"`
	TokenExpiresAt time.Time `gorm:"index" json:"token_expires_at"`
	TokenStatus    string    `gorm:"index;size:20;default:'valid'" json:"token_status"`
	GrantedScopes  Scopes    `json:"granted_scopes"`

	// 4. 本地配置 (同步不覆盖)
	IsActive     bool       `gorm:"not null" json:"is_active"`
	SyncEnabled  bool       `gorm:"not null" json:"sync_enabled"`
	SyncInterval int        `gorm:"not null;default:15" json:"sync_interval"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	LastSyncErr  string     `gorm:"type:text" json:"last_sync_error,omitempty"`

	// 5. 关联关系 (断开时按 明细 -> 订单 -> 商品 -> 店铺 顺序删除)
	Products []Product `gorm:"foreignKey:ShopID;constraint:OnDelete:CASCADE" json:"-"`
	Orders   []Order   `gorm:"foreignKey:ShopID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Shop) TableName() string {
	return "shops"
}

// TokenExpiresWithin token 是否会在 window 内过期 (含边界)
func (s *Shop) TokenExpiresWithin(now time.Time, window time.Duration) bool {
	return !s.TokenExpiresAt.After(now.Add(window))
}

// NeedsReauth 刷新令牌已被撤销，只能重新走 OAuth
func (s *Shop) NeedsReauth() bool {
	return s.TokenStatus == TokenStatusInvalid
}

// IsSyncDue 是否到了下一次自动同步时间
func (s *Shop) IsSyncDue(now time.Time) bool {
	if !s.IsActive || !s.SyncEnabled || s.NeedsReauth() {
		return false
	}
	if s.LastSyncAt == nil {
		return true
	}
	interval := s.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return !s.LastSyncAt.Add(time.Duration(interval) * time.Minute).After(now)
}

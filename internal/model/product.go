package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultLowStockThreshold = 5

// Product 从 Etsy listing 同步的商品
// (shop_id, etsy_listing_id) 唯一
type Product struct {
	BaseModel
	ShopID        int64 `gorm:"uniqueIndex:idx_shop_listing;not null" json:"shop_id"`
	EtsyListingID int64 `gorm:"uniqueIndex:idx_shop_listing;not null" json:"etsy_listing_id"`

	// --- 商品基本信息 ---
	SKU         string `gorm:"size:100;index" json:"sku"`
	Title       string `gorm:"size:500" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	URL         string `gorm:"size:512" json:"url"`
	State       string `gorm:"size:20" json:"state"` // Etsy 原始状态: active, inactive, sold_out...

	// --- 价格与数量 ---
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CurrencyCode string          `gorm:"size:8" json:"currency_code"`
	Quantity     int             `gorm:"not null" json:"quantity"`

	// --- 本地字段 (同步不覆盖) ---
	LowStockThreshold int `gorm:"not null;default:5" json:"low_stock_threshold"`

	IsActive     bool       `gorm:"index;not null" json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

func (Product) TableName() string {
	return "products"
}

// IsLowStock 库存是否低于阈值
func (p *Product) IsLowStock() bool {
	return p.IsActive && p.Quantity <= p.LowStockThreshold
}

// ProductSyncColumns 同步时整体覆盖的列
// low_stock_threshold 属于本地配置，不在其中
var ProductSyncColumns = []string{
	"sku", "title", "description", "url", "state",
	"price", "currency_code", "quantity",
	"is_active", "last_synced_at", "updated_at",
}

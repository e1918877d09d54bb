package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== 订单状态 ====================

const (
	OrderStatusPending    = "pending"    // 待处理
	OrderStatusProcessing = "processing" // 已付款，处理中
	OrderStatusCompleted  = "completed"  // 已完成 (已发货)
	OrderStatusCancelled  = "cancelled"  // 已取消
)

// 状态只能前进
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition from -> to 是否是合法的前进方向
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus 是否为已知状态
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ==================== Order 订单 (Etsy receipt) ====================

// Order 首次同步时创建，之后只允许状态前进
type Order struct {
	BaseModel
	ShopID        int64 `gorm:"uniqueIndex:idx_shop_receipt;not null" json:"shop_id"`
	EtsyReceiptID int64 `gorm:"uniqueIndex:idx_shop_receipt;not null" json:"etsy_receipt_id"`

	// 买家信息
	BuyerName  string `gorm:"size:255" json:"buyer_name"`
	BuyerEmail string `gorm:"size:255" json:"buyer_email"`

	// 金额
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency    string          `gorm:"size:8;default:'USD'" json:"currency"`

	// 状态
	Status     string `gorm:"size:20;index;not null" json:"status"`
	EtsyStatus string `gorm:"size:32" json:"etsy_status"`

	SaleDate time.Time `gorm:"index" json:"sale_date"`

	// Etsy 原始数据
	RawPayload datatypes.JSON `json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal completed / cancelled 之后不再变化
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// ==================== OrderItem 订单明细 (Etsy transaction) ====================

// OrderItem 一次写入，(order_id, etsy_transaction_id) 唯一
type OrderItem struct {
	BaseModel
	OrderID           int64 `gorm:"uniqueIndex:idx_order_transaction;not null" json:"order_id"`
	EtsyTransactionID int64 `gorm:"uniqueIndex:idx_order_transaction;not null" json:"etsy_transaction_id"`

	// 商品被删除后置空，不级联删除明细
	ProductID     *int64   `gorm:"index" json:"product_id"`
	Product       *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL" json:"-"`
	EtsyListingID int64    `gorm:"index" json:"etsy_listing_id"`
	Title         string   `gorm:"size:500" json:"title"`
	SKU           string   `gorm:"size:100" json:"sku"`

	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// NewOrderItem 构造明细，total_price = quantity * unit_price
func NewOrderItem(transactionID, listingID int64, title, sku string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		EtsyTransactionID: transactionID,
		EtsyListingID:     listingID,
		Title:             title,
		SKU:               sku,
		Quantity:          quantity,
		UnitPrice:         unitPrice,
		TotalPrice:        LineTotal(quantity, unitPrice),
	}
}

// LineTotal 精确计算行金额
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
)

// ==================== 订单 ====================

// UpdateOrderStatusRequest 本地推进订单状态
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending processing completed cancelled"`
}

// OrderListItem 订单列表项
type OrderListItem struct {
	ID            int64           `json:"id"`
	EtsyReceiptID int64           `json:"etsy_receipt_id"`
	ShopID        int64           `json:"shop_id"`
	BuyerName     string          `json:"buyer_name"`
	Status        string          `json:"status"`
	EtsyStatus    string          `json:"etsy_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	SaleDate      time.Time       `json:"sale_date"`
}

func NewOrderListItem(o *model.Order) OrderListItem {
	return OrderListItem{
		ID:            o.ID,
		EtsyReceiptID: o.EtsyReceiptID,
		ShopID:        o.ShopID,
		BuyerName:     o.BuyerName,
		Status:        o.Status,
		EtsyStatus:    o.EtsyStatus,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		SaleDate:      o.SaleDate,
	}
}

// ListOrdersResponse 订单列表响应
type ListOrdersResponse struct {
	Total int             `json:"total"`
	List  []OrderListItem `json:"list"`
}

// OrderDetailResponse 订单详情 (含明细)
type OrderDetailResponse struct {
	OrderListItem
	BuyerEmail string            `json:"buyer_email"`
	Items      []model.OrderItem `json:"items"`
}

// ==================== 商品 ====================

// ProductListResponse 商品列表
type ProductListResponse struct {
	Total int             `json:"total"`
	List  []model.Product `json:"list"`
}

// ==================== 仪表盘 ====================

// DashboardResponse 仪表盘
type DashboardResponse struct {
	Totals       repository.DashboardTotals   `json:"totals"`
	LowStock     []model.Product              `json:"low_stock"`
	Revenue      []repository.CurrencyRevenue `json:"revenue"`
	RecentOrders []OrderListItem              `json:"recent_orders"`
}

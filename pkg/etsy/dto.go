package etsy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ==========================================
// DTO: 用于接收 Etsy API 返回的原始 JSON 数据
// ==========================================

// ID Etsy 的 ID 在不同接口里可能是数字也可能是字符串，统一按字符串保存
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int64 数值形式，非数字返回 0
func (id ID) Int64() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}

// Money Etsy 金额结构 amount / divisor
type Money struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

// Decimal 精确换算为两位小数
func (m Money) Decimal() decimal.Decimal {
	if m.Divisor == 0 {
		return decimal.NewFromInt(m.Amount)
	}
	return decimal.NewFromInt(m.Amount).DivRound(decimal.NewFromInt(m.Divisor), 2)
}

// ErrorResponse API 错误体
// 资源接口: {"error": "..."}，OAuth 接口: {"error": "invalid_grant", "error_description": "..."}
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DefaultTokenLifetime Etsy 未返回 expires_in 时按 1 小时处理
const DefaultTokenLifetime = time.Hour

// Token OAuth 令牌，禁止写入日志
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// ExpiresAt 以 now 为起点计算过期时间
func (t *Token) ExpiresAt(now time.Time) time.Time {
	lifetime := t.ExpiresIn
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return now.Add(lifetime)
}

// MeResponse GET /application/users/me
type MeResponse struct {
	UserID ID `json:"user_id"`
	ShopID ID `json:"shop_id"`
}

// Shop 店铺
type Shop struct {
	ShopID       ID     `json:"shop_id"`
	UserID       ID     `json:"user_id"`
	ShopName     string `json:"shop_name"`
	CurrencyCode string `json:"currency_code"`
	URL          string `json:"url"`
}

// ShopsResponse GET /application/users/{user_id}/shops
type ShopsResponse struct {
	Count   int    `json:"count"`
	Results []Shop `json:"results"`
}

// Listing 商品 (只保留同步需要的字段)
type Listing struct {
	ListingID   int64    `json:"listing_id"`
	ShopID      int64    `json:"shop_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	Quantity    int      `json:"quantity"`
	URL         string   `json:"url"`
	Skus        []string `json:"skus"`
	Price       Money    `json:"price"`
}

// SKU 第一个 SKU
func (l Listing) SKU() string {
	if len(l.Skus) == 0 {
		return ""
	}
	return l.Skus[0]
}

// ListingsResponse 列表响应结构
type ListingsResponse struct {
	Count   int       `json:"count"`
	Results []Listing `json:"results"`
}

// Receipt Etsy 订单
type Receipt struct {
	ReceiptID       int64         `json:"receipt_id"`
	BuyerUserID     int64         `json:"buyer_user_id"`
	BuyerEmail      string        `json:"buyer_email"`
	Name            string        `json:"name"`
	Status          string        `json:"status"`
	IsPaid          bool          `json:"is_paid"`
	IsShipped       bool          `json:"is_shipped"`
	CreateTimestamp int64         `json:"create_timestamp"`
	UpdateTimestamp int64         `json:"update_timestamp"`
	GrandTotal      Money         `json:"grandtotal"`
	Subtotal        Money         `json:"subtotal"`
	Transactions    []Transaction `json:"transactions"`
}

// CreatedAt 下单时间
func (r Receipt) CreatedAt() time.Time {
	if r.CreateTimestamp == 0 {
		return time.Time{}
	}
	return time.Unix(r.CreateTimestamp, 0).UTC()
}

// Transaction Etsy 交易 (订单明细)
type Transaction struct {
	TransactionID int64  `json:"transaction_id"`
	ReceiptID     int64  `json:"receipt_id"`
	ListingID     int64  `json:"listing_id"`
	Title         string `json:"title"`
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity"`
	Price         Money  `json:"price"`
}

// ReceiptsResponse GET /application/shops/{shop_id}/receipts
type ReceiptsResponse struct {
	Count   int       `json:"count"`
	Results []Receipt `json:"results"`
}

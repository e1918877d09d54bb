package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/metrics"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/pkg/etsy"
	"etsy_backoffice/pkg/utils"
)

// EtsyCatalogClient 同步用到的 Etsy 接口 (*etsy.Client 实现)
type EtsyCatalogClient interface {
	ListActiveListings(ctx context.Context, accessToken, shopID string, limit, offset int) (*etsy.ListingsResponse, error)
	ListReceipts(ctx context.Context, accessToken, shopID string, minCreated time.Time, limit, offset int) (*etsy.ReceiptsResponse, error)
}

// SyncReport 单次同步结果
type SyncReport struct {
	ShopID           int64         `json:"shop_id"`
	Listings         int           `json:"listings"`
	ListingsComplete bool          `json:"listings_complete"`
	Deactivated      int64         `json:"deactivated"`
	Receipts         int           `json:"receipts"`
	OrdersCreated    int           `json:"orders_created"`
	OrdersAdvanced   int           `json:"orders_advanced"`
	ItemsInserted    int64         `json:"items_inserted"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// ==================== SyncService ====================

// SyncService 把 Etsy 商品与订单镜像到本地
// 同一店铺同一时刻只允许一个同步；不同店铺可以并发
type SyncService struct {
	repos   *repository.Repositories
	tokens  *TokenService
	client  EtsyCatalogClient
	cfg     config.SyncConfig
	locks   *utils.KeyedLock
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewSyncService(repos *repository.Repositories, tokens *TokenService, client EtsyCatalogClient, cfg config.SyncConfig, m *metrics.Metrics, log *zap.Logger) *SyncService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &SyncService{
		repos:   repos,
		tokens:  tokens,
		client:  client,
		cfg:     cfg,
		locks:   utils.NewKeyedLock(),
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// SetClock 替换时钟 (测试用)
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// IsSyncing 店铺是否正在同步
func (s *SyncService) IsSyncing(shopID int64) bool {
	return s.locks.Held(shopID)
}

// SyncShop 同步一个店铺，已在同步中时返回 ErrSyncInProgress
func (s *SyncService) SyncShop(ctx context.Context, shopID int64) (*SyncReport, error) {
	release, ok := s.locks.TryLock(shopID)
	if !ok {
		s.metrics.ObserveSync(metrics.OutcomeSkipped, 0)
		return nil, ErrSyncInProgress
	}
	defer release()

	start := s.now()
	report, err := s.syncShop(ctx, shopID, start)
	elapsed := time.Since(start)
	log := s.log.With(zap.Int64("shop_id", shopID))

	switch {
	case err == nil:
		report.Duration = elapsed
		s.metrics.ObserveSync(metrics.OutcomeSuccess, elapsed)
		s.metrics.AddRecords("products", report.Listings)
		s.metrics.AddRecords("orders", report.OrdersCreated)
		s.metrics.AddRecords("order_items", int(report.ItemsInserted))
		log.Info("shop synced",
			zap.Int("listings", report.Listings),
			zap.Int64("deactivated", report.Deactivated),
			zap.Int("orders_created", report.OrdersCreated),
			zap.Int("orders_advanced", report.OrdersAdvanced),
			zap.Duration("elapsed", elapsed))
		return report, nil

	case errors.Is(err, ErrShopGone), errors.Is(err, ErrShopNotFound):
		s.metrics.ObserveSync(metrics.OutcomeSkipped, elapsed)
		log.Info("sync aborted, shop no longer active")
		return nil, err

	default:
		outcome := metrics.OutcomeFailed
		if IsRefreshRejected(err) {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.ObserveSync(outcome, elapsed)
		log.Warn("shop sync failed", zap.Error(err))
		// 失败信息落库供前端展示，店铺可能已被删除，忽略 RecordSync 的错误
		if rerr := s.repos.Shops.RecordSync(ctx, shopID, start, truncate(err.Error(), 500)); rerr != nil {
			log.Warn("record sync error failed", zap.Error(rerr))
		}
		return nil, err
	}
}

func (s *SyncService) syncShop(ctx context.Context, shopID int64, now time.Time) (*SyncReport, error) {
	shop, err := findShop(ctx, s.repos.Shops, shopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsActive {
		return nil, ErrShopGone
	}

	accessToken, err := s.tokens.GetValidAccessToken(ctx, shop)
	if err != nil {
		return nil, err
	}

	// 先在事务外把远端数据拉全，避免长事务
	listings, complete, err := s.fetchListings(ctx, shop, accessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	receipts, err := s.fetchReceipts(ctx, shop, accessToken, now)
	if err != nil {
		return nil, fmt.Errorf("fetch receipts: %w", err)
	}

	report := &SyncReport{
		ShopID:           shopID,
		Listings:         len(listings),
		ListingsComplete: complete,
		Receipts:         len(receipts),
		StartedAt:        now,
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// 拉取期间店铺可能已被断开或停用
		if _, err := tx.Shops.LockActive(ctx, shopID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShopGone
			}
			return err
		}

		if err := s.saveProducts(ctx, tx, shop, listings, complete, now, report); err != nil {
			return err
		}
		if err := s.saveOrders(ctx, tx, shop, receipts, report); err != nil {
			return err
		}
		return tx.Shops.RecordSync(ctx, shopID, now, "")
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ==================== 拉取 ====================

// fetchListings 分页拉取在售商品，complete 表示确实拉到了最后一页
func (s *SyncService) fetchListings(ctx context.Context, shop *model.Shop, accessToken string) ([]etsy.Listing, bool, error) {
	var out []etsy.Listing
	offset := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		resp, err := s.client.ListActiveListings(ctx, accessToken, shop.EtsyShopID, s.cfg.PageSize, offset)
		if err != nil {
			return nil, false, err
		}
		out = append(out, resp.Results...)
		offset += len(resp.Results)
		if len(resp.Results) < s.cfg.PageSize || (resp.Count > 0 && offset >= resp.Count) {
			return dedupeListings(out), true, nil
		}
	}
	s.log.Warn("listing pages truncated, skipping deactivation",
		zap.Int64("shop_id", shop.ID),
		zap.Int("max_pages", s.cfg.MaxPages))
	return dedupeListings(out), false, nil
}

// dedupeListings 按 offset 分页时，拉取期间上下架会让同一商品出现在相邻两页
// 同一条 INSERT ... ON CONFLICT 不能两次命中同一行，保留最后一次出现的数据
func dedupeListings(in []etsy.Listing) []etsy.Listing {
	index := make(map[int64]int, len(in))
	out := make([]etsy.Listing, 0, len(in))
	for _, l := range in {
		if i, ok := index[l.ListingID]; ok {
			out[i] = l
			continue
		}
		index[l.ListingID] = len(out)
		out = append(out, l)
	}
	return out
}

func (s *SyncService) fetchReceipts(ctx context.Context, shop *model.Shop, accessToken string, now time.Time) ([]etsy.Receipt, error) {
	var minCreated time.Time
	if s.cfg.ReceiptLookback > 0 {
		minCreated = now.Add(-s.cfg.ReceiptLookback)
	}

	var out []etsy.Receipt
	offset := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		resp, err := s.client.ListReceipts(ctx, accessToken, shop.EtsyShopID, minCreated, s.cfg.PageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		offset += len(resp.Results)
		if len(resp.Results) < s.cfg.PageSize || (resp.Count > 0 && offset >= resp.Count) {
			break
		}
	}
	return out, nil
}

// ==================== 写入 ====================

func (s *SyncService) saveProducts(ctx context.Context, tx *repository.Repositories, shop *model.Shop, listings []etsy.Listing, complete bool, now time.Time, report *SyncReport) error {
	products := make([]model.Product, 0, len(listings))
	seen := make([]int64, 0, len(listings))
	for _, l := range listings {
		products = append(products, productFromListing(shop, l, now))
		seen = append(seen, l.ListingID)
	}

	if err := tx.Products.BatchUpsert(ctx, products); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	if !complete {
		return nil
	}
	n, err := tx.Products.DeactivateMissing(ctx, shop.ID, seen, now)
	if err != nil {
		return fmt.Errorf("deactivate products: %w", err)
	}
	report.Deactivated = n
	return nil
}

func (s *SyncService) saveOrders(ctx context.Context, tx *repository.Repositories, shop *model.Shop, receipts []etsy.Receipt, report *SyncReport) error {
	if len(receipts) == 0 {
		return nil
	}

	// listing_id -> product_id，找不到的明细 product_id 为空
	var listingIDs []int64
	for _, r := range receipts {
		for _, t := range r.Transactions {
			listingIDs = append(listingIDs, t.ListingID)
		}
	}
	productIDs, err := tx.Products.MapListingIDs(ctx, shop.ID, listingIDs)
	if err != nil {
		return fmt.Errorf("map listings: %w", err)
	}

	for _, r := range receipts {
		order := orderFromReceipt(shop, r)
		created, err := tx.Orders.CreateIfAbsent(ctx, order)
		if err != nil {
			return fmt.Errorf("save receipt %d: %w", r.ReceiptID, err)
		}
		if created {
			report.OrdersCreated++
		} else {
			// 已存在的订单只允许状态前进，其他字段不改
			next := mapReceiptStatus(r)
			if next != order.Status && model.CanTransition(order.Status, next) {
				ok, err := tx.Orders.AdvanceStatus(ctx, order.ID, order.Status, next)
				if err != nil {
					return fmt.Errorf("advance receipt %d: %w", r.ReceiptID, err)
				}
				if ok {
					report.OrdersAdvanced++
				}
			}
		}

		items := make([]model.OrderItem, 0, len(r.Transactions))
		for _, t := range r.Transactions {
			item := model.NewOrderItem(t.TransactionID, t.ListingID, t.Title, t.SKU, t.Quantity, t.Price.Decimal())
			item.OrderID = order.ID
			if pid, ok := productIDs[t.ListingID]; ok {
				pid := pid
				item.ProductID = &pid
			}
			items = append(items, item)
		}
		n, err := tx.Orders.InsertItems(ctx, items)
		if err != nil {
			return fmt.Errorf("save items of receipt %d: %w", r.ReceiptID, err)
		}
		report.ItemsInserted += n
	}
	return nil
}

// ==================== 转换 ====================

func productFromListing(shop *model.Shop, l etsy.Listing, now time.Time) model.Product {
	currency := l.Price.CurrencyCode
	if currency == "" {
		currency = shop.CurrencyCode
	}
	synced := now
	return model.Product{
		ShopID:            shop.ID,
		EtsyListingID:     l.ListingID,
		SKU:               l.SKU(),
		Title:             l.Title,
		Description:       l.Description,
		URL:               l.URL,
		State:             l.State,
		Price:             l.Price.Decimal(),
		CurrencyCode:      currency,
		Quantity:          l.Quantity,
		LowStockThreshold: model.DefaultLowStockThreshold,
		IsActive:          true,
		LastSyncedAt:      &synced,
	}
}

func orderFromReceipt(shop *model.Shop, r etsy.Receipt) *model.Order {
	currency := r.GrandTotal.CurrencyCode
	if currency == "" {
		currency = shop.CurrencyCode
	}
	raw, _ := json.Marshal(r)
	return &model.Order{
		ShopID:        shop.ID,
		EtsyReceiptID: r.ReceiptID,
		BuyerName:     r.Name,
		BuyerEmail:    r.BuyerEmail,
		TotalAmount:   r.GrandTotal.Decimal(),
		Currency:      currency,
		Status:        mapReceiptStatus(r),
		EtsyStatus:    r.Status,
		SaleDate:      r.CreatedAt(),
		RawPayload:    datatypes.JSON(raw),
	}
}

// mapReceiptStatus Etsy receipt 状态 -> 本地订单状态
func mapReceiptStatus(r etsy.Receipt) string {
	switch strings.ToLower(r.Status) {
	case "canceled", "cancelled", "fully refunded":
		return model.OrderStatusCancelled
	case "completed":
		return model.OrderStatusCompleted
	}
	if r.IsShipped {
		return model.OrderStatusCompleted
	}
	if r.IsPaid || strings.EqualFold(r.Status, "paid") {
		return model.OrderStatusProcessing
	}
	return model.OrderStatusPending
}

// truncate 按字节截断，不切开多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ==================== 断开连接 ====================

// Disconnect 删除店铺及其商品、订单、明细，单个事务
func (s *SyncService) Disconnect(ctx context.Context, ownerID, shopID int64) (*repository.CascadeResult, error) {
	var result *repository.CascadeResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Shops.GetByIDForOwner(ctx, shopID, ownerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShopNotFound
			}
			return err
		}
		var err error
		result, err = tx.Shops.DeleteCascade(ctx, shopID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("shop disconnected",
		zap.Int64("user_id", ownerID),
		zap.Int64("shop_id", shopID),
		zap.Int64("products", result.Products),
		zap.Int64("orders", result.Orders),
		zap.Int64("order_items", result.OrderItems))
	return result, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"etsy_backoffice/internal/metrics"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/pkg/etsy"
)

// RefreshWindow token 剩余有效期不超过该值时先刷新 (含边界)
const RefreshWindow = 5 * time.Minute

// 单次刷新的上限，与调用方 ctx 解耦，避免一个调用方取消拖垮同一 flight 里的其他人
const refreshTimeout = 30 * time.Second

// TokenRefresher Etsy token 刷新接口 (*etsy.Client 实现)
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*etsy.Token, error)
}

// ==================== RefreshError ====================

type RefreshKind int

const (
	// RefreshTransient 网络错误 / 超时 / 429 / 5xx，可以稍后再试
	RefreshTransient RefreshKind = iota + 1
	// RefreshRejected Etsy 明确拒绝 (invalid_grant 等 4xx)，需要重新授权
	RefreshRejected
)

func (k RefreshKind) String() string {
	switch k {
	case RefreshTransient:
		return "transient"
	case RefreshRejected:
		return "rejected"
	}
	return "unknown"
}

// RefreshError 刷新失败，数据库中的 token 保持不变
type RefreshError struct {
	ShopID int64
	Kind   RefreshKind
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh token for shop %d (%s): %v", e.ShopID, e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// IsRefreshRejected err 是否为被拒绝的刷新
func IsRefreshRejected(err error) bool {
	var re *RefreshError
	return errors.As(err, &re) && re.Kind == RefreshRejected
}

// ==================== TokenService ====================

// TokenService 保证调用 Etsy 前拿到的 access token 有效
// 同一店铺的刷新经 singleflight 串行化，同一时刻最多一个刷新请求在途
type TokenService struct {
	shops   repository.ShopRepository
	client  TokenRefresher
	group   singleflight.Group
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewTokenService(shops repository.ShopRepository, client TokenRefresher, m *metrics.Metrics, log *zap.Logger) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &TokenService{
		shops:   shops,
		client:  client,
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// SetClock 替换时钟 (测试用)
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

// GetValidAccessToken 返回可用的 access token，必要时先刷新
func (s *TokenService) GetValidAccessToken(ctx context.Context, shop *model.Shop) (string, error) {
	if !shop.TokenExpiresWithin(s.now(), RefreshWindow) {
		return shop.AccessToken, nil
	}
	if shop.NeedsReauth() {
		// refresh token 已被拒绝过，再请求一次也只会被拒绝
		return "", &RefreshError{ShopID: shop.ID, Kind: RefreshRejected, Err: ErrNeedsReauth}
	}
	fresh, err := s.do(ctx, shop.ID, false)
	if err != nil {
		return "", err
	}
	*shop = *fresh
	return fresh.AccessToken, nil
}

// Refresh 强制刷新 (手动刷新 / 定时保活)
// 与正在进行的刷新合并，不会对同一店铺发出两次请求
func (s *TokenService) Refresh(ctx context.Context, shopID int64) (*model.Shop, error) {
	return s.do(ctx, shopID, true)
}

// RefreshIfExpiring 只在进入刷新窗口时刷新，返回是否真的刷新了
func (s *TokenService) RefreshIfExpiring(ctx context.Context, shopID int64, window time.Duration) (bool, error) {
	shop, err := findShop(ctx, s.shops, shopID)
	if err != nil {
		return false, err
	}
	if !shop.TokenExpiresWithin(s.now(), window) {
		return false, nil
	}
	if _, err := s.do(ctx, shopID, true); err != nil {
		return false, err
	}
	return true, nil
}

// findShop 把 gorm.ErrRecordNotFound 转成业务错误
func findShop(ctx context.Context, shops repository.ShopRepository, id int64) (*model.Shop, error) {
	shop, err := shops.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	return shop, err
}

func (s *TokenService) do(ctx context.Context, shopID int64, force bool) (*model.Shop, error) {
	key := strconv.FormatInt(shopID, 10)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(fctx, shopID, force)
	})
	if shared {
		s.log.Debug("refresh result shared", zap.Int64("shop_id", shopID))
	}
	if err != nil {
		return nil, err
	}
	// 共享结果时每个调用方拿到自己的副本
	shop := *v.(*model.Shop)
	return &shop, nil
}

// refresh 在 flight 内执行: 锁住店铺行后重新读取并复查过期时间
// singleflight 只合并本进程的调用，行锁保证多实例下同一 refresh token 只被使用一次
// 排在一次成功刷新之后的调用方直接复用新 token
func (s *TokenService) refresh(ctx context.Context, shopID int64, force bool) (*model.Shop, error) {
	var (
		out        *model.Shop
		refreshErr error
		refreshed  bool
	)
	err := s.shops.WithShopLock(ctx, shopID, func(tx repository.ShopRepository, shop *model.Shop) error {
		now := s.now()
		if !force && !shop.TokenExpiresWithin(now, RefreshWindow) {
			out = shop
			return nil
		}

		tok, err := s.client.Refresh(ctx, shop.RefreshToken)
		if err != nil {
			// 状态变更需要提交，错误在事务外返回
			refreshErr = s.fail(ctx, tx, shop, now, err)
			return nil
		}

		refreshToken := tok.RefreshToken
		if refreshToken == "" {
			refreshToken = shop.RefreshToken
		}
		expiresAt := tok.ExpiresAt(now)
		if err := tx.UpdateTokens(ctx, shop.ID, tok.AccessToken, refreshToken, expiresAt); err != nil {
			return fmt.Errorf("persist refreshed token: %w", err)
		}

		shop.AccessToken = tok.AccessToken
		shop.RefreshToken = refreshToken
		shop.TokenExpiresAt = expiresAt
		shop.TokenStatus = model.TokenStatusValid
		out, refreshed = shop, true
		return nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrShopNotFound
	case err != nil:
		return nil, err
	case refreshErr != nil:
		return nil, refreshErr
	}

	if !refreshed {
		s.metrics.ObserveRefresh(metrics.OutcomeSkipped)
		return out, nil
	}
	s.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	s.log.Info("token refreshed",
		zap.Int64("shop_id", out.ID),
		zap.String("etsy_shop_id", out.EtsyShopID),
		zap.Time("expires_at", out.TokenExpiresAt))
	return out, nil
}

// fail 区分被拒绝与暂时失败，只改状态，不动 token
func (s *TokenService) fail(ctx context.Context, tx repository.ShopRepository, shop *model.Shop, now time.Time, cause error) error {
	kind := RefreshTransient
	if !etsy.IsTransient(cause) {
		kind = RefreshRejected
	}

	status := ""
	switch {
	case kind == RefreshRejected:
		status = model.TokenStatusInvalid
	case !shop.TokenExpiresAt.After(now):
		status = model.TokenStatusExpired
	}
	if status != "" && status != shop.TokenStatus {
		if err := tx.UpdateTokenStatus(ctx, shop.ID, status); err != nil {
			s.log.Error("update token status failed", zap.Int64("shop_id", shop.ID), zap.Error(err))
		}
	}

	if kind == RefreshRejected {
		s.metrics.ObserveRefresh(metrics.OutcomeRejected)
		s.log.Warn("token refresh rejected, reconnect required",
			zap.Int64("shop_id", shop.ID),
			zap.Int("status", etsy.StatusCode(cause)),
			zap.Error(cause))
	} else {
		s.metrics.ObserveRefresh(metrics.OutcomeFailed)
		s.log.Warn("token refresh failed, will retry",
			zap.Int64("shop_id", shop.ID),
			zap.Error(cause))
	}
	return &RefreshError{ShopID: shop.ID, Kind: kind, Err: cause}
}

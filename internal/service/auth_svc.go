package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"etsy_backoffice/internal/metrics"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/internal/session"
	"etsy_backoffice/pkg/etsy"
	"etsy_backoffice/pkg/utils"
)

// FlowState OAuth 连接流程状态
type FlowState string

const (
	FlowIdle             FlowState = "idle"
	FlowAwaitingCallback FlowState = "awaiting_callback"
	FlowExchanging       FlowState = "exchanging"
	FlowConnected        FlowState = "connected"
	FlowFailed           FlowState = "failed"
)

// 会话中保存授权上下文的 key
const sessionKeyOAuth = "etsy_oauth"

// EtsyAuthClient OAuth 流程用到的 Etsy 接口 (*etsy.Client 实现)
type EtsyAuthClient interface {
	AuthCodeURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, verifier string) (*etsy.Token, error)
	GetMe(ctx context.Context, accessToken string) (*etsy.MeResponse, error)
	GetShopsByUser(ctx context.Context, accessToken, userID string) ([]etsy.Shop, error)
}

// pendingAuth 发起授权时写入会话，回调时一次性取出
type pendingAuth struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	OwnerID   int64     `json:"owner_id"`
	Phase     FlowState `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

// CallbackResult 回调处理结果
type CallbackResult struct {
	State   FlowState
	Shop    *model.Shop
	Created bool // true: 新连接; false: 重新授权已有店铺
}

// ==================== AuthService ====================

// AuthService Etsy 店铺连接 (OAuth 2.0 授权码 + PKCE)
type AuthService struct {
	sessions session.Store
	shops    repository.ShopRepository
	client   EtsyAuthClient
	scopes   []string
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewAuthService(sessions session.Store, shops repository.ShopRepository, client EtsyAuthClient, scopes []string, m *metrics.Metrics, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &AuthService{
		sessions: sessions,
		shops:    shops,
		client:   client,
		scopes:   scopes,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}
}

// Initiate 生成 verifier / state 存入会话，返回 Etsy 授权地址
// 重复发起会覆盖上一次未完成的授权
func (s *AuthService) Initiate(ctx context.Context, sessionID string, userID int64) (string, error) {
	if sessionID == "" {
		return "", session.ErrNoSession
	}
	verifier, err := utils.GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := utils.GenerateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	raw, err := json.Marshal(pendingAuth{
		State:     state,
		Verifier:  verifier,
		OwnerID:   userID,
		Phase:     FlowAwaitingCallback,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := s.sessions.Set(ctx, sessionID, sessionKeyOAuth, string(raw)); err != nil {
		return "", fmt.Errorf("save oauth session: %w", err)
	}

	s.log.Info("oauth initiated", zap.Int64("user_id", userID))
	return s.client.AuthCodeURL(state, utils.GenerateCodeChallenge(verifier)), nil
}

// Status 当前会话的流程状态
func (s *AuthService) Status(ctx context.Context, sessionID string) (FlowState, error) {
	raw, ok, err := s.sessions.Get(ctx, sessionID, sessionKeyOAuth)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return "", err
	}
	if !ok {
		return FlowIdle, nil
	}
	var p pendingAuth
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return FlowIdle, nil
	}
	return p.Phase, nil
}

// HandleCallback 处理 Etsy 回调
// state 校验与 code 校验都在任何网络请求之前完成；会话数据无论成败只能使用一次
func (s *AuthService) HandleCallback(ctx context.Context, sessionID, state, code string) (*CallbackResult, error) {
	pending, err := s.takePending(ctx, sessionID, state)
	if err != nil {
		s.metrics.ObserveCallback(metrics.OutcomeMismatch)
		return nil, err
	}
	if code == "" {
		s.metrics.ObserveCallback(metrics.OutcomeFailed)
		s.setPhase(ctx, sessionID, pending.OwnerID, FlowFailed)
		return nil, ErrMissingCode
	}

	s.setPhase(ctx, sessionID, pending.OwnerID, FlowExchanging)
	result, err := s.connect(ctx, pending, code)
	if err != nil {
		s.metrics.ObserveCallback(metrics.OutcomeFailed)
		s.setPhase(ctx, sessionID, pending.OwnerID, FlowFailed)
		s.log.Warn("oauth callback failed",
			zap.Int64("user_id", pending.OwnerID),
			zap.Int("etsy_status", etsy.StatusCode(err)),
			zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveCallback(metrics.OutcomeSuccess)
	s.setPhase(ctx, sessionID, pending.OwnerID, FlowConnected)
	return result, nil
}

// HandleDenied 卖家在 Etsy 页面拒绝授权 (error=access_denied)
// 同样消耗会话数据，state 不匹配时仍按安全错误处理
func (s *AuthService) HandleDenied(ctx context.Context, sessionID, state, reason string) error {
	pending, err := s.takePending(ctx, sessionID, state)
	if err != nil {
		s.metrics.ObserveCallback(metrics.OutcomeMismatch)
		return err
	}
	s.metrics.ObserveCallback(metrics.OutcomeDenied)
	s.setPhase(ctx, sessionID, pending.OwnerID, FlowFailed)
	s.log.Info("oauth denied by seller", zap.Int64("user_id", pending.OwnerID), zap.String("reason", reason))
	return ErrAuthorizationDenied
}

// setPhase 记录回调之后的流程阶段，只存阶段不存 state / verifier，不能被再次用于回调
// state 不匹配时不记录
func (s *AuthService) setPhase(ctx context.Context, sessionID string, ownerID int64, phase FlowState) {
	raw, err := json.Marshal(pendingAuth{OwnerID: ownerID, Phase: phase, CreatedAt: s.now().UTC()})
	if err != nil {
		return
	}
	if err := s.sessions.Set(ctx, sessionID, sessionKeyOAuth, string(raw)); err != nil {
		s.log.Warn("save oauth phase failed", zap.String("phase", string(phase)), zap.Error(err))
	}
}

// takePending 原子地取出并删除会话数据，再做常量时间比较
func (s *AuthService) takePending(ctx context.Context, sessionID, state string) (*pendingAuth, error) {
	raw, ok, err := s.sessions.Take(ctx, sessionID, sessionKeyOAuth)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("read oauth session: %w", err)
	}
	if !ok {
		return nil, ErrStateMismatch
	}
	var p pendingAuth
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, ErrStateMismatch
	}
	if p.Phase != FlowAwaitingCallback || !utils.SecureCompare(p.State, state) {
		return nil, ErrStateMismatch
	}
	return &p, nil
}

// connect 换 token -> 查账号 -> 查店铺 -> 入库，任一步失败都不落库
func (s *AuthService) connect(ctx context.Context, p *pendingAuth, code string) (*CallbackResult, error) {
	tok, err := s.client.Exchange(ctx, code, p.Verifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	now := s.now()

	me, err := s.client.GetMe(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch etsy user: %w", err)
	}
	shops, err := s.client.GetShopsByUser(ctx, tok.AccessToken, me.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("fetch etsy shops: %w", err)
	}
	if len(shops) == 0 {
		return nil, ErrNoShopFound
	}
	if len(shops) > 1 {
		// 只连接第一个店铺
		s.log.Warn("etsy account has multiple shops, linking the first one",
			zap.Int64("user_id", p.OwnerID),
			zap.Int("shops", len(shops)))
	}
	es := shops[0]

	shop := &model.Shop{
		OwnerID:        p.OwnerID,
		EtsyShopID:     es.ShopID.String(),
		EtsyUserID:     me.UserID.String(),
		ShopName:       es.ShopName,
		CurrencyCode:   es.CurrencyCode,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.ExpiresAt(now),
		TokenStatus:    model.TokenStatusValid,
		GrantedScopes:  model.Scopes(s.scopes),
		IsActive:       true,
		SyncEnabled:    true,
		SyncInterval:   model.DefaultSyncInterval,
	}
	created, err := s.shops.UpsertConnection(ctx, shop)
	if err != nil {
		if errors.Is(err, repository.ErrShopLinkedElsewhere) {
			return nil, ErrShopLinkedElsewhere
		}
		return nil, fmt.Errorf("save shop: %w", err)
	}

	s.log.Info("etsy shop connected",
		zap.Int64("user_id", p.OwnerID),
		zap.Int64("shop_id", shop.ID),
		zap.String("etsy_shop_id", shop.EtsyShopID),
		zap.Bool("created", created))
	return &CallbackResult{State: FlowConnected, Shop: shop, Created: created}, nil
}

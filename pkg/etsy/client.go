package etsy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"etsy_backoffice/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client Etsy Open API v3 客户端
// OAuth 部分走 x/oauth2，资源接口走 resty，两者共用同一个 http.Client 与限流器
type Client struct {
	cfg     config.EtsyConfig
	oauth   *oauth2.Config
	http    *resty.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg config.EtsyConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// 拉取商品可能比较慢，给 20s
		timeout = 20 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}

	c.http = resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Etsy-Backoffice/1.0").
		SetHeader("Accept", "application/json").
		SetHeader("x-api-key", cfg.ClientID).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 只重试幂等的 GET
			if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			// 每次尝试(包括重试)都要过限流器
			return c.limiter.Wait(r.Context())
		})

	if cfg.Debug {
		c.http.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.log.Debug("etsy api call",
				zap.String("method", r.Request.Method),
				zap.String("path", r.Request.URL),
				zap.Int("status", r.StatusCode()),
				zap.Duration("elapsed", r.Time()))
			return nil
		})
	}
	return c
}

// ==================== OAuth ====================

// AuthCodeURL 生成授权跳转地址 (PKCE S256)
func (c *Client) AuthCodeURL(state, codeChallenge string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange 用授权码换取 Token
// grant_type=authorization_code, client_id, code, redirect_uri, code_verifier
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, c.tokenError("exchange", err)
	}
	return fromOAuthToken(tok), nil
}

// Refresh 用 refresh_token 换取新 Token
// grant_type=refresh_token, client_id, refresh_token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, &APIError{Method: http.MethodPost, Path: c.cfg.TokenURL, StatusCode: http.StatusBadRequest, Code: "invalid_grant", Description: "empty refresh token"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	// AccessToken 为空的 Token 一定无效，TokenSource 会直接走刷新
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.tokenError("refresh", err)
	}
	return fromOAuthToken(tok), nil
}

// oauthContext 让 x/oauth2 复用 resty 的 http.Client (带超时)
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http.GetClient())
}

func (c *Client) tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		apiErr := &APIError{
			Method:      http.MethodPost,
			Path:        c.cfg.TokenURL,
			StatusCode:  re.Response.StatusCode,
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
		}
		if apiErr.Code == "" {
			var body ErrorResponse
			if json.Unmarshal(re.Body, &body) == nil {
				apiErr.Code, apiErr.Description = body.Error, body.ErrorDescription
			}
		}
		return fmt.Errorf("token %s: %w", op, apiErr)
	}
	return fmt.Errorf("token %s: %w", op, err)
}

func fromOAuthToken(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		t.ExpiresIn = time.Duration(v) * time.Second
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.ExpiresIn = time.Duration(n) * time.Second
		}
	}
	if t.ExpiresIn <= 0 && !tok.Expiry.IsZero() {
		t.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	return t
}

// ==================== 资源接口 ====================

func (c *Client) get(ctx context.Context, accessToken, path string, query map[string]string, out interface{}) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(&ErrorResponse{})
	if query != nil {
		req.SetQueryParams(query)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("etsy GET %s: %w", path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode()}
		if body, ok := resp.Error().(*ErrorResponse); ok && body != nil {
			apiErr.Code, apiErr.Description = body.Error, body.ErrorDescription
		}
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode())
		}
		return nil, apiErr
	}
	return resp, nil
}

// GetMe 当前授权账号
func (c *Client) GetMe(ctx context.Context, accessToken string) (*MeResponse, error) {
	var me MeResponse
	if _, err := c.get(ctx, accessToken, "/application/users/me", nil, &me); err != nil {
		return nil, err
	}
	if me.UserID == "" {
		return nil, fmt.Errorf("etsy GET /application/users/me: response without user_id")
	}
	return &me, nil
}

// GetShopsByUser 账号名下的店铺
// 兼容两种返回: {"results": [...]} 与单个店铺对象
func (c *Client) GetShopsByUser(ctx context.Context, accessToken, userID string) ([]Shop, error) {
	path := fmt.Sprintf("/application/users/%s/shops", userID)
	resp, err := c.get(ctx, accessToken, path, nil, nil)
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil, nil
	}

	var list ShopsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if list.Results != nil {
		return list.Results, nil
	}

	var single Shop
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if single.ShopID == "" {
		return nil, nil
	}
	return []Shop{single}, nil
}

// ListActiveListings 分页拉取在售商品
func (c *Client) ListActiveListings(ctx context.Context, accessToken, shopID string, limit, offset int) (*ListingsResponse, error) {
	var out ListingsResponse
	path := fmt.Sprintf("/application/shops/%s/listings", shopID)
	query := map[string]string{
		"state":  "active",
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
	if _, err := c.get(ctx, accessToken, path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListReceipts 分页拉取订单 (含 transactions)
func (c *Client) ListReceipts(ctx context.Context, accessToken, shopID string, minCreated time.Time, limit, offset int) (*ReceiptsResponse, error) {
	var out ReceiptsResponse
	path := fmt.Sprintf("/application/shops/%s/receipts", shopID)
	query := map[string]string{
		"limit":      strconv.Itoa(limit),
		"offset":     strconv.Itoa(offset),
		"sort_on":    "created",
		"sort_order": "desc",
	}
	if !minCreated.IsZero() {
		query["min_created"] = strconv.FormatInt(minCreated.Unix(), 10)
	}
	if _, err := c.get(ctx, accessToken, path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package service

import (
	"errors"

	"etsy_backoffice/internal/repository"
)

// ==================== 业务错误 ====================

var (
	// OAuth
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrMissingCode         = errors.New("authorization code missing")
	ErrAuthorizationDenied = errors.New("authorization denied by seller")
	ErrNoShopFound         = errors.New("no etsy shop found for this account")
	ErrShopLinkedElsewhere = repository.ErrShopLinkedElsewhere

	// 店铺 / 同步
	ErrShopNotFound    = errors.New("shop not found")
	ErrShopGone        = errors.New("shop was disconnected or deactivated during sync")
	ErrSyncInProgress  = errors.New("sync already in progress for this shop")
	ErrNeedsReauth     = errors.New("shop authorization revoked, reconnect required")
	ErrInvalidSettings = errors.New("invalid shop settings")

	// 订单
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("order status can only move forward")

	// 用户
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserDisabled       = errors.New("用户已禁用")
	ErrInvalidToken       = errors.New("Token 无效")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUsernameExists     = errors.New("用户名已存在")
	ErrEmailExists        = errors.New("邮箱已存在")
	ErrWeakPassword       = errors.New("密码至少 8 位")
)

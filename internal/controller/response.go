package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/service"
	"etsy_backoffice/internal/session"
	"etsy_backoffice/pkg/etsy"
)

// ==================== 统一响应 ====================

func ok(ctx *gin.Context, message string, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": message,
		"data":    data,
	})
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}

// parseID 解析路径参数，失败时已写入 400
func parseID(ctx *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		fail(ctx, http.StatusBadRequest, "无效的 ID")
		return 0, false
	}
	return id, true
}

// ==================== 错误映射 ====================

// errorStatus 业务错误到 HTTP 状态码与对外文案
// 返回 0 表示未知错误
func errorStatus(err error) (int, string) {
	var refreshErr *service.RefreshError
	var apiErr *etsy.APIError

	switch {
	// 用户与登录
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrUserDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrUsernameExists),
		errors.Is(err, service.ErrEmailExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, err.Error()

	// OAuth
	case errors.Is(err, service.ErrStateMismatch):
		return http.StatusBadRequest, "授权状态校验失败，请重新发起授权"
	case errors.Is(err, service.ErrMissingCode):
		return http.StatusBadRequest, "回调缺少授权码"
	case errors.Is(err, service.ErrAuthorizationDenied):
		return http.StatusForbidden, "用户拒绝了授权"
	case errors.Is(err, service.ErrNoShopFound):
		return http.StatusUnprocessableEntity, "该 Etsy 账号下没有店铺"
	case errors.Is(err, service.ErrShopLinkedElsewhere):
		return http.StatusConflict, "该店铺已被其他账号连接"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusBadRequest, "会话无效，请刷新页面后重试"

	// 店铺与同步
	case errors.Is(err, service.ErrShopNotFound):
		return http.StatusNotFound, "店铺不存在"
	case errors.Is(err, service.ErrShopGone):
		return http.StatusConflict, "店铺已断开或停用"
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict, "店铺正在同步中"
	case errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNeedsReauth),
		errors.As(err, &refreshErr) && refreshErr.Kind == service.RefreshRejected:
		return http.StatusConflict, "店铺授权已失效，请重新连接"
	case errors.As(err, &refreshErr):
		return http.StatusBadGateway, "Token 刷新暂时失败，请稍后重试"

	// 订单
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, "订单不存在"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "不允许的订单状态变更"

	// Etsy
	case errors.As(err, &apiErr):
		if apiErr.Temporary() {
			return http.StatusBadGateway, "Etsy 暂时不可用，请稍后重试"
		}
		return http.StatusBadGateway, "Etsy 拒绝了请求"
	}
	return 0, ""
}

// renderError 写入错误响应；已知错误按映射返回，其余记录日志后返回 500
func renderError(ctx *gin.Context, log *zap.Logger, err error) {
	status, msg := errorStatus(err)
	if status == 0 {
		status, msg = http.StatusInternalServerError, "服务器内部错误"
	}
	if status >= http.StatusInternalServerError {
		fields := append([]zap.Field{zap.String("route", ctx.FullPath()), zap.Error(err)}, middleware.AuditFields(ctx.Request.Context())...)
		log.Error("request failed", fields...)
	}
	_ = ctx.Error(err)
	fail(ctx, status, msg)
}

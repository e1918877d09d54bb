package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ==================== 审计上下文 ====================

// AuditContext Key
type auditContextKey struct{}

// AuditInfo 审计信息
type AuditInfo struct {
	RequestID string
	UserID    int64
	Username  string
}

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// WithAuditInfo 注入审计信息到 context
func WithAuditInfo(ctx context.Context, info *AuditInfo) context.Context {
	return context.WithValue(ctx, auditContextKey{}, info)
}

// GetAuditInfo 从 context 获取审计信息
func GetAuditInfo(ctx context.Context) *AuditInfo {
	if info, ok := ctx.Value(auditContextKey{}).(*AuditInfo); ok {
		return info
	}
	return nil
}

// AuditFields 审计信息转日志字段，供 service / controller 记录状态变更
func AuditFields(ctx context.Context) []zap.Field {
	info := GetAuditInfo(ctx)
	if info == nil {
		return nil
	}
	fields := []zap.Field{zap.String("request_id", info.RequestID)}
	if info.UserID > 0 {
		fields = append(fields, zap.Int64("user_id", info.UserID), zap.String("username", info.Username))
	}
	return fields
}

// ==================== Gin 中间件 ====================

// RequestID 分配请求 ID 并写入 request context
// 放在最外层，之后 JWTAuth 成功时由 AuditContext 补充用户信息
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)
		c.Request = c.Request.WithContext(WithAuditInfo(c.Request.Context(), &AuditInfo{RequestID: rid}))
		c.Next()
	}
}

// AuditContext 将 JWT 中的用户信息写入审计上下文
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID > 0 {
			if info := GetAuditInfo(c.Request.Context()); info != nil {
				// RequestLogger 持有同一个指针，这里原地补充
				info.UserID = userID
				info.Username = GetUsername(c)
			} else {
				ctx := WithAuditInfo(c.Request.Context(), &AuditInfo{UserID: userID, Username: GetUsername(c)})
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

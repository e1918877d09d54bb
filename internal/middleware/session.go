package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"etsy_backoffice/internal/config"
)

// ==================== 浏览器会话 ====================

// ContextKeySessionID 会话 ID 在 gin.Context 中的 key
const ContextKeySessionID = "session_id"

const defaultSessionCookie = "bo_session"

// SessionCookie 为浏览器分配不透明的会话 ID
// OAuth 的 state / verifier 按会话 ID 存放，cookie 本身不含任何数据
func SessionCookie(cfg config.SessionConfig) gin.HandlerFunc {
	name := cfg.CookieName
	if name == "" {
		name = defaultSessionCookie
	}
	maxAge := int(cfg.TTL / time.Second)
	if maxAge <= 0 {
		maxAge = int((10 * time.Minute) / time.Second)
	}

	return func(c *gin.Context) {
		sid, err := c.Cookie(name)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}

		// 每次请求续期；SameSite=Lax 保证从 Etsy 跳回时 cookie 仍会带上
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, sid, maxAge, "/", "", cfg.CookieSecure, true)
		c.Set(ContextKeySessionID, sid)

		c.Next()
	}
}

// GetSessionID 从 Context 获取会话 ID
func GetSessionID(c *gin.Context) string {
	return c.GetString(ContextKeySessionID)
}

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 同步限流中间件 ====================

// SyncRateLimit 手动同步限流中间件，按店铺维度冷却，需放在 JWTAuth 之后
//
// 使用示例:
//
//	shops.POST("/:id/sync", middleware.SyncRateLimit(limiter), shopCtl.Sync)
func SyncRateLimit(limiter *CooldownLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || shopID <= 0 {
			abort(c, http.StatusBadRequest, "无效的店铺 ID")
			return
		}

		result := limiter.Check(ShopSyncKey(GetUserID(c), shopID))
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retryAfter,
				},
			})
			return
		}

		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))

	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}

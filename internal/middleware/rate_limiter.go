package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按 key 限制两次执行的最小间隔
// 防止用户频繁触发手动同步导致 Etsy API 限流
type CooldownLimiter struct {
	interval time.Duration
	now      func() time.Time
	locks    sync.Map // key -> *lockEntry
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewCooldownLimiter interval <= 0 时不限流
func NewCooldownLimiter(interval time.Duration) *CooldownLimiter {
	return &CooldownLimiter{interval: interval, now: time.Now}
}

// SetClock 替换时钟 (测试用)
func (r *CooldownLimiter) SetClock(now func() time.Time) {
	r.now = now
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次执行时间
func (r *CooldownLimiter) Check(key string) CheckResult {
	if r.interval <= 0 {
		return CheckResult{Allowed: true}
	}

	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if !entry.lastTime.IsZero() {
		if elapsed := now.Sub(entry.lastTime); elapsed < r.interval {
			return CheckResult{RetryAfter: r.interval - elapsed}
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key，例如同步被拒绝后允许立即重试
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// ShopSyncKey 店铺手动同步的限流 key
// 带上用户 ID，其他用户的请求 (最终会 404) 不会占用店主的冷却时间
func ShopSyncKey(userID, shopID int64) string {
	return fmt.Sprintf("user:%d:shop:%d:sync", userID, shopID)
}

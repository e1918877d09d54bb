package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"etsy_backoffice/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT() *JWTManager {
	return NewJWTManager(config.JWTConfig{SecretKey: "test-secret", Issuer: "backoffice"})
}

// ==================== JWTAuth ====================

func TestJWTAuth(t *testing.T) {
	m := newJWT()
	access, refresh, err := m.GenerateTokenPair(42, "alice", "seller")
	require.NoError(t, err)

	other := NewJWTManager(config.JWTConfig{SecretKey: "other-secret", Issuer: "backoffice"})
	forged, _, err := other.GenerateTokenPair(42, "alice", "seller")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWTAuth(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "username": GetUsername(c)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + access, http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + refresh, http.StatusUnauthorized},
		{"foreign signature", "Bearer " + forged, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42,"username":"alice"}`, w.Body.String())
			}
		})
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	m := NewJWTManager(config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Nanosecond})
	access, _, err := m.GenerateTokenPair(1, "alice", "seller")
	require.NoError(t, err)
	time.Sleep(time.Second)

	_, err = m.ParseToken(access)
	assert.Error(t, err)
}

// ==================== SessionCookie ====================

func TestSessionCookie(t *testing.T) {
	r := gin.New()
	r.Use(SessionCookie(config.SessionConfig{CookieName: "sid", TTL: 10 * time.Minute}))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetSessionID(c)) })

	// 首次访问分配新 ID
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	sid := w.Body.String()
	require.NotEmpty(t, sid)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, sid, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 600, cookies[0].MaxAge)

	// 带着 cookie 回来保持同一个 ID
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, sid, w.Body.String())

	// 非法值被替换
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "../../etc"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "../../etc", w.Body.String())
	assert.NotEqual(t, sid, w.Body.String())
}

// ==================== 同步限流 ====================

func TestCooldownLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewCooldownLimiter(time.Minute)
	l.SetClock(func() time.Time { return now })

	assert.True(t, l.Check("a").Allowed)
	res := l.Check("a")
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.True(t, l.Check("b").Allowed, "keys are independent")

	now = now.Add(59 * time.Second)
	res = l.Check("a")
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	now = now.Add(time.Second)
	assert.True(t, l.Check("a").Allowed)

	l.Reset("a")
	assert.True(t, l.Check("a").Allowed)

	assert.True(t, NewCooldownLimiter(0).Check("a").Allowed)
}

func TestSyncRateLimit(t *testing.T) {
	l := NewCooldownLimiter(time.Minute)
	r := gin.New()
	r.POST("/shops/:id/sync", SyncRateLimit(l), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w
	}

	assert.Equal(t, http.StatusAccepted, do("/shops/1/sync").Code)
	w := do("/shops/1/sync")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "同步冷却中")

	assert.Equal(t, http.StatusAccepted, do("/shops/2/sync").Code)
	assert.Equal(t, http.StatusBadRequest, do("/shops/abc/sync").Code)
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "同步冷却中，请 30 秒后重试", formatRetryMessage(30*time.Second))
	assert.Equal(t, "同步冷却中，请 2 分钟后重试", formatRetryMessage(2*time.Minute))
	assert.Equal(t, "同步冷却中，请 1 分 30 秒后重试", formatRetryMessage(90*time.Second))
}

// ==================== 请求日志 / 审计 ====================

func TestRequestLoggerWithAudit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := newJWT()
	access, _, err := m.GenerateTokenPair(7, "bob", "seller")
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)), Recovery(zap.New(core)))
	r.GET("/api/etsy/callback", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/me", JWTAuth(m), AuditContext(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/etsy/callback?code=secret-code&state=s", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set(HeaderRequestID, "rid-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-1", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "/api/etsy/callback", first["path"])
	assert.NotContains(t, first, "user_id")

	second := entries[1].ContextMap()
	assert.Equal(t, "rid-1", second["request_id"])
	assert.Equal(t, int64(7), second["user_id"])
	assert.Equal(t, "bob", second["username"])

	assert.Equal(t, int64(500), entries[2].ContextMap()["status"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

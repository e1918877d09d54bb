package etsy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"etsy_backoffice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.EtsyConfig {
	return config.EtsyConfig{
		ClientID:    "test-client-id",
		RedirectURI: "https://backoffice.example.com/api/etsy/callback",
		Scopes:      []string{"listings_r", "transactions_r", "shops_r"},
		AuthURL:     "https://www.etsy.com/oauth/connect",
		TokenURL:    baseURL + "/v3/public/oauth/token",
		APIBaseURL:  baseURL + "/v3",
		Timeout:     2 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient(testConfig("http://unused"), nil)

	raw := c.AuthCodeURL("state-S", "challenge-C")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.etsy.com", u.Host)
	assert.Equal(t, "/oauth/connect", u.Path)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "test-client-id", q.Get("client_id"))
	assert.Equal(t, "https://backoffice.example.com/api/etsy/callback", q.Get("redirect_uri"))
	assert.Equal(t, "listings_r transactions_r shops_r", q.Get("scope"))
	assert.Equal(t, "state-S", q.Get("state"))
	assert.Equal(t, "challenge-C", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/public/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "abc123", r.PostForm.Get("code"))
		assert.Equal(t, "verifier-V", r.PostForm.Get("code_verifier"))
		assert.Equal(t, "https://backoffice.example.com/api/etsy/callback", r.PostForm.Get("redirect_uri"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "A", "refresh_token": "R", "expires_in": 3600, "token_type": "Bearer",
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	tok, err := c.Exchange(context.Background(), "abc123", "verifier-V")
	require.NoError(t, err)
	assert.Equal(t, "A", tok.AccessToken)
	assert.Equal(t, "R", tok.RefreshToken)
	assert.Equal(t, time.Hour, tok.ExpiresIn)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt(now))
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "R-old", r.PostForm.Get("refresh_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "A-new", "refresh_token": "R-new", "expires_in": 3600, "token_type": "Bearer",
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	tok, err := c.Refresh(context.Background(), "R-old")
	require.NoError(t, err)
	assert.Equal(t, "A-new", tok.AccessToken)
	assert.Equal(t, "R-new", tok.RefreshToken)
}

func TestRefresh_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      map[string]string
		transient bool
	}{
		{"invalid grant", http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "refresh token revoked"}, false},
		{"unauthorized", http.StatusUnauthorized, map[string]string{"error": "invalid_client"}, false},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"error": "too many requests"}, true},
		{"server error", http.StatusServiceUnavailable, map[string]string{"error": "unavailable"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL), nil)
			_, err := c.Refresh(context.Background(), "R")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.body["error"], apiErr.Code)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestRefresh_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := testConfig(srv.URL)
	srv.Close()

	c := NewClient(cfg, nil)
	_, err := c.Refresh(context.Background(), "R")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestGetMeAndShops(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "Bearer A", r.Header.Get("Authorization"))
		assert.Equal(t, "test-client-id", r.Header.Get("x-api-key"))
		switch r.URL.Path {
		case "/v3/application/users/me":
			writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": 42, "shop_id": 99})
		case "/v3/application/users/42/shops":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"count":   1,
				"results": []map[string]interface{}{{"shop_id": "99", "shop_name": "Acme", "currency_code": "USD"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	ctx := context.Background()

	me, err := c.GetMe(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, ID("42"), me.UserID)

	shops, err := c.GetShopsByUser(ctx, "A", me.UserID.String())
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, ID("99"), shops[0].ShopID)
	assert.Equal(t, "Acme", shops[0].ShopName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGetShopsByUser_SingleObjectAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/application/users/1/shops":
			writeJSON(w, http.StatusOK, map[string]interface{}{"shop_id": 7, "shop_name": "Solo"})
		case "/v3/application/users/2/shops":
			writeJSON(w, http.StatusOK, map[string]interface{}{"count": 0, "results": []interface{}{}})
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)

	shops, err := c.GetShopsByUser(context.Background(), "A", "1")
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, ID("7"), shops[0].ShopID)

	shops, err = c.GetShopsByUser(context.Background(), "A", "2")
	require.NoError(t, err)
	assert.Empty(t, shops)
}

func TestGet_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Insufficient scope"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.GetMe(context.Background(), "A")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Insufficient scope", apiErr.Code)
	assert.False(t, IsTransient(err))
	assert.NotContains(t, err.Error(), "Bearer")
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "bad gateway"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": 0, "results": []interface{}{}})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryCount = 2
	c := NewClient(cfg, nil)

	out, err := c.ListActiveListings(context.Background(), "A", "99", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestListReceipts_Query(t *testing.T) {
	minCreated := time.Unix(1700000000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/application/shops/99/receipts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "50", q.Get("offset"))
		assert.Equal(t, "1700000000", q.Get("min_created"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count": 1,
			"results": []map[string]interface{}{{
				"receipt_id": 1001, "name": "Jane", "buyer_email": "jane@example.com",
				"status": "paid", "is_paid": true, "create_timestamp": 1700000100,
				"grandtotal": map[string]interface{}{"amount": 4598, "divisor": 100, "currency_code": "USD"},
				"transactions": []map[string]interface{}{{
					"transaction_id": 5001, "listing_id": 3001, "quantity": 2,
					"price": map[string]interface{}{"amount": 2299, "divisor": 100, "currency_code": "USD"},
				}},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	out, err := c.ListReceipts(context.Background(), "A", "99", minCreated, 25, 50)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	rc := out.Results[0]
	assert.Equal(t, "45.98", rc.GrandTotal.Decimal().StringFixed(2))
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), rc.CreatedAt())
	require.Len(t, rc.Transactions, 1)
	assert.Equal(t, "22.99", rc.Transactions[0].Price.Decimal().StringFixed(2))
}

func TestRateLimiter_HonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": 1})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	c := NewClient(cfg, nil)

	_, err := c.GetMe(context.Background(), "A")
	require.NoError(t, err)

	// 令牌桶已空，下一次在超时前拿不到令牌
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetMe(ctx, "A")
	assert.Error(t, err)
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "99", "c": null}`), &v))
	assert.Equal(t, ID("42"), v.A)
	assert.Equal(t, int64(99), v.B.Int64())
	assert.Equal(t, ID(""), v.C)
}

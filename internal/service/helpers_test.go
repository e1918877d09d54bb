package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/pkg/database"
	"etsy_backoffice/pkg/etsy"
)

// ==================== 数据库 ====================

func setupRepos(t *testing.T) (*gorm.DB, *repository.Repositories) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, model.All()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db, repository.New(db)
}

func createUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		Timezone: "UTC",
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createShop(t *testing.T, db *gorm.DB, ownerID int64, etsyShopID string, expiresAt time.Time) *model.Shop {
	t.Helper()
	s := &model.Shop{
		OwnerID:        ownerID,
		EtsyShopID:     etsyShopID,
		EtsyUserID:     "1001",
		ShopName:       "Handmade Co",
		CurrencyCode:   "USD",
		AccessToken:    "old-access",
		RefreshToken:   "old-refresh",
		TokenExpiresAt: expiresAt,
		TokenStatus:    model.TokenStatusValid,
		IsActive:       true,
		SyncEnabled:    true,
		SyncInterval:   model.DefaultSyncInterval,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func reloadShop(t *testing.T, db *gorm.DB, id int64) *model.Shop {
	t.Helper()
	var s model.Shop
	require.NoError(t, db.First(&s, id).Error)
	return &s
}

// ==================== 假 Etsy 服务 ====================

// fakeEtsy 记录每个接口的调用次数，响应可按用例替换
type fakeEtsy struct {
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	token    func(w http.ResponseWriter, form map[string]string)
	tokenLag time.Duration
	shops    []map[string]interface{}
	listings []map[string]interface{}
	receipts []map[string]interface{}
	forms    []map[string]string
}

func newFakeEtsy(t *testing.T) *fakeEtsy {
	t.Helper()
	f := &fakeEtsy{
		hits: map[string]int{},
		shops: []map[string]interface{}{
			{"shop_id": 2002, "user_id": 1001, "shop_name": "Handmade Co", "currency_code": "USD"},
		},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEtsy) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v3")
	switch {
	case path == "/public/oauth/token":
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.hits["token"]++
		f.forms = append(f.forms, form)
		handler, lag := f.token, f.tokenLag
		f.mu.Unlock()

		if lag > 0 {
			time.Sleep(lag)
		}
		if handler != nil {
			handler(w, form)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})

	case path == "/application/users/me":
		f.hit("me")
		writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": 1001, "shop_id": 2002})

	case strings.HasPrefix(path, "/application/users/") && strings.HasSuffix(path, "/shops"):
		f.hit("shops")
		f.mu.Lock()
		shops := f.shops
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(shops), "results": shops})

	case strings.HasSuffix(path, "/listings"):
		f.hit("listings")
		f.mu.Lock()
		all := f.listings
		f.mu.Unlock()
		f.page(w, r, all)

	case strings.HasSuffix(path, "/receipts"):
		f.hit("receipts")
		f.mu.Lock()
		all := f.receipts
		f.mu.Unlock()
		f.page(w, r, all)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (f *fakeEtsy) page(w http.ResponseWriter, r *http.Request, all []map[string]interface{}) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 25
	}
	end := offset + limit
	if offset > len(all) {
		offset = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(all),
		"results": all[offset:end],
	})
}

func (f *fakeEtsy) hit(name string) {
	f.mu.Lock()
	f.hits[name]++
	f.mu.Unlock()
}

func (f *fakeEtsy) Hits(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[name]
}

func (f *fakeEtsy) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

func (f *fakeEtsy) LastForm() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forms) == 0 {
		return nil
	}
	return f.forms[len(f.forms)-1]
}

func (f *fakeEtsy) SetToken(h func(w http.ResponseWriter, form map[string]string)) {
	f.mu.Lock()
	f.token = h
	f.mu.Unlock()
}

func (f *fakeEtsy) SetListings(l ...map[string]interface{}) {
	f.mu.Lock()
	f.listings = l
	f.mu.Unlock()
}

func (f *fakeEtsy) SetReceipts(r ...map[string]interface{}) {
	f.mu.Lock()
	f.receipts = r
	f.mu.Unlock()
}

func (f *fakeEtsy) Client() *etsy.Client {
	return etsy.NewClient(config.EtsyConfig{
		ClientID:    "test-client-id",
		RedirectURI: "https://backoffice.example.com/api/etsy/callback",
		Scopes:      []string{"listings_r", "transactions_r", "shops_r"},
		AuthURL:     "https://www.etsy.com/oauth/connect",
		TokenURL:    f.srv.URL + "/v3/public/oauth/token",
		APIBaseURL:  f.srv.URL + "/v3",
		Timeout:     2 * time.Second,
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenError(status int, code string) func(w http.ResponseWriter, form map[string]string) {
	return func(w http.ResponseWriter, _ map[string]string) {
		writeJSON(w, status, map[string]string{"error": code, "error_description": code})
	}
}

// ==================== Etsy 数据构造 ====================

func listing(id int64, title string, qty int, cents int64) map[string]interface{} {
	return map[string]interface{}{
		"listing_id":  id,
		"shop_id":     2002,
		"title":       title,
		"description": title + " description",
		"state":       "active",
		"quantity":    qty,
		"url":         "https://www.etsy.com/listing/" + strconv.FormatInt(id, 10),
		"skus":        []string{"SKU-" + strconv.FormatInt(id, 10)},
		"price":       map[string]interface{}{"amount": cents, "divisor": 100, "currency_code": "USD"},
	}
}

func transaction(id, listingID int64, qty int, cents int64) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": id,
		"listing_id":     listingID,
		"title":          "item " + strconv.FormatInt(listingID, 10),
		"sku":            "SKU-" + strconv.FormatInt(listingID, 10),
		"quantity":       qty,
		"price":          map[string]interface{}{"amount": cents, "divisor": 100, "currency_code": "USD"},
	}
}

func receipt(id int64, status string, paid, shipped bool, totalCents int64, txs ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"receipt_id":       id,
		"buyer_email":      "buyer@example.com",
		"name":             "Jane Buyer",
		"status":           status,
		"is_paid":          paid,
		"is_shipped":       shipped,
		"create_timestamp": time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
		"grandtotal":       map[string]interface{}{"amount": totalCents, "divisor": 100, "currency_code": "USD"},
		"transactions":     txs,
	}
}

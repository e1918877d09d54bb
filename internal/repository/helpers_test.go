package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, model.All()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
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

func newShop(ownerID int64, etsyShopID, name string) *model.Shop {
	return &model.Shop{
		OwnerID:        ownerID,
		EtsyShopID:     etsyShopID,
		EtsyUserID:     "42",
		ShopName:       name,
		AccessToken:    "A",
		RefreshToken:   "R",
		TokenExpiresAt: time.Now().Add(time.Hour),
		TokenStatus:    model.TokenStatusValid,
		GrantedScopes:  model.Scopes{"listings_r", "transactions_r"},
		IsActive:       true,
		SyncEnabled:    true,
		SyncInterval:   model.DefaultSyncInterval,
	}
}

func createShop(t *testing.T, db *gorm.DB, ownerID int64, etsyShopID, name string) *model.Shop {
	t.Helper()
	s := newShop(ownerID, etsyShopID, name)
	require.NoError(t, db.Create(s).Error)
	return s
}

func newProduct(shopID, listingID int64, title string, qty int) model.Product {
	now := time.Now()
	return model.Product{
		ShopID:        shopID,
		EtsyListingID: listingID,
		SKU:           fmt.Sprintf("SKU-%d", listingID),
		Title:         title,
		Price:         decimal.RequireFromString("12.50"),
		CurrencyCode:  "USD",
		Quantity:      qty,
		State:         "active",
		IsActive:      true,
		LastSyncedAt:  &now,
	}
}

func newOrder(shopID, receiptID int64, status string) *model.Order {
	return &model.Order{
		ShopID:        shopID,
		EtsyReceiptID: receiptID,
		BuyerName:     "Jane",
		BuyerEmail:    "jane@example.com",
		TotalAmount:   decimal.RequireFromString("45.98"),
		Currency:      "USD",
		Status:        status,
		SaleDate:      time.Now().UTC(),
	}
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where(where, args...).Count(&n).Error)
	return n
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"etsy_backoffice/internal/model"
)

func TestShopRepo_UpsertConnection_SameOwnerUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")

	created, err := repo.UpsertConnection(ctx, newShop(owner.ID, "99", "Acme"))
	require.NoError(t, err)
	assert.True(t, created)

	first, err := repo.GetByEtsyShopID(ctx, "99")
	require.NoError(t, err)

	// 本地配置不应被重新授权覆盖
	disabled, interval := false, 60
	require.NoError(t, repo.UpdateSettings(ctx, first.ID, ShopSettings{SyncEnabled: &disabled, SyncInterval: &interval}))

	again := newShop(owner.ID, "99", "Acme Renamed")
	again.AccessToken = "A2"
	again.SyncEnabled = true
	again.SyncInterval = model.DefaultSyncInterval
	created, err = repo.UpsertConnection(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	assert.Equal(t, int64(1), countRows(t, db, &model.Shop{}, "etsy_shop_id = ?", "99"))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.ShopName)
	assert.Equal(t, "A2", got.AccessToken)
	assert.False(t, got.SyncEnabled)
	assert.Equal(t, 60, got.SyncInterval)
	assert.Equal(t, model.Scopes{"listings_r", "transactions_r"}, got.GrantedScopes)
}

func TestShopRepo_UpsertConnection_OtherOwnerRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := repo.UpsertConnection(ctx, newShop(alice.ID, "99", "Acme"))
	require.NoError(t, err)

	_, err = repo.UpsertConnection(ctx, newShop(bob.ID, "99", "Stolen"))
	assert.ErrorIs(t, err, ErrShopLinkedElsewhere)

	got, err := repo.GetByEtsyShopID(ctx, "99")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.OwnerID)
	assert.Equal(t, "Acme", got.ShopName)
}

func TestShopRepo_UpdateTokens(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	shop := createShop(t, db, owner.ID, "99", "Acme")
	require.NoError(t, repo.UpdateTokenStatus(ctx, shop.ID, model.TokenStatusExpired))

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateTokens(ctx, shop.ID, "A-new", "R-new", exp))

	got, err := repo.GetByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-new", got.AccessToken)
	assert.Equal(t, "R-new", got.RefreshToken)
	assert.True(t, exp.Equal(got.TokenExpiresAt))
	assert.Equal(t, model.TokenStatusValid, got.TokenStatus)

	err = repo.UpdateTokens(ctx, 9999, "A", "R", exp)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestShopRepo_ListExpiringAndCandidates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	now := time.Now()

	soon := newShop(owner.ID, "1", "Soon")
	soon.TokenExpiresAt = now.Add(10 * time.Minute)
	require.NoError(t, db.Create(soon).Error)

	later := newShop(owner.ID, "2", "Later")
	later.TokenExpiresAt = now.Add(3 * time.Hour)
	require.NoError(t, db.Create(later).Error)

	revoked := newShop(owner.ID, "3", "Revoked")
	revoked.TokenExpiresAt = now.Add(-time.Hour)
	revoked.TokenStatus = model.TokenStatusInvalid
	require.NoError(t, db.Create(revoked).Error)

	expiring, err := repo.ListExpiring(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Soon", expiring[0].ShopName)

	candidates, err := repo.ListSyncCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestShopRepo_LockActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	shop := createShop(t, db, owner.ID, "99", "Acme")

	got, err := repo.LockActive(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.ID, got.ID)

	require.NoError(t, db.Model(&model.Shop{}).Where("id = ?", shop.ID).Update("is_active", false).Error)
	_, err = repo.LockActive(ctx, shop.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestShopRepo_WithShopLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	shop := createShop(t, db, owner.ID, "99", "Acme")
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	err := repo.WithShopLock(ctx, shop.ID, func(tx ShopRepository, locked *model.Shop) error {
		assert.Equal(t, shop.ID, locked.ID)
		return tx.UpdateTokens(ctx, locked.ID, "a2", "r2", expires)
	})
	require.NoError(t, err)
	got, err := repo.GetByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)

	// fn 出错时整体回滚
	boom := errors.New("boom")
	err = repo.WithShopLock(ctx, shop.ID, func(tx ShopRepository, locked *model.Shop) error {
		require.NoError(t, tx.UpdateTokens(ctx, locked.ID, "a3", "r3", expires))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err = repo.GetByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)

	err = repo.WithShopLock(ctx, 9999, func(ShopRepository, *model.Shop) error { return nil })
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestShopRepo_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	repos := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	shop := createShop(t, db, owner.ID, "99", "Acme")
	other := createShop(t, db, owner.ID, "100", "Other")

	// 3 个商品
	require.NoError(t, repos.Products.BatchUpsert(ctx, []model.Product{
		newProduct(shop.ID, 1, "Mug", 3),
		newProduct(shop.ID, 2, "Cup", 3),
		newProduct(shop.ID, 3, "Plate", 3),
		newProduct(other.ID, 1, "Mug", 3),
	}))

	// 2 个订单，其中一个有 4 条明细
	o1 := newOrder(shop.ID, 1001, model.OrderStatusPending)
	o2 := newOrder(shop.ID, 1002, model.OrderStatusPending)
	o3 := newOrder(other.ID, 1001, model.OrderStatusPending)
	for _, o := range []*model.Order{o1, o2, o3} {
		_, err := repos.Orders.CreateIfAbsent(ctx, o)
		require.NoError(t, err)
	}
	var items []model.OrderItem
	for i := int64(1); i <= 4; i++ {
		it := model.NewOrderItem(5000+i, 1, "Mug", "SKU-1", 1, newProduct(0, 0, "", 0).Price)
		it.OrderID = o1.ID
		items = append(items, it)
	}
	otherItem := model.NewOrderItem(7000, 1, "Mug", "SKU-1", 1, newProduct(0, 0, "", 0).Price)
	otherItem.OrderID = o3.ID
	items = append(items, otherItem)
	_, err := repos.Orders.InsertItems(ctx, items)
	require.NoError(t, err)

	var res *CascadeResult
	err = repos.Transaction(ctx, func(tx *Repositories) error {
		var err error
		res, err = tx.Shops.DeleteCascade(ctx, shop.ID)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, &CascadeResult{OrderItems: 4, Orders: 2, Products: 3, Shops: 1}, res)
	assert.Zero(t, countRows(t, db, &model.Shop{}, "id = ?", shop.ID))
	assert.Zero(t, countRows(t, db, &model.Product{}, "shop_id = ?", shop.ID))
	assert.Zero(t, countRows(t, db, &model.Order{}, "shop_id = ?", shop.ID))
	assert.Zero(t, countRows(t, db, &model.OrderItem{}, "order_id IN ?", []int64{o1.ID, o2.ID}))

	// 其他店铺不受影响
	assert.Equal(t, int64(1), countRows(t, db, &model.Product{}, "shop_id = ?", other.ID))
	assert.Equal(t, int64(1), countRows(t, db, &model.OrderItem{}, "order_id = ?", o3.ID))
}

func TestShopRepo_DeleteCascade_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	repos := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	shop := createShop(t, db, owner.ID, "99", "Acme")
	require.NoError(t, repos.Products.BatchUpsert(ctx, []model.Product{newProduct(shop.ID, 1, "Mug", 3)}))

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if _, err := tx.Shops.DeleteCascade(ctx, shop.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// 整体回滚
	assert.Equal(t, int64(1), countRows(t, db, &model.Shop{}, "id = ?", shop.ID))
	assert.Equal(t, int64(1), countRows(t, db, &model.Product{}, "shop_id = ?", shop.ID))
}

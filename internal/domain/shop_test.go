package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocation() Location {
	return Location{World: "overworld", X: 100.5, Y: 64, Z: -20.25, Yaw: 90, Pitch: -12.5}
}

func newTestAdminShop(t *testing.T) *Shop {
	t.Helper()
	shop, err := NewAdminShop("Server Market", "general goods", testLocation())
	require.NoError(t, err)
	return shop
}

func newTestPlayerShop(t *testing.T) *Shop {
	t.Helper()
	shop, err := NewPlayerShop("Corner Stall", "", testLocation(), uuid.New(), time.Now().Add(24*time.Hour), false)
	require.NoError(t, err)
	return shop
}

func newTestItem(t *testing.T, stock int) *ShopItem {
	t.Helper()
	currencies := NewCurrencySet([]string{"coins"})
	item, err := NewShopItem(ItemStack{Type: "iron_ingot", Quantity: 1}, 10.0, "coins", stock, currencies)
	require.NoError(t, err)
	return item
}

func TestNewShopValidation(t *testing.T) {
	tests := []struct {
		name     string
		shopName string
		desc     string
		wantErr  bool
	}{
		{"valid", "Server Market", "general goods", false},
		{"name too short", "ab", "", true},
		{"name too long", "this shop name is way past the thirty-two limit", "", true},
		{"description too long", "Server Market", string(make([]byte, DescriptionMaxLength+1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdminShop(tt.shopName, tt.desc, testLocation())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPlayerShopRequiresOwner(t *testing.T) {
	_, err := NewPlayerShop("Corner Stall", "", testLocation(), uuid.Nil, time.Now(), false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMutatorsRevalidate(t *testing.T) {
	shop := newTestAdminShop(t)

	assert.ErrorIs(t, shop.SetName("ab"), ErrValidation)
	assert.Equal(t, "Server Market", shop.Name)

	assert.ErrorIs(t, shop.SetDescription(string(make([]byte, 101))), ErrValidation)
	assert.Equal(t, "general goods", shop.Description)

	bad := 1.5
	assert.ErrorIs(t, shop.SetTaxRate(&bad), ErrValidation)
	assert.Nil(t, shop.TaxRate)

	ok := 0.07
	require.NoError(t, shop.SetTaxRate(&ok))
	require.NotNil(t, shop.TaxRate)
	assert.InDelta(t, 0.07, *shop.TaxRate, 1e-9)
}

func TestAddItemStampsOwningShopID(t *testing.T) {
	shop := newTestPlayerShop(t)
	item := newTestItem(t, 5)

	require.NoError(t, shop.AddItem(item))
	assert.Equal(t, shop.ID, item.ShopID)

	got, err := shop.Item(item.ID)
	require.NoError(t, err)
	assert.Same(t, item, got)
}

func TestRemoveItemUnknownID(t *testing.T) {
	shop := newTestPlayerShop(t)
	err := shop.RemoveItem(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminShopStockAdjustIsNoOp(t *testing.T) {
	shop := newTestAdminShop(t)
	item := newTestItem(t, 3)
	require.NoError(t, shop.AddItem(item))

	for i := 0; i < 10; i++ {
		require.NoError(t, shop.AdjustStock(item.ID, -2))
	}
	assert.Equal(t, 3, item.Stock, "admin shop stock must never change")
}

func TestPlayerShopStockDecrement(t *testing.T) {
	shop := newTestPlayerShop(t)
	item := newTestItem(t, 5)
	require.NoError(t, shop.AddItem(item))

	require.NoError(t, shop.AdjustStock(item.ID, -3))
	assert.Equal(t, 2, item.Stock)

	err := shop.AdjustStock(item.ID, -3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, item.Stock, "failed decrement must not change stock")
}

func TestUnlimitedStockNeverDecrements(t *testing.T) {
	shop := newTestPlayerShop(t)
	item := newTestItem(t, StockUnlimited)
	require.NoError(t, shop.AddItem(item))

	require.NoError(t, shop.AdjustStock(item.ID, -1000))
	assert.Equal(t, StockUnlimited, item.Stock)
}

func TestStatsDefaultZero(t *testing.T) {
	shop := newTestAdminShop(t)
	assert.Zero(t, shop.Stat(StatTotalSalesVolume))

	shop.AddStat(StatTotalSalesVolume, 99.5)
	shop.AddStat(StatTotalSalesVolume, 0.5)
	assert.InDelta(t, 100.0, shop.Stat(StatTotalSalesVolume), 1e-9)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	admin := newTestAdminShop(t)
	assert.False(t, admin.Expired(now.Add(1000*time.Hour)))

	player := newTestPlayerShop(t)
	player.ExpirationTime = now.Add(-time.Minute)
	assert.True(t, player.Expired(now))
	player.ExpirationTime = now.Add(time.Minute)
	assert.False(t, player.Expired(now))
}

package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallwart/shopkeeper/internal/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "shops.yml"))
}

func buildRegistry(t *testing.T) []*domain.Shop {
	t.Helper()
	currencies := domain.NewCurrencySet([]string{"coins", "gems"})

	admin, err := domain.NewAdminShop("Server Market", "staff-run shop", domain.Location{World: "overworld", X: 1.5, Y: 64, Z: -3.25, Yaw: 90, Pitch: 0})
	require.NoError(t, err)
	rate := 0.02
	require.NoError(t, admin.SetTaxRate(&rate))

	adminItem, err := domain.NewShopItem(domain.ItemStack{Type: "diamond", Quantity: 1, DisplayName: "Shiny", Lore: []string{"rare"}}, 250, "gems", domain.StockUnlimited, currencies)
	require.NoError(t, err)
	require.NoError(t, admin.AddItem(adminItem))
	admin.AddStat(domain.StatTotalSalesVolume, 1234.5)

	player, err := domain.NewPlayerShop("Corner Stall", "bread and butter", domain.Location{World: "nether", X: -10, Y: 70, Z: 42, Yaw: 180, Pitch: -45}, uuid.New(), time.Now().Add(48*time.Hour).Truncate(time.Millisecond), true)
	require.NoError(t, err)

	playerItem, err := domain.NewShopItem(domain.ItemStack{Type: "bread", Quantity: 16}, 5, "coins", 320, currencies)
	require.NoError(t, err)
	require.NoError(t, playerItem.SetSellPrice(2.5))
	require.NoError(t, player.AddItem(playerItem))
	player.AddStat(domain.StatItemsSold, 42)

	return []*domain.Shop{admin, player}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := tempStore(t)
	shops, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, shops)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := tempStore(t)
	original := buildRegistry(t)

	require.NoError(t, store.Save(original))
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, len(original))

	byID := make(map[uuid.UUID]*domain.Shop)
	for _, s := range loaded {
		byID[s.ID] = s
	}

	for _, want := range original {
		got, ok := byID[want.ID]
		require.True(t, ok, "shop %s missing after reload", want.ID)

		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Open, got.Open)
		if want.TaxRate != nil {
			require.NotNil(t, got.TaxRate)
			assert.InDelta(t, *want.TaxRate, *got.TaxRate, 1e-9)
		} else {
			assert.Nil(t, got.TaxRate)
		}

		assert.Equal(t, want.Location.World, got.Location.World)
		assert.InDelta(t, want.Location.X, got.Location.X, 1e-6)
		assert.InDelta(t, want.Location.Y, got.Location.Y, 1e-6)
		assert.InDelta(t, want.Location.Z, got.Location.Z, 1e-6)
		assert.InDelta(t, float64(want.Location.Yaw), float64(got.Location.Yaw), 1e-4)
		assert.InDelta(t, float64(want.Location.Pitch), float64(got.Location.Pitch), 1e-4)

		if want.Kind == domain.KindPlayer {
			assert.Equal(t, want.Owner, got.Owner)
			assert.Equal(t, want.ExpirationTime.UnixMilli(), got.ExpirationTime.UnixMilli())
			assert.Equal(t, want.AutoRenew, got.AutoRenew)
		}

		assert.Equal(t, want.Stats(), got.Stats())

		wantItems := want.Items()
		gotItems := got.Items()
		require.Len(t, gotItems, len(wantItems))
		for i, wi := range wantItems {
			gi := gotItems[i]
			assert.Equal(t, wi.ID, gi.ID)
			assert.Equal(t, want.ID, gi.ShopID, "owning-shop link must survive reload")
			assert.Equal(t, wi.Stack(), gi.Stack())
			assert.InDelta(t, wi.BuyPrice, gi.BuyPrice, 1e-9)
			assert.Equal(t, wi.Currency, gi.Currency)
			assert.Equal(t, wi.Stock, gi.Stock)
			if wi.SellPrice != nil {
				require.NotNil(t, gi.SellPrice)
				assert.InDelta(t, *wi.SellPrice, *gi.SellPrice, 1e-9)
			} else {
				assert.Nil(t, gi.SellPrice)
			}
		}
	}
}

func TestSaveRewritesWholesale(t *testing.T) {
	store := tempStore(t)
	registry := buildRegistry(t)
	require.NoError(t, store.Save(registry))

	// Saving a smaller registry must discard shops absent from it.
	require.NoError(t, store.Save(registry[:1]))
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, registry[0].ID, loaded[0].ID)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "shops.yml"))
	require.NoError(t, store.Save(buildRegistry(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shops.yml", entries[0].Name())
}

func TestLoadCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shops.yml")
	require.NoError(t, os.WriteFile(path, []byte("admin-shops: [not, a, map]"), 0o644))

	_, err := NewStore(path).Load()
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

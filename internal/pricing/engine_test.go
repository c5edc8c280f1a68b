package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
)

func testEconomy() config.Economy {
	eco := config.DefaultEconomy()
	eco.PriceMultiplier = 1.0
	eco.SellPriceRatio = 0.5
	eco.DynamicPricing = false
	eco.GlobalTaxRate = 0.05
	eco.MinimumTax = 0
	eco.MaximumTax = 0
	return eco
}

func testShop(t *testing.T) *domain.Shop {
	t.Helper()
	shop, err := domain.NewPlayerShop("Test Stall", "", domain.Location{World: "overworld"}, uuid.New(), time.Now().Add(time.Hour), false)
	require.NoError(t, err)
	return shop
}

func testItem(t *testing.T, buyPrice float64) *domain.ShopItem {
	t.Helper()
	currencies := domain.NewCurrencySet([]string{"coins"})
	item, err := domain.NewShopItem(domain.ItemStack{Type: "bread", Quantity: 1}, buyPrice, "coins", 10, currencies)
	require.NoError(t, err)
	return item
}

func TestSellPriceDerivedFromRatio(t *testing.T) {
	eco := testEconomy()
	engine := NewEngine(eco)
	shop := testShop(t)

	for _, buy := range []float64{0.01, 1, 10, 999.99, 1_000_000} {
		item := testItem(t, buy)
		assert.InDelta(t, buy*eco.SellPriceRatio, engine.SellPrice(shop, item), 1e-9, "buy=%v", buy)
	}
}

func TestExplicitSellPriceStableUnderBuyPriceChanges(t *testing.T) {
	engine := NewEngine(testEconomy())
	shop := testShop(t)
	item := testItem(t, 100)

	require.NoError(t, item.SetSellPrice(40))
	assert.InDelta(t, 40, engine.SellPrice(shop, item), 1e-9)

	require.NoError(t, item.SetBuyPrice(500))
	assert.InDelta(t, 40, engine.SellPrice(shop, item), 1e-9, "explicit sell price must not follow buy price")
}

func TestBuyPriceAppliesGlobalMultiplier(t *testing.T) {
	eco := testEconomy()
	eco.PriceMultiplier = 2.0
	engine := NewEngine(eco)

	item := testItem(t, 10)
	assert.InDelta(t, 20, engine.BuyPrice(testShop(t), item), 1e-9)
}

func TestDynamicModifierIdentityWhenDisabled(t *testing.T) {
	eco := testEconomy()
	eco.DynamicPricing = false
	engine := NewEngine(eco)

	shop := testShop(t)
	shop.AddStat(domain.StatItemsBought, 1000)

	item := testItem(t, 10)
	assert.InDelta(t, 10, engine.BuyPrice(shop, item), 1e-9)
}

func TestDynamicModifierRaisesPriceUnderDemand(t *testing.T) {
	eco := testEconomy()
	eco.DynamicPricing = true
	engine := NewEngine(eco)

	shop := testShop(t)
	shop.AddStat(domain.StatItemsBought, 90)
	shop.AddStat(domain.StatItemsSold, 0)

	item := testItem(t, 10)
	price := engine.BuyPrice(shop, item)
	assert.Greater(t, price, 10.0)
	assert.LessOrEqual(t, price, 10.0*dynamicModifierMax)
}

func TestTaxClamp(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		rate    float64
		min     float64
		max     float64
		wantTax float64
	}{
		{"uncapped above floor", 1000, 0.05, 1, 0, 50},
		{"floor applied", 10, 0.05, 1, 0, 1},
		{"cap applied", 10000, 0.05, 1, 100, 100},
		{"zero max is no cap, not zero cap", 1_000_000, 0.05, 0, 0, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eco := testEconomy()
			eco.GlobalTaxRate = tt.rate
			eco.MinimumTax = tt.min
			eco.MaximumTax = tt.max
			engine := NewEngine(eco)

			assert.InDelta(t, tt.wantTax, engine.Tax(tt.amount, nil, ""), 1e-9)
		})
	}
}

func TestTaxRateResolutionOrder(t *testing.T) {
	eco := testEconomy()
	eco.GlobalTaxRate = 0.05
	eco.CategoryTaxRates = map[string]float64{"food": 0.02}
	engine := NewEngine(eco)

	shop := testShop(t)

	// Global rate when nothing more specific applies.
	assert.InDelta(t, 0.05, engine.TaxRate(shop, "tools"), 1e-9)

	// Category rate beats global.
	assert.InDelta(t, 0.02, engine.TaxRate(shop, "food"), 1e-9)

	// Per-shop override beats both.
	override := 0.10
	require.NoError(t, shop.SetTaxRate(&override))
	assert.InDelta(t, 0.10, engine.TaxRate(shop, "food"), 1e-9)
}

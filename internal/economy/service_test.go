package economy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/pricing"
)

func testEconomy() config.Economy {
	eco := config.DefaultEconomy()
	eco.PriceMultiplier = 1.0
	eco.SellPriceRatio = 0.5
	eco.GlobalTaxRate = 0.10
	eco.MinimumTax = 0
	eco.MaximumTax = 0
	eco.TaxAccount = "treasury"
	return eco
}

type fixture struct {
	svc       Service
	ledger    *MockLedger
	persister *MockPersister
	bus       *event.MemoryBus
}

func newFixture(t *testing.T, eco config.Economy) *fixture {
	t.Helper()
	ledger := new(MockLedger)
	persister := new(MockPersister)
	bus := event.NewMemoryBus()
	return &fixture{
		svc:       NewService(pricing.NewEngine(eco), ledger, persister, bus, eco),
		ledger:    ledger,
		persister: persister,
		bus:       bus,
	}
}

func playerShopWithItem(t *testing.T, buyPrice float64, stock int) (*domain.Shop, *domain.ShopItem) {
	t.Helper()
	shop, err := domain.NewPlayerShop("Corner Stall", "", domain.Location{World: "overworld"}, uuid.New(), time.Now().Add(time.Hour), false)
	require.NoError(t, err)
	item, err := domain.NewShopItem(domain.ItemStack{Type: "bread", Quantity: 1}, buyPrice, "coins", stock, domain.NewCurrencySet([]string{"coins"}))
	require.NoError(t, err)
	require.NoError(t, shop.AddItem(item))
	return shop, item
}

func adminShopWithItem(t *testing.T, buyPrice float64, stock int) (*domain.Shop, *domain.ShopItem) {
	t.Helper()
	shop, err := domain.NewAdminShop("Server Market", "", domain.Location{World: "overworld"})
	require.NoError(t, err)
	item, err := domain.NewShopItem(domain.ItemStack{Type: "bread", Quantity: 1}, buyPrice, "coins", stock, domain.NewCurrencySet([]string{"coins"}))
	require.NoError(t, err)
	require.NoError(t, shop.AddItem(item))
	return shop, item
}

func TestBuySuccess(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 20)
	buyer := uuid.New()

	// amount = 10*5 = 50, tax = 5
	f.ledger.On("Debit", mock.Anything, buyer.String(), 55.0, "coins").Return(nil).Once()
	f.ledger.On("Credit", mock.Anything, shop.Owner.String(), 50.0, "coins").Return(nil).Once()
	f.ledger.On("Credit", mock.Anything, "treasury", 5.0, "coins").Return(nil).Once()
	f.persister.On("PersistTrade", mock.Anything, shop, mock.Anything).Return(nil).Once()

	record, err := f.svc.Buy(context.Background(), shop, item.ID, 5, buyer)
	require.NoError(t, err)

	assert.Equal(t, 15, item.Stock)
	assert.Equal(t, domain.DirectionBuy, record.Direction)
	assert.InDelta(t, 10, record.UnitPrice, 1e-9)
	assert.InDelta(t, 5, record.Tax, 1e-9)
	assert.InDelta(t, 5, shop.Stat(domain.StatItemsBought), 1e-9)
	assert.InDelta(t, 50, shop.Stat(domain.StatTotalSalesVolume), 1e-9)

	f.ledger.AssertExpectations(t)
	f.persister.AssertExpectations(t)
}

func TestBuyInsufficientStockIsAtomic(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 3)
	buyer := uuid.New()

	_, err := f.svc.Buy(context.Background(), shop, item.ID, 5, buyer)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 3, item.Stock, "stock must be unchanged")
	assert.Zero(t, shop.Stat(domain.StatItemsBought))
	f.ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.persister.AssertNotCalled(t, "PersistTrade", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyInsufficientFundsIsAtomic(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 20)
	buyer := uuid.New()

	f.ledger.On("Debit", mock.Anything, buyer.String(), 55.0, "coins").Return(domain.ErrInsufficientFunds).Once()

	_, err := f.svc.Buy(context.Background(), shop, item.ID, 5, buyer)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, 20, item.Stock)
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.persister.AssertNotCalled(t, "PersistTrade", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyFromAdminShopNeverTouchesStock(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := adminShopWithItem(t, 10, 7)
	buyer := uuid.New()

	f.ledger.On("Debit", mock.Anything, buyer.String(), mock.Anything, "coins").Return(nil)
	f.ledger.On("Credit", mock.Anything, "treasury", mock.Anything, "coins").Return(nil)
	f.persister.On("PersistTrade", mock.Anything, shop, mock.Anything).Return(nil)

	for i := 0; i < 4; i++ {
		_, err := f.svc.Buy(context.Background(), shop, item.ID, 10, buyer)
		require.NoError(t, err)
	}
	assert.Equal(t, 7, item.Stock, "admin shop stock must never change")

	// No owner credit: admin shop revenue is discarded.
	for _, call := range f.ledger.Calls {
		if call.Method == "Credit" {
			assert.Equal(t, "treasury", call.Arguments.String(1))
		}
	}
}

func TestBuyTaxDestroyedWithoutCollectionAccount(t *testing.T) {
	eco := testEconomy()
	eco.TaxAccount = ""
	f := newFixture(t, eco)
	shop, item := adminShopWithItem(t, 100, domain.StockUnlimited)
	buyer := uuid.New()

	var destroyed float64
	f.bus.Subscribe(event.TaxDestroyed, func(ctx context.Context, e event.Event) error {
		destroyed = e.Payload.(event.TaxPayloadV1).Amount
		return nil
	})

	f.ledger.On("Debit", mock.Anything, buyer.String(), 110.0, "coins").Return(nil).Once()
	f.persister.On("PersistTrade", mock.Anything, shop, mock.Anything).Return(nil).Once()

	_, err := f.svc.Buy(context.Background(), shop, item.ID, 1, buyer)
	require.NoError(t, err)

	// The 10.0 tax is removed from the economy, credited nowhere.
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.InDelta(t, 10.0, destroyed, 1e-9)
}

func TestSellToPlayerShop(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 5)
	seller := uuid.New()

	// sell price derived: 10*0.5 = 5; amount = 5*4 = 20; tax = 2; payout = 18
	f.ledger.On("Debit", mock.Anything, shop.Owner.String(), 20.0, "coins").Return(nil).Once()
	f.ledger.On("Credit", mock.Anything, seller.String(), 18.0, "coins").Return(nil).Once()
	f.ledger.On("Credit", mock.Anything, "treasury", 2.0, "coins").Return(nil).Once()
	f.persister.On("PersistTrade", mock.Anything, shop, mock.Anything).Return(nil).Once()

	record, err := f.svc.Sell(context.Background(), shop, item.ID, 4, seller)
	require.NoError(t, err)

	assert.Equal(t, 9, item.Stock, "sold items return to shop stock")
	assert.Equal(t, domain.DirectionSell, record.Direction)
	f.ledger.AssertExpectations(t)
}

func TestSellShopCannotAfford(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 5)
	seller := uuid.New()

	f.ledger.On("Debit", mock.Anything, shop.Owner.String(), 20.0, "coins").Return(domain.ErrInsufficientFunds).Once()

	_, err := f.svc.Sell(context.Background(), shop, item.ID, 4, seller)
	assert.ErrorIs(t, err, domain.ErrShopCannotAfford)

	assert.Equal(t, 5, item.Stock)
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSellToAdminShopAlwaysAccepts(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := adminShopWithItem(t, 10, 0)
	seller := uuid.New()

	f.ledger.On("Credit", mock.Anything, seller.String(), mock.Anything, "coins").Return(nil).Once()
	f.ledger.On("Credit", mock.Anything, "treasury", mock.Anything, "coins").Return(nil).Once()
	f.persister.On("PersistTrade", mock.Anything, shop, mock.Anything).Return(nil).Once()

	_, err := f.svc.Sell(context.Background(), shop, item.ID, 3, seller)
	require.NoError(t, err)

	// No debit: admin shops create the payout.
	f.ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, item.Stock, "admin stock is a no-op")
}

func TestTradeValidation(t *testing.T) {
	f := newFixture(t, testEconomy())
	shop, item := playerShopWithItem(t, 10, 5)

	_, err := f.svc.Buy(context.Background(), shop, item.ID, 0, uuid.New())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Buy(context.Background(), shop, uuid.New(), 1, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	shop.Open = false
	_, err = f.svc.Buy(context.Background(), shop, item.ID, 1, uuid.New())
	assert.ErrorIs(t, err, domain.ErrValidation)

	shop.Open = true
	shop.State = domain.StateExpired
	_, err = f.svc.Sell(context.Background(), shop, item.ID, 1, uuid.New())
	assert.ErrorIs(t, err, domain.ErrShopExpired)
}

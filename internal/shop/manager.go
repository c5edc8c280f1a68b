// Package shop owns the in-memory registry of live shops. The registry is
// mutated only from the manager's run loop; every public operation is
// marshaled onto that loop, so two input sources can never concurrently
// touch the same shop's stock or price fields.
package shop

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/economy"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/pricing"
)

// Store is the persistence facade the manager writes through after every
// mutation. Implemented by persistence.Writer.
type Store interface {
	Load(ctx context.Context) ([]*domain.Shop, error)
	SaveAll(ctx context.Context, registry []*domain.Shop) error
	SaveShop(ctx context.Context, registry []*domain.Shop, changed *domain.Shop) error
	DeleteShop(ctx context.Context, registry []*domain.Shop, shopID uuid.UUID) error
	DeleteItem(ctx context.Context, registry []*domain.Shop, itemID uuid.UUID) error
	AppendTransaction(ctx context.Context, tx domain.Transaction)
}

// Manager is the shop lifecycle manager and sole owner of live shop state.
type Manager struct {
	registry   map[uuid.UUID]*domain.Shop
	store      Store
	engine     *pricing.Engine
	ledger     economy.Ledger
	trade      economy.Service
	bus        event.Bus
	eco        config.Economy
	currencies domain.CurrencySet
	currency   string

	tasks chan task
	now   func() time.Time
}

type task struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// NewManager creates a lifecycle manager. The trade service is wired in
// afterwards with SetTradeService because it needs the manager as its
// persister.
func NewManager(store Store, engine *pricing.Engine, ledger economy.Ledger, bus event.Bus, eco config.Economy) *Manager {
	// An empty currency list only slips past on hand-built configs; the
	// loader validates min=1. Ledger calls still need a currency string.
	currency := ""
	if len(eco.Currencies) > 0 {
		currency = eco.Currencies[0]
	}
	return &Manager{
		registry:   make(map[uuid.UUID]*domain.Shop),
		store:      store,
		engine:     engine,
		ledger:     ledger,
		bus:        bus,
		eco:        eco,
		currencies: domain.NewCurrencySet(eco.Currencies),
		currency:   currency,
		tasks:      make(chan task),
		now:        time.Now,
	}
}

// SetTradeService wires the buy/sell service. Must be called before Run.
func (m *Manager) SetTradeService(trade economy.Service) {
	m.trade = trade
}

// LoadRegistry eagerly loads the snapshot into the registry. Called once
// at process start, before Run.
func (m *Manager) LoadRegistry(ctx context.Context) error {
	shops, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, shop := range shops {
		m.registry[shop.ID] = shop
	}
	return nil
}

// Run executes the main loop until the context is cancelled. All registry
// mutation happens here.
func (m *Manager) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("Shop manager started", "shops", len(m.registry))
	for {
		select {
		case t := <-m.tasks:
			t.run(ctx)
			close(t.done)
		case <-ctx.Done():
			log.Info("Shop manager stopped")
			return
		}
	}
}

// do marshals fn onto the run loop and waits for completion.
func (m *Manager) do(ctx context.Context, fn func(ctx context.Context)) error {
	t := task{run: fn, done: make(chan struct{})}
	select {
	case m.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// all returns the registry as a slice, ordered by id for deterministic
// snapshot output.
func (m *Manager) all() []*domain.Shop {
	out := make([]*domain.Shop, 0, len(m.registry))
	for _, shop := range m.registry {
		out = append(out, shop)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *Manager) countOwned(owner uuid.UUID) int {
	n := 0
	for _, shop := range m.registry {
		if shop.Kind == domain.KindPlayer && shop.Owner == owner {
			n++
		}
	}
	return n
}

// CreateAdminShop registers a new admin shop and persists it.
func (m *Manager) CreateAdminShop(ctx context.Context, name, description string, loc domain.Location) (*domain.Shop, error) {
	var (
		created *domain.Shop
		outErr  error
	)
	err := m.do(ctx, func(ctx context.Context) {
		shop, err := domain.NewAdminShop(name, description, loc)
		if err != nil {
			outErr = err
			return
		}
		m.registry[shop.ID] = shop
		if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
			delete(m.registry, shop.ID)
			outErr = err
			return
		}
		created = shop
		m.publish(ctx, event.NewShopLifecycleEvent(event.ShopCreated, shop.ID, shop.Name, string(shop.Kind), ""))
	})
	if err != nil {
		return nil, err
	}
	return created, outErr
}

// CreatePlayerShop validates affordability and the per-player limit, then
// debits the creation cost and registers the shop. On any failure no
// partial state remains: no debit without registration, no registration
// without a completed save.
func (m *Manager) CreatePlayerShop(ctx context.Context, name, description string, loc domain.Location, owner uuid.UUID) (*domain.Shop, error) {
	var (
		created *domain.Shop
		outErr  error
	)
	err := m.do(ctx, func(ctx context.Context) {
		shop, err := domain.NewPlayerShop(name, description, loc, owner, m.now().Add(m.eco.RentalPeriod), m.eco.AutoRenewDefault)
		if err != nil {
			outErr = err
			return
		}

		if m.countOwned(owner) >= m.eco.MaxShopsPerPlayer {
			outErr = fmt.Errorf("%w: player %s already owns %d shops", domain.ErrShopLimitReached, owner, m.eco.MaxShopsPerPlayer)
			return
		}

		cost := m.engine.CreationCost()
		if cost > 0 {
			if err := m.ledger.Debit(ctx, owner.String(), cost, m.defaultCurrency()); err != nil {
				outErr = fmt.Errorf("%w: creation cost %.2f", domain.ErrInsufficientFunds, cost)
				return
			}
		}

		m.registry[shop.ID] = shop
		if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
			delete(m.registry, shop.ID)
			if cost > 0 {
				if refundErr := m.ledger.Credit(ctx, owner.String(), cost, m.defaultCurrency()); refundErr != nil {
					logger.FromContext(ctx).Error("Failed to refund creation cost", "error", refundErr, "owner", owner)
				}
			}
			outErr = err
			return
		}
		created = shop
		m.publish(ctx, event.NewShopLifecycleEvent(event.ShopCreated, shop.ID, shop.Name, string(shop.Kind), owner.String()))
	})
	if err != nil {
		return nil, err
	}
	return created, outErr
}

// DeleteShop removes a shop from the registry and persists the removal to
// both backends. Deleting an absent id reports not-found.
func (m *Manager) DeleteShop(ctx context.Context, shopID uuid.UUID) error {
	var outErr error
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		delete(m.registry, shopID)
		shop.State = domain.StateRemoved
		if err := m.store.DeleteShop(ctx, m.all(), shopID); err != nil {
			// The snapshot rewrite failed; restore the registry entry so
			// memory and the snapshot stay consistent.
			shop.State = domain.StateActive
			m.registry[shopID] = shop
			outErr = err
			return
		}
		owner := ""
		if shop.Kind == domain.KindPlayer {
			owner = shop.Owner.String()
		}
		m.publish(ctx, event.NewShopLifecycleEvent(event.ShopDeleted, shop.ID, shop.Name, string(shop.Kind), owner))
	})
	if err != nil {
		return err
	}
	return outErr
}

// GetShop returns the live shop for an id.
func (m *Manager) GetShop(ctx context.Context, shopID uuid.UUID) (*domain.Shop, error) {
	var (
		found  *domain.Shop
		outErr error
	)
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		found = shop
	})
	if err != nil {
		return nil, err
	}
	return found, outErr
}

// FindShopAt resolves a world position to a shop handle. Used by external
// world-interaction wiring.
func (m *Manager) FindShopAt(ctx context.Context, world string, x, y, z float64) (*domain.Shop, error) {
	var (
		found  *domain.Shop
		outErr error
	)
	err := m.do(ctx, func(ctx context.Context) {
		for _, shop := range m.registry {
			loc := shop.Location
			if loc.World == world && loc.X == x && loc.Y == y && loc.Z == z {
				found = shop
				return
			}
		}
		outErr = fmt.Errorf("%w: no shop at %s(%.1f, %.1f, %.1f)", domain.ErrNotFound, world, x, y, z)
	})
	if err != nil {
		return nil, err
	}
	return found, outErr
}

// ListShops returns all live shops.
func (m *Manager) ListShops(ctx context.Context) ([]*domain.Shop, error) {
	var out []*domain.Shop
	err := m.do(ctx, func(ctx context.Context) {
		out = m.all()
	})
	return out, err
}

// Buy marshals a purchase onto the main loop.
func (m *Manager) Buy(ctx context.Context, shopID, itemID uuid.UUID, quantity int, buyer uuid.UUID) (*domain.Transaction, error) {
	var (
		record *domain.Transaction
		outErr error
	)
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		record, outErr = m.trade.Buy(ctx, shop, itemID, quantity, buyer)
	})
	if err != nil {
		return nil, err
	}
	return record, outErr
}

// Sell marshals a sale onto the main loop.
func (m *Manager) Sell(ctx context.Context, shopID, itemID uuid.UUID, quantity int, seller uuid.UUID) (*domain.Transaction, error) {
	var (
		record *domain.Transaction
		outErr error
	)
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		record, outErr = m.trade.Sell(ctx, shop, itemID, quantity, seller)
	})
	if err != nil {
		return nil, err
	}
	return record, outErr
}

// PersistTrade implements economy.Persister. Runs on the main loop because
// the trade service is only ever invoked from there.
func (m *Manager) PersistTrade(ctx context.Context, shop *domain.Shop, tx domain.Transaction) error {
	if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
		return err
	}
	m.store.AppendTransaction(ctx, tx)
	return nil
}

// Mutate runs an arbitrary mutation of one shop on the main loop and
// persists on success. Used by the conversational input handlers and by
// command wiring.
func (m *Manager) Mutate(ctx context.Context, shopID uuid.UUID, fn func(shop *domain.Shop) error) error {
	var outErr error
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		if err := fn(shop); err != nil {
			outErr = err
			return
		}
		outErr = m.store.SaveShop(ctx, m.all(), shop)
	})
	if err != nil {
		return err
	}
	return outErr
}

// AddItem validates and adds a listing to a shop.
func (m *Manager) AddItem(ctx context.Context, shopID uuid.UUID, stack domain.ItemStack, buyPrice float64, currency string, stock int) (*domain.ShopItem, error) {
	var item *domain.ShopItem
	err := m.Mutate(ctx, shopID, func(shop *domain.Shop) error {
		created, err := domain.NewShopItem(stack, buyPrice, currency, stock, m.currencies)
		if err != nil {
			return err
		}
		if err := shop.AddItem(created); err != nil {
			return err
		}
		item = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem removes a listing and its mirror row.
func (m *Manager) RemoveItem(ctx context.Context, shopID, itemID uuid.UUID) error {
	var outErr error
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		if err := shop.RemoveItem(itemID); err != nil {
			outErr = err
			return
		}
		outErr = m.store.DeleteItem(ctx, m.all(), itemID)
	})
	if err != nil {
		return err
	}
	return outErr
}

// Currencies exposes the configured currency set for input validation.
func (m *Manager) Currencies() domain.CurrencySet {
	return m.currencies
}

func (m *Manager) defaultCurrency() string {
	return m.currency
}

func (m *Manager) publish(ctx context.Context, evt event.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("Event publish failed", "error", err, "type", evt.Type)
	}
}

// SaveAllNow persists the full registry. Used by the autosave worker and
// during shutdown.
func (m *Manager) SaveAllNow(ctx context.Context) error {
	var outErr error
	err := m.do(ctx, func(ctx context.Context) {
		outErr = m.store.SaveAll(ctx, m.all())
	})
	if err != nil {
		return err
	}
	return outErr
}

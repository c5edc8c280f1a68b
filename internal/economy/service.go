package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/metrics"
	"github.com/stallwart/shopkeeper/internal/pricing"
)

// Persister persists the outcome of a completed trade: the changed shop
// state through the write-through path and the transaction record onto
// the append-only ledger.
type Persister interface {
	PersistTrade(ctx context.Context, shop *domain.Shop, tx domain.Transaction) error
}

// Service defines the interface for trade operations. Callers must invoke
// Buy and Sell from the lifecycle manager's execution context; the service
// mutates shop state directly and relies on the single-writer discipline.
type Service interface {
	Buy(ctx context.Context, shop *domain.Shop, itemID uuid.UUID, quantity int, buyer uuid.UUID) (*domain.Transaction, error)
	Sell(ctx context.Context, shop *domain.Shop, itemID uuid.UUID, quantity int, seller uuid.UUID) (*domain.Transaction, error)
}

type service struct {
	engine    *pricing.Engine
	ledger    Ledger
	persister Persister
	bus       event.Bus
	eco       config.Economy
	now       func() time.Time
}

// NewService creates a new trade service
func NewService(engine *pricing.Engine, ledger Ledger, persister Persister, bus event.Bus, eco config.Economy) Service {
	return &service{
		engine:    engine,
		ledger:    ledger,
		persister: persister,
		bus:       bus,
		eco:       eco,
		now:       time.Now,
	}
}

// Buy executes a player purchase from a shop. Order matters for
// atomicity: every check that can fail runs before the first side effect,
// and the buyer debit is the last fallible step before state mutation.
func (s *service) Buy(ctx context.Context, shop *domain.Shop, itemID uuid.UUID, quantity int, buyer uuid.UUID) (*domain.Transaction, error) {
	log := logger.FromContext(ctx)

	item, err := s.validateTrade(shop, itemID, quantity)
	if err != nil {
		return nil, err
	}

	if !item.Unlimited() && shop.Kind == domain.KindPlayer && item.Stock < quantity {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientStock, item.Stock, quantity)
	}

	unitPrice := s.engine.BuyPrice(shop, item)
	amount := unitPrice * float64(quantity)
	tax := s.engine.Tax(amount, shop, shop.Category)

	if err := s.ledger.Debit(ctx, buyer.String(), amount+tax, item.Currency); err != nil {
		return nil, fmt.Errorf("%w: buyer cannot cover %.2f %s", domain.ErrInsufficientFunds, amount+tax, item.Currency)
	}

	// Past this point the trade must complete: the buyer has paid.
	if shop.Kind == domain.KindPlayer {
		if err := s.ledger.Credit(ctx, shop.Owner.String(), amount, item.Currency); err != nil {
			log.Error("Failed to credit shop owner", "error", err, "shop_id", shop.ID, "owner", shop.Owner)
		}
	}
	s.routeTax(ctx, shop, tax, item.Currency)

	if err := shop.AdjustStock(item.ID, -quantity); err != nil {
		// Stock was checked above; only an unlimited/admin race could get
		// here, and those adjustments cannot fail.
		log.Error("Stock decrement failed after debit", "error", err, "item_id", item.ID)
	}

	shop.AddStat(domain.StatItemsBought, float64(quantity))
	shop.AddStat(domain.StatTotalSalesVolume, amount)
	shop.AddStat(domain.StatTaxPaid, tax)

	record := domain.Transaction{
		ID:        uuid.New(),
		ShopID:    shop.ID,
		PlayerID:  buyer,
		ItemID:    item.ID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Tax:       tax,
		Direction: domain.DirectionBuy,
		Timestamp: s.now(),
	}

	if err := s.persister.PersistTrade(ctx, shop, record); err != nil {
		return nil, err
	}

	s.publishTrade(ctx, event.ItemBought, record, item.Currency)
	metrics.TransactionsTotal.WithLabelValues(string(domain.DirectionBuy)).Inc()
	metrics.TransactionVolume.WithLabelValues(string(domain.DirectionBuy), item.Currency).Add(amount)

	log.Info("Item purchased", "shop_id", shop.ID, "item_id", item.ID, "buyer", buyer, "quantity", quantity, "amount", amount, "tax", tax)
	return &record, nil
}

// Sell executes a player selling back to a shop. Player shops pay out of
// their owner's ledger balance; admin shops always accept.
func (s *service) Sell(ctx context.Context, shop *domain.Shop, itemID uuid.UUID, quantity int, seller uuid.UUID) (*domain.Transaction, error) {
	log := logger.FromContext(ctx)

	item, err := s.validateTrade(shop, itemID, quantity)
	if err != nil {
		return nil, err
	}

	unitPrice := s.engine.SellPrice(shop, item)
	amount := unitPrice * float64(quantity)
	tax := s.engine.Tax(amount, shop, shop.Category)

	if shop.Kind == domain.KindPlayer {
		if err := s.ledger.Debit(ctx, shop.Owner.String(), amount, item.Currency); err != nil {
			return nil, fmt.Errorf("%w: shop owner cannot cover %.2f %s", domain.ErrShopCannotAfford, amount, item.Currency)
		}
	}

	payout := amount - tax
	if payout < 0 {
		payout = 0
	}
	if err := s.ledger.Credit(ctx, seller.String(), payout, item.Currency); err != nil {
		log.Error("Failed to credit seller", "error", err, "seller", seller)
	}
	s.routeTax(ctx, shop, tax, item.Currency)

	// Sold items return to shop stock for player shops; admin stock is a no-op.
	if err := shop.AdjustStock(item.ID, quantity); err != nil {
		log.Error("Stock increment failed", "error", err, "item_id", item.ID)
	}

	shop.AddStat(domain.StatItemsSold, float64(quantity))
	shop.AddStat(domain.StatTotalSalesVolume, amount)
	shop.AddStat(domain.StatTaxPaid, tax)

	record := domain.Transaction{
		ID:        uuid.New(),
		ShopID:    shop.ID,
		PlayerID:  seller,
		ItemID:    item.ID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Tax:       tax,
		Direction: domain.DirectionSell,
		Timestamp: s.now(),
	}

	if err := s.persister.PersistTrade(ctx, shop, record); err != nil {
		return nil, err
	}

	s.publishTrade(ctx, event.ItemSold, record, item.Currency)
	metrics.TransactionsTotal.WithLabelValues(string(domain.DirectionSell)).Inc()
	metrics.TransactionVolume.WithLabelValues(string(domain.DirectionSell), item.Currency).Add(amount)

	log.Info("Item sold to shop", "shop_id", shop.ID, "item_id", item.ID, "seller", seller, "quantity", quantity, "amount", amount, "tax", tax)
	return &record, nil
}

func (s *service) validateTrade(shop *domain.Shop, itemID uuid.UUID, quantity int) (*domain.ShopItem, error) {
	if shop == nil {
		return nil, fmt.Errorf("%w: shop", domain.ErrNotFound)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrValidation, quantity)
	}
	if !shop.Open {
		return nil, fmt.Errorf("%w: shop %s is closed", domain.ErrValidation, shop.ID)
	}
	if shop.State == domain.StateExpired {
		return nil, fmt.Errorf("%w: shop %s", domain.ErrShopExpired, shop.ID)
	}
	return shop.Item(itemID)
}

// routeTax credits the configured collection account, or removes the tax
// from the economy outright when none is configured. The distinction
// changes total money supply and must be preserved exactly.
func (s *service) routeTax(ctx context.Context, shop *domain.Shop, tax float64, currency string) {
	if tax <= 0 {
		return
	}
	if s.eco.TaxAccount == "" {
		metrics.TaxDestroyed.Add(tax)
		s.publish(ctx, event.NewTaxEvent(event.TaxDestroyed, shop.ID, tax, currency, ""))
		return
	}
	if err := s.ledger.Credit(ctx, s.eco.TaxAccount, tax, currency); err != nil {
		logger.FromContext(ctx).Error("Failed to credit tax account", "error", err, "account", s.eco.TaxAccount)
		return
	}
	metrics.TaxCollected.Add(tax)
	s.publish(ctx, event.NewTaxEvent(event.TaxCollected, shop.ID, tax, currency, s.eco.TaxAccount))
}

func (s *service) publishTrade(ctx context.Context, eventType event.Type, record domain.Transaction, currency string) {
	s.publish(ctx, event.NewTradeEvent(eventType, record.ID, record.ShopID, record.PlayerID, record.ItemID, record.Quantity, record.UnitPrice, record.Tax, currency))
}

func (s *service) publish(ctx context.Context, evt event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		logger.FromContext(ctx).Warn("Event publish failed", "error", err, "type", evt.Type)
	}
}

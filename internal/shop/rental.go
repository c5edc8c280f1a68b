package shop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/metrics"
)

// SweepResult summarizes one pass over the registry's player shops.
type SweepResult struct {
	Renewed int
	Expired int
}

// SweepRentals walks every player shop once. Shops past their expiration
// with auto-renew enabled are charged the renewal cost exactly once and
// extended by one rental period; shops whose owner cannot pay, or that
// opted out of auto-renew, are flagged expired and closed. Expired shops
// are never removed here: the owner keeps the chance to renew manually.
func (m *Manager) SweepRentals(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := m.do(ctx, func(ctx context.Context) {
		log := logger.FromContext(ctx)
		now := m.now()
		for _, shop := range m.registry {
			if shop.Kind != domain.KindPlayer || shop.State != domain.StateActive {
				continue
			}
			if !shop.ExpirationTime.Before(now) {
				continue
			}

			if shop.AutoRenew {
				cost := m.engine.RenewalCost()
				debitErr := error(nil)
				if cost > 0 {
					debitErr = m.ledger.Debit(ctx, shop.Owner.String(), cost, m.defaultCurrency())
				}
				if debitErr == nil {
					// Extend from now, not from the lapsed timestamp: a shop
					// that sat expired for several periods is charged once,
					// not once per missed period.
					shop.ExpirationTime = now.Add(m.eco.RentalPeriod)
					if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
						log.Error("Failed to persist renewed shop", "error", err, "shop_id", shop.ID)
					}
					result.Renewed++
					metrics.ShopsRenewed.Inc()
					m.publish(ctx, event.NewShopLifecycleEvent(event.ShopRenewed, shop.ID, shop.Name, string(shop.Kind), shop.Owner.String()))
					continue
				}
				log.Info("Auto-renew declined, owner cannot afford renewal",
					"shop_id", shop.ID, "owner", shop.Owner, "cost", cost)
			}

			shop.State = domain.StateExpired
			shop.Open = false
			if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
				log.Error("Failed to persist expired shop", "error", err, "shop_id", shop.ID)
			}
			result.Expired++
			metrics.ShopsExpired.Inc()
			m.publish(ctx, event.NewShopLifecycleEvent(event.ShopExpired, shop.ID, shop.Name, string(shop.Kind), shop.Owner.String()))
		}
	})
	if err != nil {
		return SweepResult{}, err
	}
	return result, nil
}

// RenewShop manually extends an expired or active player shop by one
// rental period after charging the renewal cost.
func (m *Manager) RenewShop(ctx context.Context, shopID uuid.UUID) error {
	var outErr error
	err := m.do(ctx, func(ctx context.Context) {
		shop, ok := m.registry[shopID]
		if !ok {
			outErr = fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
			return
		}
		if shop.Kind != domain.KindPlayer {
			outErr = fmt.Errorf("%w: admin shops have no rental to renew", domain.ErrValidation)
			return
		}
		cost := m.engine.RenewalCost()
		if cost > 0 {
			if err := m.ledger.Debit(ctx, shop.Owner.String(), cost, m.defaultCurrency()); err != nil {
				outErr = fmt.Errorf("%w: renewal cost %.2f", domain.ErrInsufficientFunds, cost)
				return
			}
		}
		base := shop.ExpirationTime
		if base.Before(m.now()) {
			base = m.now()
		}
		shop.ExpirationTime = base.Add(m.eco.RentalPeriod)
		shop.State = domain.StateActive
		shop.Open = true
		if err := m.store.SaveShop(ctx, m.all(), shop); err != nil {
			outErr = err
			return
		}
		metrics.ShopsRenewed.Inc()
		m.publish(ctx, event.NewShopLifecycleEvent(event.ShopRenewed, shop.ID, shop.Name, string(shop.Kind), shop.Owner.String()))
	})
	if err != nil {
		return err
	}
	return outErr
}

// Package pricing computes effective prices and transaction tax. All
// functions are pure over entity data and the economy configuration;
// nothing here mutates a shop or item.
package pricing

import (
	"math"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
)

// Dynamic pricing modifier bounds. The modifier scales prices by recent
// demand pressure and is clamped so a runaway stat can at most halve or
// double a price.
const (
	dynamicModifierMin = 0.5
	dynamicModifierMax = 2.0
	dynamicSmoothing   = 10.0
)

// Engine resolves prices and tax from entity data and configuration.
type Engine struct {
	eco config.Economy
}

// NewEngine creates a pricing engine over the given economy settings.
func NewEngine(eco config.Economy) *Engine {
	return &Engine{eco: eco}
}

// BuyPrice returns the effective per-unit buy price for a listing:
// base price times the global multiplier times the dynamic modifier.
func (e *Engine) BuyPrice(shop *domain.Shop, item *domain.ShopItem) float64 {
	return item.BuyPrice * e.eco.PriceMultiplier * e.dynamicModifier(shop)
}

// SellPrice returns the effective per-unit sell price. When no sell price
// has been explicitly set, it is derived as buyPrice * SellPriceRatio; an
// explicitly set price is never overridden.
func (e *Engine) SellPrice(shop *domain.Shop, item *domain.ShopItem) float64 {
	base := e.BaseSellPrice(item)
	return base * e.eco.PriceMultiplier * e.dynamicModifier(shop)
}

// BaseSellPrice is the stored or derived sell price before multipliers.
func (e *Engine) BaseSellPrice(item *domain.ShopItem) float64 {
	if item.SellPrice != nil {
		return *item.SellPrice
	}
	return item.BuyPrice * e.eco.SellPriceRatio
}

// dynamicModifier derives a price modifier from the shop's recent
// supply/demand statistics. Identity when dynamic pricing is disabled.
func (e *Engine) dynamicModifier(shop *domain.Shop) float64 {
	if !e.eco.DynamicPricing || shop == nil {
		return 1.0
	}
	demand := shop.Stat(domain.StatItemsBought)
	supply := shop.Stat(domain.StatItemsSold)
	modifier := 1.0 + (demand-supply)/(demand+supply+dynamicSmoothing)
	return math.Min(dynamicModifierMax, math.Max(dynamicModifierMin, modifier))
}

// TaxRate resolves the effective tax rate for a shop: per-shop override,
// then per-category rate, then the global rate.
func (e *Engine) TaxRate(shop *domain.Shop, category string) float64 {
	if shop != nil && shop.TaxRate != nil {
		return *shop.TaxRate
	}
	return e.eco.CategoryTaxRate(category)
}

// Tax computes the tax owed on a whole transaction amount:
// clamp(amount * rate, min, max). A configured MaximumTax of 0 means
// "no cap" and must never act as a zero cap.
func (e *Engine) Tax(amount float64, shop *domain.Shop, category string) float64 {
	tax := amount * e.TaxRate(shop, category)
	if tax < e.eco.MinimumTax {
		tax = e.eco.MinimumTax
	}
	if e.eco.MaximumTax > 0 && tax > e.eco.MaximumTax {
		tax = e.eco.MaximumTax
	}
	return tax
}

// RenewalCost is the configured cost of extending a player shop's rental.
func (e *Engine) RenewalCost() float64 {
	return e.eco.RentalCost
}

// CreationCost is the configured cost of creating a player shop.
func (e *Engine) CreationCost() float64 {
	return e.eco.ShopCreationCost
}

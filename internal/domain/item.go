package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// CurrencySet is the set of currency identifiers the server accepts.
type CurrencySet map[string]struct{}

// NewCurrencySet builds a set from the configured currency list.
func NewCurrencySet(currencies []string) CurrencySet {
	set := make(CurrencySet, len(currencies))
	for _, c := range currencies {
		set[c] = struct{}{}
	}
	return set
}

// Contains reports whether the currency identifier is accepted.
func (c CurrencySet) Contains(currency string) bool {
	_, ok := c[currency]
	return ok
}

// ItemStack describes the tradable good an entry offers: an opaque item
// type plus quantity and optional display metadata. Stacks are cloned on
// every read and write so callers can never mutate stored state in place.
type ItemStack struct {
	Type        string   `yaml:"type" json:"type"`
	Quantity    int      `yaml:"quantity" json:"quantity"`
	DisplayName string   `yaml:"display-name,omitempty" json:"display_name,omitempty"`
	Lore        []string `yaml:"lore,omitempty" json:"lore,omitempty"`
}

// Clone returns an independent copy of the stack.
func (s ItemStack) Clone() ItemStack {
	out := s
	if s.Lore != nil {
		out.Lore = make([]string, len(s.Lore))
		copy(out.Lore, s.Lore)
	}
	return out
}

// ShopItem is one listing inside a shop. SellPrice is stored only once an
// operator sets it explicitly; until then the effective sell price is
// derived from the buy price by the pricing engine.
type ShopItem struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	stack     ItemStack
	BuyPrice  float64
	SellPrice *float64
	Currency  string
	Stock     int
}

// NewShopItem validates field bounds and constructs a listing. The owning
// shop id is set explicitly by Shop.AddItem; it is zero until then.
func NewShopItem(stack ItemStack, buyPrice float64, currency string, stock int, currencies CurrencySet) (*ShopItem, error) {
	item := &ShopItem{
		ID:       uuid.New(),
		stack:    stack.Clone(),
		BuyPrice: buyPrice,
		Currency: currency,
		Stock:    stock,
	}
	if err := item.validate(currencies); err != nil {
		return nil, err
	}
	return item, nil
}

func (i *ShopItem) validate(currencies CurrencySet) error {
	if err := validatePrice(i.BuyPrice); err != nil {
		return fmt.Errorf("buy price: %w", err)
	}
	if i.SellPrice != nil {
		if err := validatePrice(*i.SellPrice); err != nil {
			return fmt.Errorf("sell price: %w", err)
		}
	}
	if currencies != nil && !currencies.Contains(i.Currency) {
		return fmt.Errorf("%w: unknown currency %q", ErrValidation, i.Currency)
	}
	if i.Stock < StockUnlimited {
		return fmt.Errorf("%w: stock %d below unlimited sentinel", ErrValidation, i.Stock)
	}
	if i.stack.Quantity <= 0 {
		return fmt.Errorf("%w: stack quantity must be positive", ErrValidation)
	}
	if i.stack.Type == "" {
		return fmt.Errorf("%w: stack type must not be empty", ErrValidation)
	}
	return nil
}

func validatePrice(price float64) error {
	if price < PriceMin || price > PriceMax {
		return fmt.Errorf("%w: price %.2f outside [%.2f, %.2f]", ErrValidation, price, PriceMin, PriceMax)
	}
	return nil
}

// Stack returns a copy of the stored item stack.
func (i *ShopItem) Stack() ItemStack {
	return i.stack.Clone()
}

// SetStack replaces the stored stack with a copy of the given one.
func (i *ShopItem) SetStack(stack ItemStack) error {
	if stack.Quantity <= 0 || stack.Type == "" {
		return fmt.Errorf("%w: invalid item stack", ErrValidation)
	}
	i.stack = stack.Clone()
	return nil
}

// SetBuyPrice re-validates bounds on every call; entities are never assumed
// valid just because they were valid at construction.
func (i *ShopItem) SetBuyPrice(price float64) error {
	if err := validatePrice(price); err != nil {
		return err
	}
	i.BuyPrice = price
	return nil
}

// SetSellPrice pins an explicit sell price. Once set, the pricing engine
// never derives the sell price from the buy price again.
func (i *ShopItem) SetSellPrice(price float64) error {
	if err := validatePrice(price); err != nil {
		return err
	}
	p := price
	i.SellPrice = &p
	return nil
}

// SetCurrency changes the listing currency after checking the allowed set.
func (i *ShopItem) SetCurrency(currency string, currencies CurrencySet) error {
	if currencies != nil && !currencies.Contains(currency) {
		return fmt.Errorf("%w: unknown currency %q", ErrValidation, currency)
	}
	i.Currency = currency
	return nil
}

// SetStock replaces the stock level outright. StockUnlimited switches the
// listing to unlimited mode.
func (i *ShopItem) SetStock(stock int) error {
	if stock < 0 && stock != StockUnlimited {
		return fmt.Errorf("%w: stock %d must be non-negative or %d for unlimited", ErrValidation, stock, StockUnlimited)
	}
	i.Stock = stock
	return nil
}

// Unlimited reports whether the listing uses the unlimited stock sentinel.
func (i *ShopItem) Unlimited() bool {
	return i.Stock == StockUnlimited
}

// adjustStock applies a finite stock delta. Callers go through
// Shop.AdjustStock, which short-circuits for admin shops.
func (i *ShopItem) adjustStock(delta int) error {
	if i.Unlimited() {
		return nil
	}
	next := i.Stock + delta
	if next < 0 {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientStock, i.Stock, -delta)
	}
	i.Stock = next
	return nil
}

// Clone returns a deep copy of the listing.
func (i *ShopItem) Clone() *ShopItem {
	out := *i
	out.stack = i.stack.Clone()
	if i.SellPrice != nil {
		p := *i.SellPrice
		out.SellPrice = &p
	}
	return &out
}

package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind tags the shop variant. Kind-specific behavior dispatches on this tag
// rather than on a subtype hierarchy.
type Kind string

const (
	// KindAdmin shops have no owner and conceptually infinite stock.
	KindAdmin Kind = "admin"
	// KindPlayer shops are owned, finite-stock, and rent-expiring.
	KindPlayer Kind = "player"
)

// State is the lifecycle state of a shop.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRemoved State = "removed"
)

// Shop is a marketplace entity at a world position. Admin and player shops
// share one struct; Owner, ExpirationTime and AutoRenew are meaningful only
// for KindPlayer.
type Shop struct {
	ID          uuid.UUID
	Kind        Kind
	Name        string
	Description string
	Location    Location
	Open        bool
	// TaxRate overrides the category/global tax rate when non-nil.
	TaxRate *float64
	// Category selects a configured per-category tax rate; empty means
	// the global rate applies.
	Category string
	State    State

	// Player shop fields
	Owner          uuid.UUID
	ExpirationTime time.Time
	AutoRenew      bool

	items map[uuid.UUID]*ShopItem
	stats map[string]float64
}

// NewAdminShop validates bounds and constructs an ownerless shop.
func NewAdminShop(name, description string, loc Location) (*Shop, error) {
	s := &Shop{
		ID:          uuid.New(),
		Kind:        KindAdmin,
		Name:        name,
		Description: description,
		Location:    loc,
		Open:        true,
		State:       StateActive,
		items:       make(map[uuid.UUID]*ShopItem),
		stats:       make(map[string]float64),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPlayerShop validates bounds and constructs a player-owned shop with a
// rental expiration.
func NewPlayerShop(name, description string, loc Location, owner uuid.UUID, expires time.Time, autoRenew bool) (*Shop, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: player shop requires an owner", ErrValidation)
	}
	s := &Shop{
		ID:             uuid.New(),
		Kind:           KindPlayer,
		Name:           name,
		Description:    description,
		Location:       loc,
		Open:           true,
		State:          StateActive,
		Owner:          owner,
		ExpirationTime: expires,
		AutoRenew:      autoRenew,
		items:          make(map[uuid.UUID]*ShopItem),
		stats:          make(map[string]float64),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rehydrate rebuilds a shop from persisted fields, bypassing id generation
// but not validation. Used by the persistence layer on load.
func Rehydrate(id uuid.UUID, kind Kind, name, description string, loc Location, open bool, taxRate *float64) (*Shop, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: shop id must not be nil", ErrValidation)
	}
	s := &Shop{
		ID:          id,
		Kind:        kind,
		Name:        name,
		Description: description,
		Location:    loc,
		Open:        open,
		TaxRate:     taxRate,
		State:       StateActive,
		items:       make(map[uuid.UUID]*ShopItem),
		stats:       make(map[string]float64),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shop) validate() error {
	if n := len(s.Name); n < NameMinLength || n > NameMaxLength {
		return fmt.Errorf("%w: name length %d outside [%d, %d]", ErrValidation, n, NameMinLength, NameMaxLength)
	}
	if n := len(s.Description); n > DescriptionMaxLength {
		return fmt.Errorf("%w: description length %d exceeds %d", ErrValidation, n, DescriptionMaxLength)
	}
	if s.TaxRate != nil && (*s.TaxRate < 0 || *s.TaxRate > 1) {
		return fmt.Errorf("%w: tax rate %.3f outside [0, 1]", ErrValidation, *s.TaxRate)
	}
	switch s.Kind {
	case KindAdmin, KindPlayer:
	default:
		return fmt.Errorf("%w: unknown shop kind %q", ErrValidation, s.Kind)
	}
	return nil
}

// SetName re-validates the length bound on every call.
func (s *Shop) SetName(name string) error {
	if n := len(name); n < NameMinLength || n > NameMaxLength {
		return fmt.Errorf("%w: name length %d outside [%d, %d]", ErrValidation, n, NameMinLength, NameMaxLength)
	}
	s.Name = name
	return nil
}

// SetDescription re-validates the length bound on every call.
func (s *Shop) SetDescription(description string) error {
	if n := len(description); n > DescriptionMaxLength {
		return fmt.Errorf("%w: description length %d exceeds %d", ErrValidation, n, DescriptionMaxLength)
	}
	s.Description = description
	return nil
}

// SetTaxRate sets or clears (nil) the per-shop tax override.
func (s *Shop) SetTaxRate(rate *float64) error {
	if rate != nil && (*rate < 0 || *rate > 1) {
		return fmt.Errorf("%w: tax rate %.3f outside [0, 1]", ErrValidation, *rate)
	}
	s.TaxRate = rate
	return nil
}

// AddItem stores the listing and stamps its owning-shop id. The link is set
// here explicitly so it can never drift from the containing collection.
func (s *Shop) AddItem(item *ShopItem) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrValidation)
	}
	item.ShopID = s.ID
	s.items[item.ID] = item
	return nil
}

// RemoveItem deletes a listing by id.
func (s *Shop) RemoveItem(itemID uuid.UUID) error {
	if _, ok := s.items[itemID]; !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	delete(s.items, itemID)
	return nil
}

// Item looks up a listing by id.
func (s *Shop) Item(itemID uuid.UUID) (*ShopItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	return item, nil
}

// Items returns the listings sorted by id for deterministic iteration.
func (s *Shop) Items() []*ShopItem {
	out := make([]*ShopItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ItemCount returns the number of listings.
func (s *Shop) ItemCount() int {
	return len(s.items)
}

// AdjustStock applies a stock delta to a listing. Admin shop stock is
// conceptually infinite: the adjustment reports success without changing
// the stored value.
func (s *Shop) AdjustStock(itemID uuid.UUID, delta int) error {
	item, err := s.Item(itemID)
	if err != nil {
		return err
	}
	if s.Kind == KindAdmin {
		return nil
	}
	return item.adjustStock(delta)
}

// Stat returns the named statistic, zero when never recorded.
func (s *Shop) Stat(name string) float64 {
	return s.stats[name]
}

// AddStat accumulates onto the named statistic.
func (s *Shop) AddStat(name string, delta float64) {
	s.stats[name] += delta
}

// SetStat overwrites the named statistic. Used on load.
func (s *Shop) SetStat(name string, value float64) {
	s.stats[name] = value
}

// Stats returns a copy of the statistics map.
func (s *Shop) Stats() map[string]float64 {
	out := make(map[string]float64, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// Expired reports whether a player shop's rental has lapsed at the given
// instant. Admin shops never expire.
func (s *Shop) Expired(now time.Time) bool {
	return s.Kind == KindPlayer && s.ExpirationTime.Before(now)
}

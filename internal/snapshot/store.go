// Package snapshot persists the full shop registry as one hierarchical
// YAML document. The document is rewritten wholesale on every save and is
// the baseline source of truth for registry reconstruction at startup.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// Document is the top-level snapshot layout.
type Document struct {
	AdminShops  map[string]shopSection `yaml:"admin-shops"`
	PlayerShops map[string]shopSection `yaml:"player-shops"`
}

type shopSection struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	TaxRate     *float64               `yaml:"tax-rate,omitempty"`
	Location    domain.Location        `yaml:"location"`
	Open        bool                   `yaml:"open"`
	Items       map[string]itemSection `yaml:"items"`
	Stats       map[string]float64     `yaml:"stats,omitempty"`

	// Player shop fields
	Owner          string `yaml:"owner,omitempty"`
	ExpirationTime int64  `yaml:"expiration-time,omitempty"` // epoch milliseconds
	AutoRenew      bool   `yaml:"auto-renew,omitempty"`
}

type itemSection struct {
	Item      domain.ItemStack `yaml:"item"`
	BuyPrice  float64          `yaml:"buy-price"`
	SellPrice *float64         `yaml:"sell-price,omitempty"`
	Currency  string           `yaml:"currency"`
	Stock     int              `yaml:"stock"`
	ShopID    string           `yaml:"shop-id"`
}

// Store reads and writes the snapshot document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given snapshot file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save serializes the entire registry and replaces the old document. The
// write goes to a temp file first so a crash mid-save never truncates the
// only reload source.
func (s *Store) Save(shops []*domain.Shop) error {
	doc := Document{
		AdminShops:  make(map[string]shopSection),
		PlayerShops: make(map[string]shopSection),
	}
	for _, shop := range shops {
		section := encodeShop(shop)
		if shop.Kind == domain.KindAdmin {
			doc.AdminShops[shop.ID.String()] = section
		} else {
			doc.PlayerShops[shop.ID.String()] = section
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("%w: failed to encode snapshot: %v", domain.ErrPersistence, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create snapshot directory: %v", domain.ErrPersistence, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write snapshot: %v", domain.ErrPersistence, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: failed to replace snapshot: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Load reads the document and rebuilds the full shop set. A missing file
// is not an error: it means no shops exist yet.
func (s *Store) Load() ([]*domain.Shop, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read snapshot: %v", domain.ErrPersistence, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot: %v", domain.ErrPersistence, err)
	}

	var shops []*domain.Shop
	for id, section := range doc.AdminShops {
		shop, err := decodeShop(id, domain.KindAdmin, section)
		if err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	for id, section := range doc.PlayerShops {
		shop, err := decodeShop(id, domain.KindPlayer, section)
		if err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, nil
}

func encodeShop(shop *domain.Shop) shopSection {
	section := shopSection{
		Name:        shop.Name,
		Description: shop.Description,
		TaxRate:     shop.TaxRate,
		Location:    shop.Location,
		Open:        shop.Open,
		Items:       make(map[string]itemSection),
		Stats:       shop.Stats(),
	}
	if shop.Kind == domain.KindPlayer {
		section.Owner = shop.Owner.String()
		section.ExpirationTime = shop.ExpirationTime.UnixMilli()
		section.AutoRenew = shop.AutoRenew
	}
	for _, item := range shop.Items() {
		is := itemSection{
			Item:     item.Stack(),
			BuyPrice: item.BuyPrice,
			Currency: item.Currency,
			Stock:    item.Stock,
			ShopID:   item.ShopID.String(),
		}
		if item.SellPrice != nil {
			p := *item.SellPrice
			is.SellPrice = &p
		}
		section.Items[item.ID.String()] = is
	}
	return section
}

func decodeShop(id string, kind domain.Kind, section shopSection) (*domain.Shop, error) {
	shopID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid shop id %q: %v", domain.ErrPersistence, id, err)
	}

	shop, err := domain.Rehydrate(shopID, kind, section.Name, section.Description, section.Location, section.Open, section.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("%w: stored shop %s invalid: %v", domain.ErrPersistence, id, err)
	}

	if kind == domain.KindPlayer {
		owner, err := uuid.Parse(section.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid owner id %q for shop %s: %v", domain.ErrPersistence, section.Owner, id, err)
		}
		shop.Owner = owner
		shop.ExpirationTime = time.UnixMilli(section.ExpirationTime)
		shop.AutoRenew = section.AutoRenew
	}

	for itemID, is := range section.Items {
		item, err := decodeItem(itemID, is)
		if err != nil {
			return nil, fmt.Errorf("%w: stored item %s in shop %s invalid: %v", domain.ErrPersistence, itemID, id, err)
		}
		if err := shop.AddItem(item); err != nil {
			return nil, fmt.Errorf("%w: failed to restore item %s: %v", domain.ErrPersistence, itemID, err)
		}
	}

	for name, value := range section.Stats {
		shop.SetStat(name, value)
	}
	return shop, nil
}

func decodeItem(id string, section itemSection) (*domain.ShopItem, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid item id: %w", err)
	}

	// Currency membership is not re-checked on load: the allowed set may
	// have shrunk since the save and existing listings must still load.
	item, err := domain.NewShopItem(section.Item, section.BuyPrice, section.Currency, section.Stock, nil)
	if err != nil {
		return nil, err
	}
	item.ID = itemID
	if section.SellPrice != nil {
		if err := item.SetSellPrice(*section.SellPrice); err != nil {
			return nil, err
		}
	}
	return item, nil
}

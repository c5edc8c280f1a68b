package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TemplateItem is one blueprint listing, independent of any live shop.
type TemplateItem struct {
	Stack     ItemStack
	BuyPrice  float64
	SellPrice *float64
	Currency  string
	Stock     int
}

// ShopTemplate is a reusable blueprint for instantiating shops. Templates
// are immutable by default; edits go through Edit, which bumps the version.
type ShopTemplate struct {
	ID          uuid.UUID
	Name        string
	Description string
	Admin       bool
	Creator     string
	Category    string
	Version     int
	CreatedAt   time.Time
	Metadata    map[string]string
	Items       []TemplateItem
}

// NewTemplate constructs a template with a fresh id and creation time.
func NewTemplate(name, description, creator, category string, admin bool, items []TemplateItem) (*ShopTemplate, error) {
	return RebuildTemplate(uuid.New(), name, description, creator, category, admin, 1, time.Now(), nil, items)
}

// RebuildTemplate constructs a template from all fields, including the
// identifier and creation time. This is the only reconstruction path from
// stored rows; there is no field injection that bypasses validation.
func RebuildTemplate(id uuid.UUID, name, description, creator, category string, admin bool, version int, createdAt time.Time, metadata map[string]string, items []TemplateItem) (*ShopTemplate, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: template id must not be nil", ErrValidation)
	}
	if n := len(name); n < NameMinLength || n > NameMaxLength {
		return nil, fmt.Errorf("%w: template name length %d outside [%d, %d]", ErrValidation, n, NameMinLength, NameMaxLength)
	}
	if n := len(description); n > DescriptionMaxLength {
		return nil, fmt.Errorf("%w: template description length %d exceeds %d", ErrValidation, n, DescriptionMaxLength)
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: template version %d must be positive", ErrValidation, version)
	}
	for i, item := range items {
		if err := validatePrice(item.BuyPrice); err != nil {
			return nil, fmt.Errorf("template item %d: %w", i, err)
		}
		if item.SellPrice != nil {
			if err := validatePrice(*item.SellPrice); err != nil {
				return nil, fmt.Errorf("template item %d: %w", i, err)
			}
		}
	}
	t := &ShopTemplate{
		ID:          id,
		Name:        name,
		Description: description,
		Admin:       admin,
		Creator:     creator,
		Category:    category,
		Version:     version,
		CreatedAt:   createdAt,
		Metadata:    make(map[string]string, len(metadata)),
		Items:       make([]TemplateItem, len(items)),
	}
	for k, v := range metadata {
		t.Metadata[k] = v
	}
	for i, item := range items {
		t.Items[i] = item
		t.Items[i].Stack = item.Stack.Clone()
		if item.SellPrice != nil {
			p := *item.SellPrice
			t.Items[i].SellPrice = &p
		}
	}
	return t, nil
}

// TemplateFromShop snapshots a live shop's listings into a new template.
func TemplateFromShop(shop *Shop, name, creator, category string) (*ShopTemplate, error) {
	items := make([]TemplateItem, 0, shop.ItemCount())
	for _, item := range shop.Items() {
		ti := TemplateItem{
			Stack:    item.Stack(),
			BuyPrice: item.BuyPrice,
			Currency: item.Currency,
			Stock:    item.Stock,
		}
		if item.SellPrice != nil {
			p := *item.SellPrice
			ti.SellPrice = &p
		}
		items = append(items, ti)
	}
	return NewTemplate(name, shop.Description, creator, category, shop.Kind == KindAdmin, items)
}

// Edit replaces name, description and items, bumping the version counter.
func (t *ShopTemplate) Edit(name, description string, items []TemplateItem) error {
	next, err := RebuildTemplate(t.ID, name, description, t.Creator, t.Category, t.Admin, t.Version+1, t.CreatedAt, t.Metadata, items)
	if err != nil {
		return err
	}
	*t = *next
	return nil
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// ShopRecord is the relational projection of a shop row.
type ShopRecord struct {
	ID          uuid.UUID
	Name        string
	Kind        domain.Kind
	Owner       *uuid.UUID
	Location    string // delimited encoding, see domain.Location.Encode
	Description string
	Open        bool
}

// ItemRecord is the relational projection of a shop_items row.
type ItemRecord struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	Stack     domain.ItemStack
	BuyPrice  float64
	SellPrice *float64
	Currency  string
	Stock     int
}

// Shops defines the interface for the relational shop mirror. Saves are
// upserts (existence check by id, then insert or update); the snapshot
// store remains the baseline source of truth for registry reconstruction.
type Shops interface {
	// UpsertShop mirrors a shop row and all of its item rows.
	UpsertShop(ctx context.Context, shop *domain.Shop) error

	// DeleteShop removes a shop row; item and transaction rows follow via
	// cascading delete.
	DeleteShop(ctx context.Context, shopID uuid.UUID) error

	// DeleteItem removes a single item row.
	DeleteItem(ctx context.Context, itemID uuid.UUID) error

	// ListShops returns all mirrored shop rows.
	ListShops(ctx context.Context) ([]ShopRecord, error)

	// ListItems returns all mirrored item rows for a shop.
	ListItems(ctx context.Context, shopID uuid.UUID) ([]ItemRecord, error)
}

// Transactions defines the interface for the append-only transaction
// ledger. Records are inserted once and never updated.
type Transactions interface {
	Append(ctx context.Context, tx domain.Transaction) error
	ListByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]domain.Transaction, error)
	ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// Templates defines the interface for shop template storage.
type Templates interface {
	Save(ctx context.Context, tpl *domain.ShopTemplate) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ShopTemplate, error)
	List(ctx context.Context) ([]*domain.ShopTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

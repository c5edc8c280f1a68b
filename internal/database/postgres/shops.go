package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/repository"
)

// ShopRepository implements the shop mirror for PostgreSQL
type ShopRepository struct {
	db *pgxpool.Pool
}

// NewShopRepository creates a new ShopRepository
func NewShopRepository(db *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{db: db}
}

// UpsertShop mirrors a shop row and all of its item rows in one database
// transaction. The save is an existence check by id followed by an insert
// or update, matching the snapshot-first persistence contract.
func (r *ShopRepository) UpsertShop(ctx context.Context, shop *domain.Shop) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrPersistence, err)
	}
	defer safeRollback(ctx, tx)

	if err := upsertShopRow(ctx, tx, shop); err != nil {
		return err
	}
	for _, item := range shop.Items() {
		if err := upsertItemRow(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit shop upsert: %v", domain.ErrPersistence, err)
	}
	return nil
}

func upsertShopRow(ctx context.Context, tx pgx.Tx, shop *domain.Shop) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shops WHERE shop_id = $1)`, shop.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: failed to check shop existence: %v", domain.ErrPersistence, err)
	}

	var owner *uuid.UUID
	if shop.Kind == domain.KindPlayer {
		o := shop.Owner
		owner = &o
	}

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE shops
			SET shop_name = $2, shop_kind = $3, owner_id = $4, location = $5, description = $6, open = $7
			WHERE shop_id = $1`,
			shop.ID, shop.Name, string(shop.Kind), owner, shop.Location.Encode(), shop.Description, shop.Open)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO shops (shop_id, shop_name, shop_kind, owner_id, location, description, open)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			shop.ID, shop.Name, string(shop.Kind), owner, shop.Location.Encode(), shop.Description, shop.Open)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to upsert shop row: %v", domain.ErrPersistence, err)
	}
	return nil
}

func upsertItemRow(ctx context.Context, tx pgx.Tx, item *domain.ShopItem) error {
	stack, err := json.Marshal(item.Stack())
	if err != nil {
		return fmt.Errorf("%w: failed to encode item stack: %v", domain.ErrPersistence, err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shop_items WHERE item_id = $1)`, item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("%w: failed to check item existence: %v", domain.ErrPersistence, err)
	}

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE shop_items
			SET shop_id = $2, item_stack = $3, buy_price = $4, sell_price = $5, currency = $6, stock = $7
			WHERE item_id = $1`,
			item.ID, item.ShopID, stack, item.BuyPrice, item.SellPrice, item.Currency, item.Stock)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO shop_items (item_id, shop_id, item_stack, buy_price, sell_price, currency, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.ShopID, stack, item.BuyPrice, item.SellPrice, item.Currency, item.Stock)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to upsert item row: %v", domain.ErrPersistence, err)
	}
	return nil
}

// DeleteShop removes a shop row; items and transactions cascade.
func (r *ShopRepository) DeleteShop(ctx context.Context, shopID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shops WHERE shop_id = $1`, shopID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete shop: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopID)
	}
	return nil
}

// DeleteItem removes a single item row.
func (r *ShopRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shop_items WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete item: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, itemID)
	}
	return nil
}

// ListShops returns all mirrored shop rows.
func (r *ShopRepository) ListShops(ctx context.Context) ([]repository.ShopRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT shop_id, shop_name, shop_kind, owner_id, location, description, open
		FROM shops ORDER BY shop_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query shops: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []repository.ShopRecord
	for rows.Next() {
		var rec repository.ShopRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.Name, &kind, &rec.Owner, &rec.Location, &rec.Description, &rec.Open); err != nil {
			return nil, fmt.Errorf("%w: failed to scan shop row: %v", domain.ErrPersistence, err)
		}
		rec.Kind = domain.Kind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read shop rows: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

// ListItems returns all mirrored item rows for a shop.
func (r *ShopRepository) ListItems(ctx context.Context, shopID uuid.UUID) ([]repository.ItemRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT item_id, shop_id, item_stack, buy_price, sell_price, currency, stock
		FROM shop_items WHERE shop_id = $1`, shopID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query items: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []repository.ItemRecord
	for rows.Next() {
		var rec repository.ItemRecord
		var stack []byte
		if err := rows.Scan(&rec.ID, &rec.ShopID, &stack, &rec.BuyPrice, &rec.SellPrice, &rec.Currency, &rec.Stock); err != nil {
			return nil, fmt.Errorf("%w: failed to scan item row: %v", domain.ErrPersistence, err)
		}
		if err := json.Unmarshal(stack, &rec.Stack); err != nil {
			return nil, fmt.Errorf("%w: failed to decode item stack: %v", domain.ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read item rows: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

// safeRollback rolls back a transaction and logs any error other than the
// expected already-closed case.
func safeRollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.FromContext(ctx).Error("Failed to rollback transaction", "error", err)
	}
}

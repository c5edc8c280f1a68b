package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// TransactionRepository implements the append-only transaction ledger for
// PostgreSQL. Rows are inserted exactly once and never updated.
type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts one transaction record.
func (r *TransactionRepository) Append(ctx context.Context, tx domain.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (transaction_id, shop_id, player_id, item_id, quantity, price, tax, tx_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.ShopID, tx.PlayerID, tx.ItemID, tx.Quantity, tx.UnitPrice, tx.Tax, string(tx.Direction), tx.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: failed to append transaction: %v", domain.ErrPersistence, err)
	}
	return nil
}

const selectTransactions = `
	SELECT transaction_id, shop_id, player_id, item_id, quantity, price, tax, tx_type, created_at
	FROM transactions`

// ListByShop returns the most recent transactions for a shop.
func (r *TransactionRepository) ListByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE shop_id = $1 ORDER BY created_at DESC LIMIT $2`, shopID, limit)
}

// ListByPlayer returns the most recent transactions for a player.
func (r *TransactionRepository) ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2`, playerID, limit)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query transactions: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var direction string
		if err := rows.Scan(&tx.ID, &tx.ShopID, &tx.PlayerID, &tx.ItemID, &tx.Quantity, &tx.UnitPrice, &tx.Tax, &direction, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: failed to scan transaction row: %v", domain.ErrPersistence, err)
		}
		tx.Direction = domain.Direction(direction)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read transaction rows: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

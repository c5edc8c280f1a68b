package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// BalanceRepository implements the account ledger on PostgreSQL. Debits
// are conditional updates: the row's non-negative balance constraint plus
// the WHERE clause make overdrafts impossible without explicit locking.
type BalanceRepository struct {
	db *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository
func NewBalanceRepository(db *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Debit withdraws amount from the account, failing when the balance does
// not cover it.
func (r *BalanceRepository) Debit(ctx context.Context, accountID string, amount float64, currency string) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit amount %.2f must not be negative", domain.ErrValidation, amount)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE account_balances
		SET balance = balance - $3, updated_at = now()
		WHERE account_id = $1 AND currency = $2 AND balance >= $3`,
		accountID, currency, amount)
	if err != nil {
		return fmt.Errorf("%w: failed to debit account %s: %v", domain.ErrPersistence, accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s cannot cover %.2f %s", domain.ErrInsufficientFunds, accountID, amount, currency)
	}
	return nil
}

// Credit deposits amount into the account, creating the row on first use.
func (r *BalanceRepository) Credit(ctx context.Context, accountID string, amount float64, currency string) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit amount %.2f must not be negative", domain.ErrValidation, amount)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO account_balances (account_id, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, currency)
		DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance, updated_at = now()`,
		accountID, currency, amount)
	if err != nil {
		return fmt.Errorf("%w: failed to credit account %s: %v", domain.ErrPersistence, accountID, err)
	}
	return nil
}

// Balance reports the current balance for an account and currency.
func (r *BalanceRepository) Balance(ctx context.Context, accountID, currency string) (float64, error) {
	var balance float64
	err := r.db.QueryRow(ctx, `
		SELECT balance FROM account_balances
		WHERE account_id = $1 AND currency = $2`,
		accountID, currency).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to read balance for %s: %v", domain.ErrPersistence, accountID, err)
	}
	return balance, nil
}

package economy

import "context"

// Ledger is the external economy holding player currency balances. The
// core never inspects balances; it issues debits and credits and reacts
// to the result. A failed debit is reported as domain.ErrInsufficientFunds
// (or wrapped around it) by implementations.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount float64, currency string) error
	Credit(ctx context.Context, accountID string, amount float64, currency string) error
}

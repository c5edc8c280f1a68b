// Package bootstrap wires the application's components together at process
// start and tears them down in order at shutdown.
package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/database/postgres"
	"github.com/stallwart/shopkeeper/internal/economy"
	"github.com/stallwart/shopkeeper/internal/repository"
)

// Repositories holds all repository implementations used by the application.
type Repositories struct {
	Shops        repository.Shops
	Transactions repository.Transactions
	Templates    repository.Templates
	EventLog     repository.EventLog
	Balances     economy.Ledger
}

// InitializeRepositories creates all repository implementations against the
// shared connection pool.
func InitializeRepositories(dbPool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Shops:        postgres.NewShopRepository(dbPool),
		Transactions: postgres.NewTransactionRepository(dbPool),
		Templates:    postgres.NewTemplateRepository(dbPool),
		EventLog:     postgres.NewEventLogRepository(dbPool),
		Balances:     postgres.NewBalanceRepository(dbPool),
	}
}

package economy

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stallwart/shopkeeper/internal/domain"
)

// MockLedger implements Ledger for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Debit(ctx context.Context, accountID string, amount float64, currency string) error {
	args := m.Called(ctx, accountID, amount, currency)
	return args.Error(0)
}

func (m *MockLedger) Credit(ctx context.Context, accountID string, amount float64, currency string) error {
	args := m.Called(ctx, accountID, amount, currency)
	return args.Error(0)
}

// MockPersister implements Persister for testing
type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) PersistTrade(ctx context.Context, shop *domain.Shop, tx domain.Transaction) error {
	args := m.Called(ctx, shop, tx)
	return args.Error(0)
}

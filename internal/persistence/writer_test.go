package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/snapshot"
)

// MockShops implements repository.Shops for testing
type MockShops struct {
	mock.Mock
}

func (m *MockShops) UpsertShop(ctx context.Context, shop *domain.Shop) error {
	args := m.Called(ctx, shop)
	return args.Error(0)
}

func (m *MockShops) DeleteShop(ctx context.Context, shopID uuid.UUID) error {
	args := m.Called(ctx, shopID)
	return args.Error(0)
}

func (m *MockShops) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockShops) ListShops(ctx context.Context) ([]repository.ShopRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ShopRecord), args.Error(1)
}

func (m *MockShops) ListItems(ctx context.Context, shopID uuid.UUID) ([]repository.ItemRecord, error) {
	args := m.Called(ctx, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ItemRecord), args.Error(1)
}

// MockTransactions implements repository.Transactions for testing
type MockTransactions struct {
	mock.Mock
}

func (m *MockTransactions) Append(ctx context.Context, tx domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactions) ListByShop(ctx context.Context, shopID uuid.UUID, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, shopID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactions) ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, playerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func testShop(t *testing.T) *domain.Shop {
	t.Helper()
	shop, err := domain.NewAdminShop("Server Market", "", domain.Location{World: "overworld"})
	require.NoError(t, err)
	return shop
}

func newWriter(t *testing.T) (*Writer, *MockShops, *MockTransactions) {
	t.Helper()
	shops := new(MockShops)
	txs := new(MockTransactions)
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "shops.yml"))
	return NewWriter(store, shops, txs), shops, txs
}

func TestSaveAllMirrorsEveryShop(t *testing.T) {
	w, shops, _ := newWriter(t)
	a, b := testShop(t), testShop(t)

	shops.On("UpsertShop", mock.Anything, a).Return(nil).Once()
	shops.On("UpsertShop", mock.Anything, b).Return(nil).Once()

	require.NoError(t, w.SaveAll(context.Background(), []*domain.Shop{a, b}))
	shops.AssertExpectations(t)
}

func TestMirrorFailureDoesNotAbortSave(t *testing.T) {
	w, shops, _ := newWriter(t)
	shop := testShop(t)

	shops.On("UpsertShop", mock.Anything, shop).Return(errors.New("connection refused"))

	err := w.SaveShop(context.Background(), []*domain.Shop{shop}, shop)
	assert.NoError(t, err, "relational mirror failure must not fail the snapshot save")
}

func TestSnapshotFailureIsSurfaced(t *testing.T) {
	shops := new(MockShops)
	txs := new(MockTransactions)
	// Parent "directory" is a regular file, so the snapshot write fails.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, writeFile(blocked))
	store := snapshot.NewStore(filepath.Join(blocked, "shops.yml"))
	w := NewWriter(store, shops, txs)

	err := w.SaveAll(context.Background(), []*domain.Shop{testShop(t)})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	shops.AssertNotCalled(t, "UpsertShop", mock.Anything, mock.Anything)
}

func TestAppendTransactionSwallowsLedgerFailure(t *testing.T) {
	w, _, txs := newWriter(t)
	record := domain.Transaction{
		ID:        uuid.New(),
		ShopID:    uuid.New(),
		PlayerID:  uuid.New(),
		ItemID:    uuid.New(),
		Quantity:  1,
		UnitPrice: 10,
		Direction: domain.DirectionBuy,
		Timestamp: time.Now(),
	}

	txs.On("Append", mock.Anything, record).Return(errors.New("deadlock detected"))

	// Must not panic or propagate; gaps in the ledger are tolerated.
	w.AppendTransaction(context.Background(), record)
	txs.AssertExpectations(t)
}

func TestDeleteShopMirrorsRemoval(t *testing.T) {
	w, shops, _ := newWriter(t)
	shop := testShop(t)

	shops.On("DeleteShop", mock.Anything, shop.ID).Return(nil).Once()

	require.NoError(t, w.DeleteShop(context.Background(), nil, shop.ID))
	shops.AssertExpectations(t)
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o644)
}

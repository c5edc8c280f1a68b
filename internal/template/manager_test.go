package template

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/pricing"
	"github.com/stallwart/shopkeeper/internal/shop"
)

type MockTemplates struct {
	mock.Mock
}

func (m *MockTemplates) Save(ctx context.Context, tpl *domain.ShopTemplate) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *MockTemplates) Get(ctx context.Context, id uuid.UUID) (*domain.ShopTemplate, error) {
	args := m.Called(ctx, id)
	tpl, _ := args.Get(0).(*domain.ShopTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplates) List(ctx context.Context) ([]*domain.ShopTemplate, error) {
	args := m.Called(ctx)
	tpls, _ := args.Get(0).([]*domain.ShopTemplate)
	return tpls, args.Error(1)
}

func (m *MockTemplates) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type stubStore struct{}

func (stubStore) Load(context.Context) ([]*domain.Shop, error)                  { return nil, nil }
func (stubStore) SaveAll(context.Context, []*domain.Shop) error                 { return nil }
func (stubStore) SaveShop(context.Context, []*domain.Shop, *domain.Shop) error  { return nil }
func (stubStore) DeleteShop(context.Context, []*domain.Shop, uuid.UUID) error   { return nil }
func (stubStore) DeleteItem(context.Context, []*domain.Shop, uuid.UUID) error   { return nil }
func (stubStore) AppendTransaction(context.Context, domain.Transaction)         {}

type stubLedger struct{}

func (stubLedger) Debit(context.Context, string, float64, string) error  { return nil }
func (stubLedger) Credit(context.Context, string, float64, string) error { return nil }

func newShopManager(t *testing.T) *shop.Manager {
	t.Helper()
	eco := config.DefaultEconomy()
	mgr := shop.NewManager(stubStore{}, pricing.NewEngine(eco), stubLedger{}, event.NewMemoryBus(), eco)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mgr.Run(ctx)
	return mgr
}

func sampleItems() []domain.TemplateItem {
	return []domain.TemplateItem{
		{Stack: domain.ItemStack{Type: "DIAMOND", Quantity: 1}, BuyPrice: 100, Currency: "coins", Stock: domain.StockUnlimited},
		{Stack: domain.ItemStack{Type: "BREAD", Quantity: 16}, BuyPrice: 5, Currency: "coins", Stock: 64},
	}
}

func TestCreateTemplate(t *testing.T) {
	repo := new(MockTemplates)
	mgr, err := NewManager(repo, newShopManager(t))
	require.NoError(t, err)

	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	tpl, err := mgr.Create(context.Background(), "Starter Kit", "basics for new players", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)
	assert.Len(t, tpl.Items, 2)
	repo.AssertExpectations(t)
}

func TestCreateTemplateValidation(t *testing.T) {
	repo := new(MockTemplates)
	mgr, err := NewManager(repo, newShopManager(t))
	require.NoError(t, err)

	_, err = mgr.Create(context.Background(), "ab", "", "admin", "general", true, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestGetServesFromCache(t *testing.T) {
	repo := new(MockTemplates)
	mgr, err := NewManager(repo, newShopManager(t))
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil).Once()

	for i := 0; i < 3; i++ {
		got, err := mgr.Get(context.Background(), tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, tpl.ID, got.ID)
	}
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestEditBumpsVersion(t *testing.T) {
	repo := new(MockTemplates)
	mgr, err := NewManager(repo, newShopManager(t))
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	edited, err := mgr.Edit(context.Background(), tpl.ID, "Starter Kit v2", "refreshed", sampleItems()[:1])
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Version)
	assert.Len(t, edited.Items, 1)
}

func TestSnapshotFromShop(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	s, err := shopMgr.CreateAdminShop(context.Background(), "Spawn Market", "", domain.Location{World: "world"})
	require.NoError(t, err)
	_, err = shopMgr.AddItem(context.Background(), s.ID,
		domain.ItemStack{Type: "DIAMOND", Quantity: 1}, 100, "coins", 32)
	require.NoError(t, err)

	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	tpl, err := mgr.SnapshotFromShop(context.Background(), s.ID, "Spawn Layout", "admin", "general")
	require.NoError(t, err)
	require.Len(t, tpl.Items, 1)
	assert.Equal(t, 100.0, tpl.Items[0].BuyPrice)
	assert.Equal(t, 32, tpl.Items[0].Stock)
}

func TestApplyStocksShop(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil)

	s, err := shopMgr.CreateAdminShop(context.Background(), "Spawn Market", "", domain.Location{World: "world"})
	require.NoError(t, err)

	require.NoError(t, mgr.Apply(context.Background(), tpl.ID, s.ID))

	got, err := shopMgr.GetShop(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ItemCount())
	for _, item := range got.Items() {
		assert.Equal(t, s.ID, item.ShopID, "applied listings get stamped with the target shop")
	}
}

func TestInstantiateAdminTemplate(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil)

	s, err := mgr.Instantiate(context.Background(), tpl.ID, "Spawn Market", "from template", domain.Location{World: "world"}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdmin, s.Kind)
	assert.Equal(t, 2, s.ItemCount())
	for _, item := range s.Items() {
		assert.Equal(t, s.ID, item.ShopID)
	}
}

func TestInstantiatePlayerTemplate(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Market Stall", "", "steve", "general", false, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil)

	owner := uuid.New()
	s, err := mgr.Instantiate(context.Background(), tpl.ID, "Steve's Stall", "", domain.Location{World: "world"}, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.KindPlayer, s.Kind)
	assert.Equal(t, owner, s.Owner)
	assert.Equal(t, 2, s.ItemCount())

	// Requires an owner.
	_, err = mgr.Instantiate(context.Background(), tpl.ID, "Nobody's Stall", "", domain.Location{World: "world"}, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInstantiateRollsBackOnBadListing(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	tpl.Items[0].Currency = "dogecoin" // not in the configured currency set
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil)

	_, err = mgr.Instantiate(context.Background(), tpl.ID, "Spawn Market", "", domain.Location{World: "world"}, uuid.Nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	shops, err := shopMgr.ListShops(context.Background())
	require.NoError(t, err)
	assert.Empty(t, shops, "the half-stocked shop must not survive")
}

func TestApplyUnknownTemplate(t *testing.T) {
	repo := new(MockTemplates)
	shopMgr := newShopManager(t)
	mgr, err := NewManager(repo, shopMgr)
	require.NoError(t, err)

	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(nil, domain.ErrNotFound)

	err = mgr.Apply(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteEvictsCache(t *testing.T) {
	repo := new(MockTemplates)
	mgr, err := NewManager(repo, newShopManager(t))
	require.NoError(t, err)

	tpl, err := domain.NewTemplate("Starter Kit", "", "admin", "general", true, sampleItems())
	require.NoError(t, err)
	repo.On("Get", mock.Anything, tpl.ID).Return(tpl, nil).Twice()
	repo.On("Delete", mock.Anything, tpl.ID).Return(nil)

	_, err = mgr.Get(context.Background(), tpl.ID)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(context.Background(), tpl.ID))

	// The next read must hit the repository again.
	_, err = mgr.Get(context.Background(), tpl.ID)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

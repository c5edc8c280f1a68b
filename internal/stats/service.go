// Package stats aggregates marketplace activity: per-shop counters kept on
// the live entities and trade history from the transaction ledger.
package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/shop"
)

// ShopEntry is one row of a shop leaderboard.
type ShopEntry struct {
	ShopID   uuid.UUID `json:"shop_id"`
	ShopName string    `json:"shop_name"`
	Value    float64   `json:"value"`
}

// Summary aggregates ledger rows for one shop or player.
type Summary struct {
	Transactions int     `json:"transactions"`
	ItemsBought  int     `json:"items_bought"`
	ItemsSold    int     `json:"items_sold"`
	Volume       float64 `json:"volume"`
	TaxPaid      float64 `json:"tax_paid"`
}

// Service defines the interface for stats operations
type Service interface {
	ShopStats(ctx context.Context, shopID uuid.UUID) (map[string]float64, error)
	TopShops(ctx context.Context, stat string, limit int) ([]ShopEntry, error)
	ShopSummary(ctx context.Context, shopID uuid.UUID, limit int) (*Summary, error)
	PlayerSummary(ctx context.Context, playerID uuid.UUID, limit int) (*Summary, error)
}

type service struct {
	mgr *shop.Manager
	txs repository.Transactions
}

// NewService creates a new stats service
func NewService(mgr *shop.Manager, txs repository.Transactions) Service {
	return &service{mgr: mgr, txs: txs}
}

// ShopStats returns the live counters for one shop.
func (s *service) ShopStats(ctx context.Context, shopID uuid.UUID) (map[string]float64, error) {
	sh, err := s.mgr.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return sh.Stats(), nil
}

// TopShops ranks live shops by one counter, highest first.
func (s *service) TopShops(ctx context.Context, stat string, limit int) ([]ShopEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: leaderboard limit must be positive", domain.ErrValidation)
	}
	shops, err := s.mgr.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ShopEntry, 0, len(shops))
	for _, sh := range shops {
		entries = append(entries, ShopEntry{
			ShopID:   sh.ID,
			ShopName: sh.Name,
			Value:    sh.Stat(stat),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ShopSummary aggregates the shop's recent ledger rows.
func (s *service) ShopSummary(ctx context.Context, shopID uuid.UUID, limit int) (*Summary, error) {
	txs, err := s.txs.ListByShop(ctx, shopID, limit)
	if err != nil {
		return nil, err
	}
	return summarize(txs), nil
}

// PlayerSummary aggregates a player's recent ledger rows across all shops.
func (s *service) PlayerSummary(ctx context.Context, playerID uuid.UUID, limit int) (*Summary, error) {
	txs, err := s.txs.ListByPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, err
	}
	return summarize(txs), nil
}

func summarize(txs []domain.Transaction) *Summary {
	sum := &Summary{Transactions: len(txs)}
	for _, tx := range txs {
		sum.Volume += tx.Amount()
		sum.TaxPaid += tx.Tax
		switch tx.Direction {
		case domain.DirectionBuy:
			sum.ItemsBought += tx.Quantity
		case domain.DirectionSell:
			sum.ItemsSold += tx.Quantity
		}
	}
	return sum
}

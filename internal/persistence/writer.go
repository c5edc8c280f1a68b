// Package persistence coordinates the two durable backends: the snapshot
// document and the relational mirror. The snapshot save is the primary
// success criterion; relational writes are best-effort mirroring and a
// failing mirror never aborts a completed snapshot save. The two stores
// can therefore diverge on partial failure, and transaction history
// readers must tolerate ledger gaps.
package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/metrics"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/snapshot"
)

// Writer is the write-through facade used by the lifecycle manager.
type Writer struct {
	snap  *snapshot.Store
	shops repository.Shops
	txs   repository.Transactions
}

// NewWriter creates a persistence writer over both backends.
func NewWriter(snap *snapshot.Store, shops repository.Shops, txs repository.Transactions) *Writer {
	return &Writer{snap: snap, shops: shops, txs: txs}
}

// Load eagerly reads the snapshot document. Called once at process start.
func (w *Writer) Load(ctx context.Context) ([]*domain.Shop, error) {
	shops, err := w.snap.Load()
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Snapshot loaded", "shops", len(shops))
	return shops, nil
}

// SaveAll rewrites the snapshot for the whole registry and mirrors every
// shop. Snapshot failure is returned; mirror failures are logged and
// swallowed.
func (w *Writer) SaveAll(ctx context.Context, registry []*domain.Shop) error {
	if err := w.saveSnapshot(registry); err != nil {
		return err
	}
	for _, shop := range registry {
		w.mirrorShop(ctx, shop)
	}
	return nil
}

// SaveShop rewrites the snapshot for the whole registry and mirrors only
// the changed shop.
func (w *Writer) SaveShop(ctx context.Context, registry []*domain.Shop, changed *domain.Shop) error {
	if err := w.saveSnapshot(registry); err != nil {
		return err
	}
	w.mirrorShop(ctx, changed)
	return nil
}

// DeleteShop persists a registry removal to both backends. The registry
// passed in must already exclude the deleted shop.
func (w *Writer) DeleteShop(ctx context.Context, registry []*domain.Shop, shopID uuid.UUID) error {
	if err := w.saveSnapshot(registry); err != nil {
		return err
	}
	if err := w.shops.DeleteShop(ctx, shopID); err != nil {
		metrics.MirrorFailures.Inc()
		logger.FromContext(ctx).Error("Relational shop delete failed", "error", err, "shop_id", shopID)
	}
	return nil
}

// DeleteItem removes a single item row from the mirror after the snapshot
// has been rewritten.
func (w *Writer) DeleteItem(ctx context.Context, registry []*domain.Shop, itemID uuid.UUID) error {
	if err := w.saveSnapshot(registry); err != nil {
		return err
	}
	if err := w.shops.DeleteItem(ctx, itemID); err != nil {
		metrics.MirrorFailures.Inc()
		logger.FromContext(ctx).Error("Relational item delete failed", "error", err, "item_id", itemID)
	}
	return nil
}

// AppendTransaction appends one record to the relational ledger. A failed
// append leaves a gap in the queryable history but never rolls back the
// completed trade; it is logged and counted.
func (w *Writer) AppendTransaction(ctx context.Context, tx domain.Transaction) {
	if err := w.txs.Append(ctx, tx); err != nil {
		metrics.LedgerAppendFailures.Inc()
		logger.FromContext(ctx).Error("Transaction ledger append failed", "error", err, "transaction_id", tx.ID)
	}
}

func (w *Writer) saveSnapshot(registry []*domain.Shop) error {
	if err := w.snap.Save(registry); err != nil {
		metrics.SnapshotFailures.Inc()
		return err
	}
	metrics.SnapshotSaves.Inc()
	return nil
}

func (w *Writer) mirrorShop(ctx context.Context, shop *domain.Shop) {
	if err := w.shops.UpsertShop(ctx, shop); err != nil {
		metrics.MirrorFailures.Inc()
		logger.FromContext(ctx).Error("Relational mirror write failed", "error", err, "shop_id", shop.ID)
	}
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/shop"
)

// RentalSweepWorker periodically walks the registry and renews or expires
// player shops whose rental lapsed.
type RentalSweepWorker struct {
	mgr      *shop.Manager
	interval time.Duration
	shutdown chan struct{}
	wg       sync.WaitGroup
}

func NewRentalSweepWorker(mgr *shop.Manager, interval time.Duration) *RentalSweepWorker {
	return &RentalSweepWorker{
		mgr:      mgr,
		interval: interval,
		shutdown: make(chan struct{}),
	}
}

// Start runs the sweep loop. The first sweep fires immediately so shops
// that lapsed while the process was down are handled at boot.
func (w *RentalSweepWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweep()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.sweep()
			case <-w.shutdown:
				return
			}
		}
	}()
}

func (w *RentalSweepWorker) sweep() {
	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Debug(LogMsgRentalSweepStarting)
	result, err := w.mgr.SweepRentals(ctx)
	if err != nil {
		log.Error(LogMsgRentalSweepFailed, "error", err)
		return
	}
	if result.Renewed > 0 || result.Expired > 0 {
		log.Info(LogMsgRentalSweepCompleted, "renewed", result.Renewed, "expired", result.Expired)
	}
}

// Shutdown stops the loop and waits for an in-flight sweep.
func (w *RentalSweepWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

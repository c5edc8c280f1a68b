package worker

import (
	"context"
	"sync"
	"time"

	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/shop"
)

// AutosaveWorker periodically rewrites the full snapshot so a crash loses
// at most one interval of mutations that somehow missed a write-through.
type AutosaveWorker struct {
	mgr      *shop.Manager
	interval time.Duration
	shutdown chan struct{}
	wg       sync.WaitGroup
}

func NewAutosaveWorker(mgr *shop.Manager, interval time.Duration) *AutosaveWorker {
	return &AutosaveWorker{
		mgr:      mgr,
		interval: interval,
		shutdown: make(chan struct{}),
	}
}

func (w *AutosaveWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.save()
			case <-w.shutdown:
				return
			}
		}
	}()
}

func (w *AutosaveWorker) save() {
	ctx := context.Background()
	log := logger.FromContext(ctx)
	if err := w.mgr.SaveAllNow(ctx); err != nil {
		log.Error(LogMsgAutosaveFailed, "error", err)
		return
	}
	log.Debug(LogMsgAutosaveCompleted)
}

// Shutdown stops the loop, then performs one final save so no mutation is
// lost across a clean restart.
func (w *AutosaveWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.mgr.SaveAllNow(ctx)
}

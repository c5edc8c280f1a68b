package bootstrap

import (
	"context"
	"log/slog"

	"github.com/stallwart/shopkeeper/internal/scheduler"
	"github.com/stallwart/shopkeeper/internal/server"
	"github.com/stallwart/shopkeeper/internal/worker"
)

// Shutdown log messages
const (
	LogMsgShuttingDownServer   = "Shutting down"
	LogMsgServerForcedShutdown = "Server forced to shutdown"
	LogMsgShutdownComplete     = "Shutdown complete"
)

// ShutdownComponents holds all components that need graceful shutdown.
type ShutdownComponents struct {
	Server            *server.Server
	RentalSweepWorker *worker.RentalSweepWorker
	AutosaveWorker    *worker.AutosaveWorker
	Scheduler         *scheduler.Scheduler
	WorkerPool        *worker.Pool
}

// GracefulShutdown tears down the application in order: the HTTP server
// stops accepting requests first, then the periodic workers drain, and the
// autosave worker's final save runs last so every mutation up to this
// point lands in the snapshot.
//
// Errors during shutdown are logged but do not stop the sequence.
func GracefulShutdown(ctx context.Context, components ShutdownComponents) {
	slog.Info(LogMsgShuttingDownServer)

	if err := components.Server.Stop(ctx); err != nil {
		slog.Error(LogMsgServerForcedShutdown, "error", err)
	}

	if components.RentalSweepWorker != nil {
		if err := components.RentalSweepWorker.Shutdown(ctx); err != nil {
			slog.Error("Rental sweep worker shutdown failed", "error", err)
		}
	}

	if components.Scheduler != nil {
		components.Scheduler.Stop()
	}
	if components.WorkerPool != nil {
		components.WorkerPool.Stop()
	}

	// Last: flushes the final snapshot.
	if components.AutosaveWorker != nil {
		if err := components.AutosaveWorker.Shutdown(ctx); err != nil {
			slog.Error("Autosave worker shutdown failed", "error", err)
		}
	}

	slog.Info(LogMsgShutdownComplete)
}

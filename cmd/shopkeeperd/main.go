package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stallwart/shopkeeper/internal/bootstrap"
	"github.com/stallwart/shopkeeper/internal/config"
	"github.com/stallwart/shopkeeper/internal/conversation"
	"github.com/stallwart/shopkeeper/internal/database"
	"github.com/stallwart/shopkeeper/internal/economy"
	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/eventlog"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/persistence"
	"github.com/stallwart/shopkeeper/internal/pricing"
	"github.com/stallwart/shopkeeper/internal/scheduler"
	"github.com/stallwart/shopkeeper/internal/server"
	"github.com/stallwart/shopkeeper/internal/shop"
	"github.com/stallwart/shopkeeper/internal/snapshot"
	"github.com/stallwart/shopkeeper/internal/stats"
	"github.com/stallwart/shopkeeper/internal/template"
	"github.com/stallwart/shopkeeper/internal/worker"
)

const (
	shutdownTimeout  = 15 * time.Second
	sweepInterval    = time.Minute
	autosaveInterval = 5 * time.Minute
	cleanupInterval  = 24 * time.Hour
	poolWorkers      = 2
	poolQueueSize    = 16
	dbMaxConns       = 10
	dbMaxIdle        = 5 * time.Minute
	dbMaxLife        = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.NewConfig(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Version, cfg.Environment, false))
	slog.Info("Starting shopkeeper", "environment", cfg.Environment, "version", cfg.Version)

	if err := database.Migrate(cfg.GetDBConnString()); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewPool(cfg.GetDBConnString(), dbMaxConns, dbMaxIdle, dbMaxLife)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	repos := bootstrap.InitializeRepositories(dbPool)
	bus := event.NewMemoryBus()

	logSvc := eventlog.NewService(repos.EventLog)
	logSvc.SubscribeAll(bus)

	store := snapshot.NewStore(cfg.SnapshotPath)
	writer := persistence.NewWriter(store, repos.Shops, repos.Transactions)

	engine := pricing.NewEngine(cfg.Economy)
	mgr := shop.NewManager(writer, engine, repos.Balances, bus, cfg.Economy)
	mgr.SetTradeService(economy.NewService(engine, repos.Balances, mgr, bus, cfg.Economy))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.LoadRegistry(ctx); err != nil {
		slog.Error("Failed to load shop snapshot", "error", err)
		os.Exit(1)
	}
	go mgr.Run(ctx)

	tracker := conversation.NewTracker(mgr)
	templates, err := template.NewManager(repos.Templates, mgr)
	if err != nil {
		slog.Error("Failed to create template manager", "error", err)
		os.Exit(1)
	}

	sweeper := worker.NewRentalSweepWorker(mgr, sweepInterval)
	sweeper.Start()
	autosave := worker.NewAutosaveWorker(mgr, autosaveInterval)
	autosave.Start()

	pool := worker.NewPool(poolWorkers, poolQueueSize)
	pool.Start()
	sched := scheduler.New(pool)
	sched.Schedule(cleanupInterval, eventlog.NewCleanupJob(logSvc, eventlog.DefaultRetentionDays))

	statsService := stats.NewService(mgr, repos.Transactions)

	srv := server.NewServer(cfg.Port, cfg.Version, dbPool, mgr, tracker, templates, repos.Transactions, statsService)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	bootstrap.GracefulShutdown(shutdownCtx, bootstrap.ShutdownComponents{
		Server:            srv,
		RentalSweepWorker: sweeper,
		AutosaveWorker:    autosave,
		Scheduler:         sched,
		WorkerPool:        pool,
	})

	// Stop the manager loop only after the final save went through.
	cancel()
}

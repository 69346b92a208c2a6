package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-resale/internal/app"
	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/observability"
	"github.com/odyssey-erp/odyssey-resale/internal/partners"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/db"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
	"github.com/odyssey-erp/odyssey-resale/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	loc, _ := cfg.Location()
	inventory.SetLocation(loc)
	policy, _ := cfg.DriftPolicy()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	inventoryRepo := inventory.NewRepository(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	inventoryService := inventory.NewService(inventoryRepo, inventory.NewPGSequence(pool),
		inventory.ServiceConfig{DriftPolicy: policy},
		inventory.Deps{
			Partners: partners.NewRepository(pool),
			Locker:   shared.NewRedisLocker(redisClient, cfg.InventoryLockTTL),
			Audit:    shared.NewAuditLogger(pool),
			Cache:    inventory.NewRedisStockCache(redisClient, cfg.StockCacheTTL, logger),
			Observer: metrics,
			Logger:   logger,
		})

	confirmJob := jobs.NewAutoConfirmJob(inventoryService, inventoryRepo, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:     idempotencyStore,
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	confirmTask, err := jobs.NewAutoConfirmTask(jobs.AutoConfirmPayload{})
	if err != nil {
		logger.Error("build auto-confirm task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.CleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventoryAutoConfirm, Handler: confirmJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AutoConfirmCron, Task: confirmTask},
			{Spec: "30 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-resale/internal/app"
	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/ledger"
	"github.com/odyssey-erp/odyssey-resale/internal/observability"
	"github.com/odyssey-erp/odyssey-resale/internal/partners"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/db"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
	"github.com/odyssey-erp/odyssey-resale/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1:]))
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	policy, _ := cfg.DriftPolicy()
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	locker := shared.NewRedisLocker(redisClient, cfg.InventoryLockTTL)
	partnerRepo := partners.NewRepository(dbpool)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, inventory.NewPGSequence(dbpool),
		inventory.ServiceConfig{DriftPolicy: policy},
		inventory.Deps{
			Partners:    partnerRepo,
			Locker:      locker,
			Audit:       auditLogger,
			Idempotency: idempotencyStore,
			Cache:       inventory.NewRedisStockCache(redisClient, cfg.StockCacheTTL, logger),
			Observer:    metrics,
			Logger:      logger,
		})
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	ledgerService := ledger.NewService(inventoryService, partnerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventoryHandler,
		LedgerHandler:    ledgerHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/botica-pos/botica/internal/app"
	"github.com/botica-pos/botica/internal/customers"
	"github.com/botica-pos/botica/internal/imports"
	jobmetrics "github.com/botica-pos/botica/internal/jobs"
	"github.com/botica-pos/botica/internal/platform/cache"
	"github.com/botica-pos/botica/internal/platform/db"
	"github.com/botica-pos/botica/internal/reports"
	"github.com/botica-pos/botica/internal/settings"
	"github.com/botica-pos/botica/internal/shared"
	"github.com/botica-pos/botica/internal/stock"
	"github.com/botica-pos/botica/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Caches degrade to direct reads without redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo, redisClient, cfg.SettingsCacheTTL)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, stock.ServiceConfig{
		BatchNumberPrefix: settingsService.BatchPrefix(ctx),
	})

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache)

	importer := imports.NewImporter(stockService)

	metrics := jobmetrics.NewMetrics(nil)
	sweepJob := jobs.NewExpirySweepJob(stockService, reportsService, logger, metrics)
	lowStockJob := jobs.NewLowStockScanJob(stockService, logger, metrics)
	statsJob := jobs.NewCustomerStatsJob(customersService, logger, metrics)
	importJob := jobs.NewBatchImportJob(importer, reportsService, logger, metrics)

	sweepTask, err := jobs.NewExpirySweepTask(time.Now())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewLowStockScanTask(time.Now())
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	statsTask, err := jobs.NewCustomerStatsTask(time.Now())
	if err != nil {
		logger.Error("build customer stats task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpirySweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskCustomerStats, Handler: statsJob.Handle},
			{Type: jobs.TaskBatchImport, Handler: importJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: statsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

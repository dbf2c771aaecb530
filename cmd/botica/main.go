package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/botica-pos/botica/internal/app"
	"github.com/botica-pos/botica/internal/catalog"
	"github.com/botica-pos/botica/internal/customers"
	"github.com/botica-pos/botica/internal/imports"
	"github.com/botica-pos/botica/internal/observability"
	"github.com/botica-pos/botica/internal/platform/cache"
	"github.com/botica-pos/botica/internal/platform/db"
	"github.com/botica-pos/botica/internal/reports"
	"github.com/botica-pos/botica/internal/sales"
	"github.com/botica-pos/botica/internal/settings"
	"github.com/botica-pos/botica/internal/shared"
	"github.com/botica-pos/botica/internal/stock"
	"github.com/botica-pos/botica/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo, redisClient, cfg.SettingsCacheTTL)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, stock.ServiceConfig{
		BatchNumberPrefix: settingsService.BatchPrefix(ctx),
	})

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, stockService)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, stockService, catalogService, customersService, settingsService, auditLogger)

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	importer := imports.NewImporter(stockService)
	importsHandler := imports.NewHandler(logger, importer, jobClient, cfg.ImportSpoolDir)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		StockHandler:     stock.NewHandler(logger, stockService),
		CustomersHandler: customers.NewHandler(logger, customersService),
		SalesHandler:     sales.NewHandler(logger, salesService),
		SettingsHandler:  settings.NewHandler(logger, settingsService),
		ImportsHandler:   importsHandler,
		ReportsHandler:   reports.NewHandler(logger, reportsService),
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
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

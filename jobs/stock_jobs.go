package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/botica-pos/botica/internal/jobs"
	"github.com/botica-pos/botica/internal/stock"
)

// StockSweeper is the slice of the stock service the scheduled jobs use.
type StockSweeper interface {
	ExpirySweep(ctx context.Context, now time.Time) (int64, error)
	LowStock(ctx context.Context) ([]stock.LowStockEntry, error)
}

// ReportInvalidator drops cached reports after bulk mutations.
type ReportInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ExpirySweepJob marks past-expiry batches expired so they stop being
// picked for sale.
type ExpirySweepJob struct {
	Stock   StockSweeper
	Reports ReportInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpirySweepJob initialises the expiry sweep handler.
func NewExpirySweepJob(stockSvc StockSweeper, reports ReportInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{
		Stock:   stockSvc,
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes TaskExpirySweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("expiry_sweep")
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	swept, err := j.Stock.ExpirySweep(ctx, j.clock())
	if err != nil {
		j.Logger.Error("expiry sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	if swept > 0 {
		j.Metrics.AddAlerts("expired", int(swept))
		if j.Reports != nil {
			if err := j.Reports.Invalidate(ctx); err != nil {
				j.Logger.Warn("expiry sweep cache bump", slog.Any("error", err))
			}
		}
	}
	j.Logger.Info("expiry sweep done", slog.Int64("batches_expired", swept))
	return tracker.End(nil)
}

// LowStockScanJob surfaces products at or below their reorder level.
type LowStockScanJob struct {
	Stock   StockSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(stockSvc StockSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Stock: stockSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("low_stock_scan")
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	entries, err := j.Stock.LowStock(ctx)
	if err != nil {
		j.Logger.Error("low stock scan", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddAlerts("low_stock", len(entries))
	for _, e := range entries {
		j.Logger.Warn("low stock",
			slog.Int64("product_id", e.ProductID),
			slog.String("product", e.ProductName),
			slog.Int64("remaining", e.QtyRemaining),
			slog.Int64("reorder_level", e.ReorderLevel))
	}
	return tracker.End(nil)
}

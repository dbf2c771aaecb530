package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/botica-pos/botica/internal/jobs"
)

// StatsRebuilder rebuilds cached customer purchase statistics from the
// sales history.
type StatsRebuilder interface {
	RecalculateStats(ctx context.Context) (int64, error)
}

// CustomerStatsJob reconciles the denormalized purchase counters after
// refunds and imports have shifted the underlying sales.
type CustomerStatsJob struct {
	Customers StatsRebuilder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewCustomerStatsJob initialises the customer stats handler.
func NewCustomerStatsJob(customers StatsRebuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *CustomerStatsJob {
	return &CustomerStatsJob{Customers: customers, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCustomerStats tasks.
func (j *CustomerStatsJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("customer_stats")
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	updated, err := j.Customers.RecalculateStats(ctx)
	if err != nil {
		j.Logger.Error("customer stats rebuild", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("customer stats rebuilt", slog.Int64("customers_updated", updated))
	return tracker.End(nil)
}

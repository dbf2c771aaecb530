package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/botica-pos/botica/internal/imports"
	jobmetrics "github.com/botica-pos/botica/internal/jobs"
)

// CSVImporter runs a spooled batch receipt CSV.
type CSVImporter interface {
	Run(ctx context.Context, r io.Reader, actorID int64) (imports.Result, error)
}

// BatchImportJob processes CSV files spooled by the async import
// endpoint. The spool file is removed once the run finishes, whatever
// the per-row outcome.
type BatchImportJob struct {
	Importer CSVImporter
	Reports  ReportInvalidator
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewBatchImportJob initialises the batch import handler.
func NewBatchImportJob(importer CSVImporter, reports ReportInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *BatchImportJob {
	return &BatchImportJob{Importer: importer, Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBatchImport tasks.
func (j *BatchImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track("batch_import")
	var payload BatchImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	f, err := os.Open(payload.Path)
	if err != nil {
		// Missing spool files will not reappear on retry.
		j.Logger.Error("batch import open", slog.String("path", payload.Path), slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	result, err := j.Importer.Run(ctx, f, payload.ActorID)
	f.Close()
	if err != nil {
		j.Logger.Error("batch import", slog.String("path", payload.Path), slog.Any("error", err))
		return tracker.End(err)
	}
	if err := os.Remove(payload.Path); err != nil {
		j.Logger.Warn("batch import cleanup", slog.String("path", payload.Path), slog.Any("error", err))
	}
	if result.Created > 0 && j.Reports != nil {
		if err := j.Reports.Invalidate(ctx); err != nil {
			j.Logger.Warn("batch import cache bump", slog.Any("error", err))
		}
	}
	j.Logger.Info("batch import done",
		slog.String("path", payload.Path),
		slog.Int("created", result.Created),
		slog.Int("rejected", len(result.Errors)))
	return tracker.End(nil)
}

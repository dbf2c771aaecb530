package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskExpirySweep marks past-expiry batches expired.
	TaskExpirySweep = "stock:expiry_sweep"
	// TaskLowStockScan reports products at or below their reorder level.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskCustomerStats rebuilds cached customer purchase statistics.
	TaskCustomerStats = "customers:refresh_stats"
	// TaskBatchImport processes a spooled batch receipt CSV.
	TaskBatchImport = "imports:batch_csv"
)

// SweepPayload carries scheduling metadata for the expiry sweep.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewExpirySweepTask constructs the expiry sweep task.
func NewExpirySweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewCustomerStatsTask constructs the customer stats rebuild task.
func NewCustomerStatsTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCustomerStats, body, asynq.Queue(QueueDefault)), nil
}

// BatchImportPayload points the worker at a spooled CSV file.
type BatchImportPayload struct {
	Path    string `json:"path"`
	ActorID int64  `json:"actor_id"`
}

// NewBatchImportTask constructs a batch import task.
func NewBatchImportTask(payload BatchImportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBatchImport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

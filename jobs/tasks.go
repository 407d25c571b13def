// Package jobs runs the background worker: report cache warm-up and ledger
// integrity checks on asynq.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup pre-builds the period reports into the cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskLedgerIntegrity verifies double entry and cached balances.
	TaskLedgerIntegrity = "ledger:integrity"
)

// TaskNames lists every task type the worker handles.
var TaskNames = []string{TaskReportsWarmup, TaskLedgerIntegrity}

// ReportsWarmupPayload selects the month to warm, formatted YYYY-MM. Empty
// means the current month.
type ReportsWarmupPayload struct {
	Month string `json:"month,omitempty"`
}

// Window returns the first and last day of the payload month.
func (p ReportsWarmupPayload) Window(now time.Time) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if p.Month != "" {
		parsed, err := time.Parse("2006-01", p.Month)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("month %q must be YYYY-MM", p.Month)
		}
		start = parsed
	}
	return start, start.AddDate(0, 1, -1), nil
}

// NewReportsWarmupTask builds the warm-up task.
func NewReportsWarmupTask(month string) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmupPayload{Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// NewLedgerIntegrityTask builds the integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewTask builds a task by name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskReportsWarmup:
		return NewReportsWarmupTask("")
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(), nil
	default:
		return nil, fmt.Errorf("jobs: unsupported task %q", name)
	}
}

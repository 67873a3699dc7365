package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillingTrialSweep expires trials that elapsed without payment.
	TaskBillingTrialSweep = "billing:trial_sweep"
	// TaskBillingGraceSweep expires past_due gyms beyond their grace window.
	TaskBillingGraceSweep = "billing:grace_sweep"
)

// SweepPayload carries scheduling metadata for billing sweeps.
type SweepPayload struct {
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTrialSweepTask constructs the trial sweep task.
func NewTrialSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingTrialSweep, data), nil
}

// NewGraceSweepTask constructs the grace sweep task.
func NewGraceSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingGraceSweep, data), nil
}

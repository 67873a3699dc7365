package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pulsefit/pulsefit/internal/billing"
)

// BillingSweepJob runs subscription expiry sweeps against the billing
// service.
type BillingSweepJob struct {
	service *billing.Service
	logger  *slog.Logger
}

// NewBillingSweepJob constructs a BillingSweepJob.
func NewBillingSweepJob(service *billing.Service, logger *slog.Logger) *BillingSweepJob {
	return &BillingSweepJob{service: service, logger: logger}
}

// HandleTrialSweep processes TaskBillingTrialSweep tasks.
func (j *BillingSweepJob) HandleTrialSweep(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	moved, err := j.service.SweepTrials(ctx)
	if err != nil {
		j.logger.Error("trial sweep", slog.Any("error", err))
		return err
	}
	j.logger.Info("trial sweep complete", slog.Int("expired", moved))
	return nil
}

// HandleGraceSweep processes TaskBillingGraceSweep tasks.
func (j *BillingSweepJob) HandleGraceSweep(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	moved, err := j.service.SweepGrace(ctx)
	if err != nil {
		j.logger.Error("grace sweep", slog.Any("error", err))
		return err
	}
	j.logger.Info("grace sweep complete", slog.Int("expired", moved))
	return nil
}

package flags

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Store provides flag records for evaluation.
type Store interface {
	FlagByName(ctx context.Context, name string) (Flag, error)
}

// PlanLookup resolves the plan a gym is on. Implemented by the gyms service.
type PlanLookup interface {
	PlanFor(ctx context.Context, gymID uuid.UUID) (string, error)
}

// Evaluator decides feature enablement per gym. Evaluation is deterministic:
// the same gym and flag always land in the same rollout bucket, across calls
// and restarts. Every failure path evaluates to disabled.
type Evaluator struct {
	store  Store
	plans  PlanLookup
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(store Store, plans PlanLookup, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, plans: plans, logger: logger}
}

// IsEnabled reports whether the named flag is rolled out to the gym.
func (e *Evaluator) IsEnabled(ctx context.Context, name string, gymID uuid.UUID) bool {
	flag, err := e.store.FlagByName(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && e.logger != nil {
			e.logger.Error("flag lookup", slog.String("flag", name), slog.Any("error", err))
		}
		return false
	}
	if !flag.Enabled {
		return false
	}
	if len(flag.TargetPlans) > 0 {
		planID, err := e.plans.PlanFor(ctx, gymID)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("flag plan lookup", slog.String("flag", name), slog.String("gym", gymID.String()), slog.Any("error", err))
			}
			return false
		}
		if !flag.TargetsPlan(planID) {
			return false
		}
	}
	return Bucket(gymID, name) < flag.RolloutPercentage
}

// Bucket returns the deterministic percentile bucket (0..99) the gym falls
// into for the flag. It is a pure function of the gym id and flag name only.
func Bucket(gymID uuid.UUID, name string) int {
	digest := xxhash.New()
	_, _ = digest.WriteString(gymID.String())
	_, _ = digest.WriteString(":")
	_, _ = digest.WriteString(name)
	return int(digest.Sum64() % 100)
}

package flags

import (
	"errors"
	"time"
)

// ErrNotFound indicates the flag does not exist. Evaluation treats an unknown
// flag as disabled; this error only surfaces on admin reads.
var ErrNotFound = errors.New("flags: not found")

// Flag is a feature rollout record, mutated from the admin console and
// observed read-only by evaluation.
type Flag struct {
	Name              string    `json:"name" validate:"required,lowercase"`
	Enabled           bool      `json:"is_enabled"`
	RolloutPercentage int       `json:"rollout_percentage" validate:"gte=0,lte=100"`
	TargetPlans       []string  `json:"target_plans"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TargetsPlan reports whether the flag applies to the plan. An empty
// target_plans set means all plans.
func (f Flag) TargetsPlan(planID string) bool {
	if len(f.TargetPlans) == 0 {
		return true
	}
	for _, plan := range f.TargetPlans {
		if plan == planID {
			return true
		}
	}
	return false
}

package gyms

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/billing"
)

// ErrNotFound indicates the gym does not exist.
var ErrNotFound = errors.New("gyms: not found")

// Gym is a tenant account. All member data and permissions are scoped to one.
type Gym struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	PlanID             string         `json:"plan_id"`
	SubscriptionStatus billing.Status `json:"subscription_status"`
	CurrentPeriodEnd   time.Time      `json:"current_period_end"`
	TrialEndsAt        time.Time      `json:"trial_ends_at"`
	PastDueSince       *time.Time     `json:"past_due_since,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

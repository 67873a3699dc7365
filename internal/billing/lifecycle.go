package billing

import (
	"fmt"
	"time"
)

// Status enumerates a gym's subscription lifecycle states.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Known reports whether the status is part of the lifecycle.
func (s Status) Known() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Event triggers a lifecycle transition.
type Event string

const (
	// EventChargeSucceeded marks the successful initial charge.
	EventChargeSucceeded Event = "charge_succeeded"
	// EventTrialElapsed fires when the trial period ends without payment.
	EventTrialElapsed Event = "trial_elapsed"
	// EventChargeFailed marks a failed renewal charge.
	EventChargeFailed Event = "charge_failed"
	// EventPaymentRecovered marks payment recovery inside the grace period.
	EventPaymentRecovered Event = "payment_recovered"
	// EventGraceElapsed fires when the grace period is exceeded.
	EventGraceElapsed Event = "grace_elapsed"
	// EventCancelled marks an explicit cancellation.
	EventCancelled Event = "cancelled"
)

// InvalidTransitionError reports a rejected lifecycle transition. It is fatal
// to the mutating caller and is never coerced into a nearby valid state.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("billing: invalid transition: %s on %s", e.Event, e.From)
}

// transitions is the full allowed table. cancelled is terminal; every
// non-terminal state accepts EventCancelled.
var transitions = map[Status]map[Event]Status{
	StatusTrial: {
		EventChargeSucceeded: StatusActive,
		EventTrialElapsed:    StatusExpired,
		EventCancelled:       StatusCancelled,
	},
	StatusActive: {
		EventChargeFailed: StatusPastDue,
		EventCancelled:    StatusCancelled,
	},
	StatusPastDue: {
		EventPaymentRecovered: StatusActive,
		EventGraceElapsed:     StatusExpired,
		EventCancelled:        StatusCancelled,
	},
	StatusExpired: {
		EventCancelled: StatusCancelled,
	},
}

// Transition returns the status reached by applying the event, or an
// *InvalidTransitionError when the table has no such edge.
func Transition(from Status, event Event) (Status, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: event}
	}
	next, ok := edges[event]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: event}
	}
	return next, nil
}

// WritesSuspended reports whether the status alone blocks tenant-scoped
// writes. past_due inside the grace window is a soft warning state and does
// not suspend; once the grace period elapses the sweep moves the gym to
// expired.
func WritesSuspended(status Status) bool {
	return status == StatusCancelled || status == StatusExpired
}

// GraceExceeded reports whether a past_due subscription has outrun its grace
// window as of now.
func GraceExceeded(pastDueSince time.Time, graceDays int, now time.Time) bool {
	if pastDueSince.IsZero() {
		return false
	}
	return now.Sub(pastDueSince) > time.Duration(graceDays)*24*time.Hour
}

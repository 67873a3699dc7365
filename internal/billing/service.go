package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the gym does not exist.
var ErrNotFound = errors.New("billing: gym not found")

// ErrStaleStatus indicates the stored status changed between read and write.
var ErrStaleStatus = errors.New("billing: subscription status changed concurrently")

// Subscription is the billing view of a gym record.
type Subscription struct {
	GymID        uuid.UUID
	Status       Status
	PlanID       string
	PeriodEnd    time.Time
	TrialEndsAt  time.Time
	PastDueSince *time.Time
}

// Repository persists subscription state. Gym records are owned by the
// external store; this core only moves the status along the allowed graph.
type Repository interface {
	Subscription(ctx context.Context, gymID uuid.UUID) (Subscription, error)
	// UpdateStatus moves gymID from one status to another. Implementations
	// must guard on the previous status and report ErrStaleStatus when the
	// row moved underneath the caller.
	UpdateStatus(ctx context.Context, gymID uuid.UUID, from, to Status, at time.Time) error
	// TrialsElapsed lists trial gyms whose trial_ends_at is before now.
	TrialsElapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// GraceElapsed lists past_due gyms whose past_due_since is before cutoff.
	GraceElapsed(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// Invalidator drops cached gym snapshots after a status change so the next
// guard evaluation sees the new state.
type Invalidator interface {
	Invalidate(ctx context.Context, gymID uuid.UUID) error
}

// Service applies lifecycle events to stored gyms.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
	graceDays   int
	now         func() time.Time
}

// NewService constructs a Service. invalidator may be nil.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger, graceDays int) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
		graceDays:   graceDays,
		now:         time.Now,
	}
}

// GraceDays exposes the configured grace window.
func (s *Service) GraceDays() int {
	return s.graceDays
}

// Apply runs one lifecycle event against the gym's current status. An
// invalid transition is returned to the caller unchanged.
func (s *Service) Apply(ctx context.Context, gymID uuid.UUID, event Event) (Status, error) {
	sub, err := s.repo.Subscription(ctx, gymID)
	if err != nil {
		return "", err
	}
	next, err := Transition(sub.Status, event)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateStatus(ctx, gymID, sub.Status, next, s.now()); err != nil {
		return "", err
	}
	s.invalidate(ctx, gymID)
	if s.logger != nil {
		s.logger.Info("subscription transition",
			slog.String("gym", gymID.String()),
			slog.String("from", string(sub.Status)),
			slog.String("to", string(next)),
			slog.String("event", string(event)))
	}
	return next, nil
}

// SweepTrials expires every trial whose period elapsed without payment.
// Returns the number of gyms moved.
func (s *Service) SweepTrials(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.TrialsElapsed(ctx, now)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, ids, EventTrialElapsed)
}

// SweepGrace expires every past_due gym whose grace window has been
// exceeded. Returns the number of gyms moved.
func (s *Service) SweepGrace(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-time.Duration(s.graceDays) * 24 * time.Hour)
	ids, err := s.repo.GraceElapsed(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, ids, EventGraceElapsed)
}

func (s *Service) sweep(ctx context.Context, ids []uuid.UUID, event Event) (int, error) {
	moved := 0
	for _, id := range ids {
		if _, err := s.Apply(ctx, id, event); err != nil {
			// A single stale or invalid row must not abort the sweep; the
			// next run picks it up if it is still eligible.
			if s.logger != nil {
				s.logger.Warn("sweep skip", slog.String("gym", id.String()), slog.Any("error", err))
			}
			continue
		}
		moved++
	}
	return moved, nil
}

func (s *Service) invalidate(ctx context.Context, gymID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, gymID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate gym cache", slog.String("gym", gymID.String()), slog.Any("error", err))
	}
}

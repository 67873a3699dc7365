package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryBillingRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{subs: make(map[uuid.UUID]*Subscription)}
}

func (r *memoryBillingRepo) add(status Status, trialEndsAt time.Time, pastDueSince *time.Time) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.subs[id] = &Subscription{GymID: id, Status: status, TrialEndsAt: trialEndsAt, PastDueSince: pastDueSince}
	return id
}

func (r *memoryBillingRepo) Subscription(ctx context.Context, gymID uuid.UUID) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[gymID]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return *sub, nil
}

func (r *memoryBillingRepo) UpdateStatus(ctx context.Context, gymID uuid.UUID, from, to Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[gymID]
	if !ok {
		return ErrNotFound
	}
	if sub.Status != from {
		return ErrStaleStatus
	}
	sub.Status = to
	if to == StatusPastDue {
		since := at
		sub.PastDueSince = &since
	}
	return nil
}

func (r *memoryBillingRepo) TrialsElapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, sub := range r.subs {
		if sub.Status == StatusTrial && sub.TrialEndsAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryBillingRepo) GraceElapsed(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, sub := range r.subs {
		if sub.Status == StatusPastDue && sub.PastDueSince != nil && sub.PastDueSince.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryBillingRepo) status(id uuid.UUID) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id].Status
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (i *recordingInvalidator) Invalidate(ctx context.Context, gymID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, gymID)
	return i.err
}

func TestServiceApply(t *testing.T) {
	repo := newMemoryBillingRepo()
	invalidator := &recordingInvalidator{}
	service := NewService(repo, invalidator, nil, 7)

	id := repo.add(StatusTrial, time.Now().Add(14*24*time.Hour), nil)

	status, err := service.Apply(context.Background(), id, EventChargeSucceeded)
	require.NoError(t, err)
	require.Equal(t, StatusActive, status)
	require.Equal(t, StatusActive, repo.status(id))
	require.Equal(t, []uuid.UUID{id}, invalidator.ids)
}

func TestServiceApplyInvalidTransition(t *testing.T) {
	repo := newMemoryBillingRepo()
	service := NewService(repo, nil, nil, 7)

	id := repo.add(StatusCancelled, time.Time{}, nil)

	_, err := service.Apply(context.Background(), id, EventChargeSucceeded)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusCancelled, repo.status(id), "invalid event must not move the status")
}

func TestServiceApplyUnknownGym(t *testing.T) {
	service := NewService(newMemoryBillingRepo(), nil, nil, 7)
	_, err := service.Apply(context.Background(), uuid.New(), EventCancelled)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceApplyStampsPastDue(t *testing.T) {
	repo := newMemoryBillingRepo()
	service := NewService(repo, nil, nil, 7)
	fixed := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	id := repo.add(StatusActive, time.Time{}, nil)
	status, err := service.Apply(context.Background(), id, EventChargeFailed)
	require.NoError(t, err)
	require.Equal(t, StatusPastDue, status)

	sub, err := repo.Subscription(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub.PastDueSince)
	require.True(t, sub.PastDueSince.Equal(fixed))
}

func TestSweepTrials(t *testing.T) {
	repo := newMemoryBillingRepo()
	service := NewService(repo, nil, nil, 7)
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	elapsed := repo.add(StatusTrial, now.Add(-time.Hour), nil)
	running := repo.add(StatusTrial, now.Add(24*time.Hour), nil)
	active := repo.add(StatusActive, time.Time{}, nil)

	moved, err := service.SweepTrials(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, StatusExpired, repo.status(elapsed))
	require.Equal(t, StatusTrial, repo.status(running))
	require.Equal(t, StatusActive, repo.status(active))
}

func TestSweepGrace(t *testing.T) {
	repo := newMemoryBillingRepo()
	service := NewService(repo, nil, nil, 7)
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	beyond := now.Add(-8 * 24 * time.Hour)
	within := now.Add(-3 * 24 * time.Hour)
	expired := repo.add(StatusPastDue, time.Time{}, &beyond)
	graced := repo.add(StatusPastDue, time.Time{}, &within)

	moved, err := service.SweepGrace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, StatusExpired, repo.status(expired))
	require.Equal(t, StatusPastDue, repo.status(graced))
}

// pinnedListRepo reports a fixed elapsed set, mimicking rows that moved
// between the sweep's listing and its apply.
type pinnedListRepo struct {
	*memoryBillingRepo
	elapsed []uuid.UUID
}

func (r *pinnedListRepo) TrialsElapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.elapsed, nil
}

func TestSweepContinuesPastFailures(t *testing.T) {
	inner := newMemoryBillingRepo()
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	// The first gym was paid for after the listing; trial_elapsed is no
	// longer a valid event for it.
	stale := inner.add(StatusActive, now.Add(-time.Hour), nil)
	healthy := inner.add(StatusTrial, now.Add(-time.Hour), nil)

	repo := &pinnedListRepo{memoryBillingRepo: inner, elapsed: []uuid.UUID{stale, healthy}}
	service := NewService(repo, nil, nil, 7)
	service.now = func() time.Time { return now }

	moved, err := service.SweepTrials(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, StatusExpired, inner.status(healthy))
	require.Equal(t, StatusActive, inner.status(stale))
}

func TestInvalidatorFailureDoesNotBlockApply(t *testing.T) {
	repo := newMemoryBillingRepo()
	invalidator := &recordingInvalidator{err: errors.New("redis down")}
	service := NewService(repo, invalidator, nil, 7)

	id := repo.add(StatusActive, time.Time{}, nil)
	status, err := service.Apply(context.Background(), id, EventCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, status)
}

package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Repository loads role assignment rows from the external store.
type Repository interface {
	// ListAssignments returns rows for the user scoped to the gym or
	// platform-scoped (gym id absent).
	ListAssignments(ctx context.Context, userID, gymID uuid.UUID) ([]RoleAssignment, error)
	// PlatformAssignment returns the user's platform-scoped row, if any.
	PlatformAssignment(ctx context.Context, userID uuid.UUID) (RoleAssignment, error)
}

// Resolver fetches role assignments and builds tenant sessions. Concurrent
// resolutions for the same principal/gym pair are deduplicated.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger, now: time.Now}
}

// Resolve fetches the principal's assignment for the gym and returns a fresh
// TenantSession. A gym-scoped row takes precedence over a platform-scoped
// row. Store failures are reported as ErrResolutionFailed so callers fail
// closed.
func (r *Resolver) Resolve(ctx context.Context, principal Principal, gymID uuid.UUID) (*TenantSession, error) {
	key := principal.ID.String() + ":" + gymID.String()
	v, err, _ := r.group.Do(key, func() (any, error) {
		rows, err := r.repo.ListAssignments(ctx, principal.ID, gymID)
		if err != nil {
			if r.logger != nil {
				r.logger.Error("resolve assignment", slog.String("user", principal.ID.String()), slog.String("gym", gymID.String()), slog.Any("error", err))
			}
			return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
		}
		assignment, ok := pickAssignment(rows, gymID)
		if !ok {
			return nil, ErrNotFound
		}
		return assignment, nil
	})
	if err != nil {
		return nil, err
	}
	return &TenantSession{
		Principal:  principal,
		GymID:      gymID,
		Assignment: v.(RoleAssignment),
		FetchedAt:  r.now(),
	}, nil
}

func pickAssignment(rows []RoleAssignment, gymID uuid.UUID) (RoleAssignment, bool) {
	var platform RoleAssignment
	var havePlatform bool
	for _, row := range rows {
		if row.GymID.Valid && row.GymID.UUID == gymID {
			return row, true
		}
		if row.PlatformScoped() && !havePlatform {
			platform = row
			havePlatform = true
		}
	}
	return platform, havePlatform
}

// Selector tracks the gym selection for one UI flow. Each switch invalidates
// the previous session and any in-flight resolution: the last completed
// resolution for the currently selected gym wins.
type Selector struct {
	resolver *Resolver

	mu      sync.Mutex
	gen     uint64
	current *TenantSession
}

// NewSelector constructs a Selector bound to a resolver.
func NewSelector(resolver *Resolver) *Selector {
	return &Selector{resolver: resolver}
}

// Switch selects gymID and resolves the principal's role within it. If
// another switch happens before this resolution completes, the result is
// discarded and ErrSuperseded is returned.
func (s *Selector) Switch(ctx context.Context, principal Principal, gymID uuid.UUID) (*TenantSession, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.current = nil
	s.mu.Unlock()

	sess, err := s.resolver.Resolve(ctx, principal, gymID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	s.current = sess
	return sess, nil
}

// Current returns the session for the selected gym, or nil when none is
// resolved.
func (s *Selector) Current() *TenantSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Invalidate drops the cached session so the next evaluation re-fetches.
// Used when role or tenant data changes are pushed to a live session.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.current = nil
	s.mu.Unlock()
}

// Clear discards the selection entirely, e.g. at logout.
func (s *Selector) Clear() {
	s.Invalidate()
}

// IsNotFound reports whether the error means no assignment row exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

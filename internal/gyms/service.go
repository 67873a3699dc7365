package gyms

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsefit/pulsefit/internal/billing"
)

// Service reads gym records through a Redis snapshot cache and answers the
// tenant-side questions guards ask. Billing events invalidate the cache, so
// the next evaluation reflects the new state; decisions already rendered are
// not retroactively revoked.
type Service struct {
	repo      Repository
	cache     *redis.Client
	logger    *slog.Logger
	ttl       time.Duration
	graceDays int
	now       func() time.Time
}

// NewService constructs a Service. cache may be nil, in which case every read
// hits the repository.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger, ttl time.Duration, graceDays int) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		logger:    logger,
		ttl:       ttl,
		graceDays: graceDays,
		now:       time.Now,
	}
}

func cacheKey(id uuid.UUID) string {
	return "gym:" + id.String()
}

// Get returns the gym snapshot, cached.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Gym, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, cacheKey(id)).Bytes()
		if err == nil {
			var gym Gym
			if err := json.Unmarshal(payload, &gym); err == nil {
				return &gym, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("gym cache read", slog.Any("error", err))
		}
	}

	gym, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if payload, err := json.Marshal(gym); err == nil {
			if err := s.cache.Set(ctx, cacheKey(id), payload, s.ttl).Err(); err != nil && s.logger != nil {
				s.logger.Warn("gym cache write", slog.Any("error", err))
			}
		}
	}
	return gym, nil
}

// Invalidate drops the cached snapshot for a gym. Satisfies
// billing.Invalidator.
func (s *Service) Invalidate(ctx context.Context, id uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, cacheKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// ListForUser returns the gyms the user can select.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Gym, error) {
	return s.repo.ListForUser(ctx, userID)
}

// CountForUser counts the gyms the user can select. Satisfies the guard's
// GymDirectory.
func (s *Service) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountForUser(ctx, userID)
}

// WritesSuspended reports whether the gym's subscription currently blocks
// tenant-scoped writes. past_due suspends only once the grace window has been
// exceeded; the grace sweep normally moves such gyms to expired first, but
// the check holds even between sweep runs.
func (s *Service) WritesSuspended(ctx context.Context, gymID uuid.UUID) (bool, error) {
	gym, err := s.Get(ctx, gymID)
	if err != nil {
		return false, err
	}
	return s.suspended(gym), nil
}

// PlanFor returns the gym's plan id. Satisfies the flag evaluator's plan
// lookup.
func (s *Service) PlanFor(ctx context.Context, gymID uuid.UUID) (string, error) {
	gym, err := s.Get(ctx, gymID)
	if err != nil {
		return "", err
	}
	return gym.PlanID, nil
}

func (s *Service) suspended(gym *Gym) bool {
	if billing.WritesSuspended(gym.SubscriptionStatus) {
		return true
	}
	if gym.SubscriptionStatus == billing.StatusPastDue && gym.PastDueSince != nil {
		return billing.GraceExceeded(*gym.PastDueSince, s.graceDays, s.now())
	}
	return false
}

var _ billing.Invalidator = (*Service)(nil)

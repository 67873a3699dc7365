package flags

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// notFoundMarker is cached for missing flags so evaluation does not hammer
// the store for names that were never configured.
const notFoundMarker = "__missing__"

// Service layers a Redis snapshot cache and validation over the repository.
// It implements Store for the evaluator.
type Service struct {
	repo     Repository
	cache    *redis.Client
	logger   *slog.Logger
	ttl      time.Duration
	validate *validator.Validate
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		logger:   logger,
		ttl:      ttl,
		validate: validator.New(),
	}
}

func cacheKey(name string) string {
	return "flag:" + name
}

// FlagByName returns the flag record, cached.
func (s *Service) FlagByName(ctx context.Context, name string) (Flag, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, cacheKey(name)).Bytes()
		if err == nil {
			if string(payload) == notFoundMarker {
				return Flag{}, ErrNotFound
			}
			var flag Flag
			if err := json.Unmarshal(payload, &flag); err == nil {
				return flag, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("flag cache read", slog.Any("error", err))
		}
	}

	flag, err := s.repo.FlagByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cacheSet(ctx, name, []byte(notFoundMarker))
		}
		return Flag{}, err
	}
	if payload, err := json.Marshal(flag); err == nil {
		s.cacheSet(ctx, name, payload)
	}
	return flag, nil
}

// List returns all flags straight from the store.
func (s *Service) List(ctx context.Context) ([]Flag, error) {
	return s.repo.List(ctx)
}

// Upsert validates and stores a flag, then drops its cached snapshot so the
// next evaluation sees the change.
func (s *Service) Upsert(ctx context.Context, flag Flag) (Flag, error) {
	if err := s.validate.Struct(flag); err != nil {
		return Flag{}, err
	}
	stored, err := s.repo.Upsert(ctx, flag)
	if err != nil {
		return Flag{}, err
	}
	if err := s.Invalidate(ctx, flag.Name); err != nil && s.logger != nil {
		s.logger.Warn("flag cache invalidate", slog.String("flag", flag.Name), slog.Any("error", err))
	}
	return stored, nil
}

// Invalidate drops the cached snapshot for a flag.
func (s *Service) Invalidate(ctx context.Context, name string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, cacheKey(name)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *Service) cacheSet(ctx context.Context, name string, payload []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(name), payload, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("flag cache write", slog.Any("error", err))
	}
}

var _ Store = (*Service)(nil)

package flags

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists flag records.
type Repository interface {
	FlagByName(ctx context.Context, name string) (Flag, error)
	List(ctx context.Context) ([]Flag, error)
	Upsert(ctx context.Context, flag Flag) (Flag, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FlagByName fetches a flag record.
func (r *PGRepository) FlagByName(ctx context.Context, name string) (Flag, error) {
	var flag Flag
	var updatedAt pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `SELECT name, is_enabled, rollout_percentage, target_plans, updated_at
FROM feature_flags WHERE name = $1`, name).Scan(&flag.Name, &flag.Enabled, &flag.RolloutPercentage, &flag.TargetPlans, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Flag{}, ErrNotFound
		}
		return Flag{}, err
	}
	flag.UpdatedAt = updatedAt.Time
	return flag, nil
}

// List returns all flags ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, is_enabled, rollout_percentage, target_plans, updated_at
FROM feature_flags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Flag
	for rows.Next() {
		var flag Flag
		var updatedAt pgtype.Timestamptz
		if err := rows.Scan(&flag.Name, &flag.Enabled, &flag.RolloutPercentage, &flag.TargetPlans, &updatedAt); err != nil {
			return nil, err
		}
		flag.UpdatedAt = updatedAt.Time
		out = append(out, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert creates or replaces a flag record.
func (r *PGRepository) Upsert(ctx context.Context, flag Flag) (Flag, error) {
	now := time.Now().UTC()
	var updatedAt pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `INSERT INTO feature_flags (name, is_enabled, rollout_percentage, target_plans, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET is_enabled = EXCLUDED.is_enabled,
    rollout_percentage = EXCLUDED.rollout_percentage,
    target_plans = EXCLUDED.target_plans,
    updated_at = EXCLUDED.updated_at
RETURNING updated_at`, flag.Name, flag.Enabled, flag.RolloutPercentage, flag.TargetPlans, now).Scan(&updatedAt)
	if err != nil {
		return Flag{}, err
	}
	flag.UpdatedAt = updatedAt.Time
	return flag, nil
}

var _ Repository = (*PGRepository)(nil)

package gyms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsefit/pulsefit/internal/billing"
)

// Repository defines read access to gym records. Gym rows are mutated by
// billing events and the admin console, never by guards.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Gym, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Gym, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const gymColumns = `g.id, g.name, g.plan_id, g.subscription_status, g.current_period_end, g.trial_ends_at, g.past_due_since, g.created_at, g.updated_at`

// Get fetches a gym by id.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Gym, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+gymColumns+` FROM gyms g WHERE g.id = $1`, id)
	gym, err := scanGym(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return gym, nil
}

// ListForUser returns the gyms the user holds a gym-scoped assignment in.
func (r *PGRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Gym, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+gymColumns+` FROM gyms g
JOIN role_assignments ra ON ra.gym_id = g.id
WHERE ra.user_id = $1
ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Gym
	for rows.Next() {
		gym, err := scanGym(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *gym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountForUser counts the gyms available to the user.
func (r *PGRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_assignments
WHERE user_id = $1 AND gym_id IS NOT NULL`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGym(row scanner) (*Gym, error) {
	var gym Gym
	var status string
	var periodEnd, trialEnds, pastDue, createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&gym.ID, &gym.Name, &gym.PlanID, &status, &periodEnd, &trialEnds, &pastDue, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	gym.SubscriptionStatus = billing.Status(status)
	gym.CurrentPeriodEnd = periodEnd.Time
	gym.TrialEndsAt = trialEnds.Time
	if pastDue.Valid {
		t := pastDue.Time
		gym.PastDueSince = &t
	}
	gym.CreatedAt = createdAt.Time
	gym.UpdatedAt = updatedAt.Time
	return &gym, nil
}

var _ Repository = (*PGRepository)(nil)

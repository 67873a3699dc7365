package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository against PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Subscription fetches the billing fields of a gym.
func (r *PGRepository) Subscription(ctx context.Context, gymID uuid.UUID) (Subscription, error) {
	var sub Subscription
	var status string
	var periodEnd, trialEnds, pastDue pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `SELECT id, subscription_status, plan_id, current_period_end, trial_ends_at, past_due_since
FROM gyms WHERE id = $1`, gymID).Scan(&sub.GymID, &status, &sub.PlanID, &periodEnd, &trialEnds, &pastDue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	sub.Status = Status(status)
	sub.PeriodEnd = periodEnd.Time
	sub.TrialEndsAt = trialEnds.Time
	if pastDue.Valid {
		t := pastDue.Time
		sub.PastDueSince = &t
	}
	return sub, nil
}

// UpdateStatus moves the gym between statuses, guarding on the previous
// value. past_due_since is stamped when entering past_due and cleared when
// leaving it.
func (r *PGRepository) UpdateStatus(ctx context.Context, gymID uuid.UUID, from, to Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE gyms
SET subscription_status = $1,
    past_due_since = CASE WHEN $1 = 'past_due' THEN $4 ELSE NULL END,
    updated_at = $4
WHERE id = $2 AND subscription_status = $3`, string(to), gymID, string(from), at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

// TrialsElapsed lists trial gyms whose trial period ended before now.
func (r *PGRepository) TrialsElapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM gyms
WHERE subscription_status = 'trial' AND trial_ends_at < $1`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// GraceElapsed lists past_due gyms that went past due before cutoff.
func (r *PGRepository) GraceElapsed(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM gyms
WHERE subscription_status = 'past_due' AND past_due_since < $1`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

var _ Repository = (*PGRepository)(nil)

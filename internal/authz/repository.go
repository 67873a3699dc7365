package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

// ListAssignments returns the user's rows scoped to the gym plus any
// platform-scoped row.
func (r *PGRepository) ListAssignments(ctx context.Context, userID, gymID uuid.UUID) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, gym_id, role, is_trainer
FROM role_assignments
WHERE user_id = $1 AND (gym_id = $2 OR gym_id IS NULL)`, userID, gymID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var role string
		if err := rows.Scan(&a.UserID, &a.GymID, &role, &a.IsTrainer); err != nil {
			return nil, err
		}
		a.Role = Role(role)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// PlatformAssignment returns the user's platform-scoped row.
func (r *PGRepository) PlatformAssignment(ctx context.Context, userID uuid.UUID) (RoleAssignment, error) {
	var a RoleAssignment
	var role string
	err := r.pool.QueryRow(ctx, `SELECT user_id, gym_id, role, is_trainer
FROM role_assignments
WHERE user_id = $1 AND gym_id IS NULL
LIMIT 1`, userID).Scan(&a.UserID, &a.GymID, &role, &a.IsTrainer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleAssignment{}, ErrNotFound
		}
		return RoleAssignment{}, err
	}
	a.Role = Role(role)
	return a, nil
}

var _ Repository = (*PGRepository)(nil)

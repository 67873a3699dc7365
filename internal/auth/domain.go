package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated user account. Role data lives on separate
// role_assignments rows, not here.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

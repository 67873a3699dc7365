package authz

import (
	"context"
	"errors"
	"log/slog"
)

// PlatformGate admits only principals holding a platform-scoped super_admin
// assignment. A super_admin row bound to a gym does not pass: platform
// authority must be tenant-independent by construction.
type PlatformGate struct {
	repo   Repository
	logger *slog.Logger
}

// NewPlatformGate constructs a PlatformGate.
func NewPlatformGate(repo Repository, logger *slog.Logger) *PlatformGate {
	return &PlatformGate{repo: repo, logger: logger}
}

// Check evaluates platform access for the principal. Store failures fail
// closed with DenyPlatformAccess.
func (g *PlatformGate) Check(ctx context.Context, principal Principal) Decision {
	assignment, err := g.repo.PlatformAssignment(ctx, principal.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && g.logger != nil {
			g.logger.Error("platform gate lookup", slog.String("user", principal.ID.String()), slog.Any("error", err))
		}
		return denied(DenyPlatformAccess)
	}
	if !assignment.PlatformScoped() || assignment.Role != RoleSuperAdmin {
		return denied(DenyPlatformAccess)
	}
	return granted()
}

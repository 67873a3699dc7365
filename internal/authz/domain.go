package authz

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates that no role assignment exists for the principal.
	ErrNotFound = errors.New("authz: assignment not found")
	// ErrResolutionFailed indicates the backing store could not be read.
	// Callers must fail closed when they see it.
	ErrResolutionFailed = errors.New("authz: resolution failed")
	// ErrSuperseded indicates a resolution completed after the gym selection
	// changed; its result must be discarded.
	ErrSuperseded = errors.New("authz: resolution superseded by gym switch")
)

// Principal is the authenticated identity attempting an action.
type Principal struct {
	ID uuid.UUID
}

// RoleAssignment mirrors a role_assignments row. Rows are created by
// administrative actions outside this core and are read-only here.
// A row without a gym id is platform-scoped.
type RoleAssignment struct {
	UserID    uuid.UUID
	GymID     uuid.NullUUID
	Role      Role
	IsTrainer bool
}

// PlatformScoped reports whether the assignment applies across all gyms.
func (a RoleAssignment) PlatformScoped() bool {
	return !a.GymID.Valid
}

// TenantSession binds a principal to their resolved role within one selected
// gym. It is owned by the requesting flow, passed explicitly, and replaced
// wholesale on gym switch.
type TenantSession struct {
	Principal  Principal
	GymID      uuid.UUID
	Assignment RoleAssignment
	FetchedAt  time.Time
}

// Role returns the resolved role for the selected gym.
func (s *TenantSession) Role() Role {
	if s == nil {
		return ""
	}
	return s.Assignment.Role
}

// GuardState is the outcome dimension of a guard evaluation, separate from
// whether the underlying data is still loading.
type GuardState string

const (
	// StateLoading means the auth check has not resolved yet.
	StateLoading GuardState = "loading"
	// StateUnauthenticated routes to the login surface.
	StateUnauthenticated GuardState = "unauthenticated"
	// StateNoTenant means the principal belongs to no gym; routes to onboarding.
	StateNoTenant GuardState = "no_tenant"
	// StateSelectGym means gyms exist but none is selected; routes to selection.
	StateSelectGym GuardState = "select_gym"
	// StateGranted admits the action.
	StateGranted GuardState = "granted"
	// StateDenied rejects the action with a DenyReason.
	StateDenied GuardState = "denied"
)

// DenyReason explains a StateDenied decision.
type DenyReason string

const (
	DenyPermission      DenyReason = "permission_denied"
	DenyTenantSuspended DenyReason = "tenant_suspended"
	DenyPlatformAccess  DenyReason = "platform_access_denied"
)

// Decision is the value every guard evaluation returns. It is consumed by the
// caller to pick a redirect or UI state; it is never an error.
type Decision struct {
	State  GuardState
	Reason DenyReason
}

// Granted reports whether the decision admits the action.
func (d Decision) Granted() bool {
	return d.State == StateGranted
}

func granted() Decision {
	return Decision{State: StateGranted}
}

func denied(reason DenyReason) Decision {
	return Decision{State: StateDenied, Reason: reason}
}

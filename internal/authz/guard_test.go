package authz

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSession(role Role) *TenantSession {
	userID := uuid.New()
	gymID := uuid.New()
	return &TenantSession{
		Principal: Principal{ID: userID},
		GymID:     gymID,
		Assignment: RoleAssignment{
			UserID: userID,
			GymID:  uuid.NullUUID{UUID: gymID, Valid: true},
			Role:   role,
		},
		FetchedAt: time.Now(),
	}
}

func TestEvaluateDecisionTable(t *testing.T) {
	principal := &Principal{ID: uuid.New()}

	cases := []struct {
		name       string
		snap       Snapshot
		req        Requirement
		wantState  GuardState
		wantReason DenyReason
	}{
		{
			name:      "auth pending",
			snap:      Snapshot{AuthPending: true},
			req:       Requirement{Permission: PermTrainingRead},
			wantState: StateLoading,
		},
		{
			name:      "unauthenticated",
			snap:      Snapshot{},
			req:       Requirement{Permission: PermTrainingRead},
			wantState: StateUnauthenticated,
		},
		{
			name:      "no gym memberships",
			snap:      Snapshot{Principal: principal, GymsAvailable: 0},
			req:       Requirement{Permission: PermTrainingRead},
			wantState: StateNoTenant,
		},
		{
			name:      "memberships but nothing selected",
			snap:      Snapshot{Principal: principal, GymsAvailable: 2},
			req:       Requirement{Permission: PermTrainingRead},
			wantState: StateSelectGym,
		},
		{
			name:      "manager reads training plans",
			snap:      Snapshot{Principal: principal, Session: testSession(RoleManager)},
			req:       Requirement{Permission: PermTrainingRead},
			wantState: StateGranted,
		},
		{
			name:       "member cannot delete members",
			snap:       Snapshot{Principal: principal, Session: testSession(RoleMember)},
			req:        Requirement{Permission: PermMembersDelete},
			wantState:  StateDenied,
			wantReason: DenyPermission,
		},
		{
			name:       "staff below minimum role",
			snap:       Snapshot{Principal: principal, Session: testSession(RoleStaff)},
			req:        Requirement{MinimumRole: RoleManager},
			wantState:  StateDenied,
			wantReason: DenyPermission,
		},
		{
			name:      "admin meets minimum role",
			snap:      Snapshot{Principal: principal, Session: testSession(RoleAdmin)},
			req:       Requirement{MinimumRole: RoleManager},
			wantState: StateGranted,
		},
		{
			name:       "unknown role fails closed",
			snap:       Snapshot{Principal: principal, Session: testSession(Role("owner"))},
			req:        Requirement{Permission: PermTrainingRead},
			wantState:  StateDenied,
			wantReason: DenyPermission,
		},
		{
			name:      "empty requirement only needs a session",
			snap:      Snapshot{Principal: principal, Session: testSession(RoleMember)},
			req:       Requirement{},
			wantState: StateGranted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.snap, tc.req)
			if got.State != tc.wantState {
				t.Fatalf("state = %s, want %s", got.State, tc.wantState)
			}
			if got.Reason != tc.wantReason {
				t.Fatalf("reason = %s, want %s", got.Reason, tc.wantReason)
			}
		})
	}
}

// A suspended subscription blocks writes for every role, including admin, and
// reports the suspension rather than a generic permission denial. Reads stay
// unaffected.
func TestEvaluateSuspendedGym(t *testing.T) {
	principal := &Principal{ID: uuid.New()}

	for _, role := range Roles() {
		snap := Snapshot{Principal: principal, Session: testSession(role), WritesSuspended: true}

		got := Evaluate(snap, Requirement{Permission: PermTrainingCreate})
		if got.State != StateDenied || got.Reason != DenyTenantSuspended {
			t.Fatalf("role %s write on suspended gym: got %s/%s, want denied/tenant_suspended", role, got.State, got.Reason)
		}

		read := Evaluate(snap, Requirement{Permission: PermTrainingRead})
		if !read.Granted() {
			t.Fatalf("role %s read on suspended gym: got %s, want granted", role, read.State)
		}
	}
}

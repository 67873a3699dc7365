package authz

// Requirement describes what a route or action demands. Zero fields are
// skipped, so an empty Requirement only enforces authentication and gym
// selection.
type Requirement struct {
	Permission  Permission
	MinimumRole Role
}

// Snapshot is the already-resolved state a guard evaluates against. Building
// it may involve I/O; evaluating it never does.
type Snapshot struct {
	// AuthPending is true while the authentication check is still in flight.
	AuthPending bool
	// Principal is nil when nobody is authenticated.
	Principal *Principal
	// Session is nil when no gym is selected.
	Session *TenantSession
	// GymsAvailable counts the gyms the principal could select.
	GymsAvailable int
	// WritesSuspended is true while the selected gym's subscription blocks
	// tenant-scoped writes.
	WritesSuspended bool
}

// Evaluate runs the access decision table against a resolved snapshot. It is
// pure and synchronous; every outcome is a value.
func Evaluate(snap Snapshot, req Requirement) Decision {
	if snap.AuthPending {
		return Decision{State: StateLoading}
	}
	if snap.Principal == nil {
		return Decision{State: StateUnauthenticated}
	}
	if snap.Session == nil {
		if snap.GymsAvailable == 0 {
			return Decision{State: StateNoTenant}
		}
		return Decision{State: StateSelectGym}
	}

	role := snap.Session.Role()
	if req.Permission != "" {
		// Suspension outranks role: a suspended gym denies writes for every
		// role, while reads stay unaffected.
		if req.Permission.Write() && snap.WritesSuspended {
			return denied(DenyTenantSuspended)
		}
		if !HasPermission(role, req.Permission) {
			return denied(DenyPermission)
		}
	}
	if req.MinimumRole != "" && !HasMinimumRole(role, req.MinimumRole) {
		return denied(DenyPermission)
	}
	return granted()
}

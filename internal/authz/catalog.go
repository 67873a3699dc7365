package authz

import (
	"fmt"
	"strings"
)

// Role is a named authority level assigned to a principal within a gym,
// or platform-wide when the assignment carries no gym id.
type Role string

const (
	RoleMember     Role = "member"
	RoleStaff      Role = "staff"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleOrder defines the total ordering used by HasMinimumRole. Unknown roles
// have no position and fail every check.
var roleOrder = map[Role]int{
	RoleMember:     0,
	RoleStaff:      1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Roles returns all known roles in ascending strength order.
func Roles() []Role {
	return []Role{RoleMember, RoleStaff, RoleManager, RoleAdmin, RoleSuperAdmin}
}

// Known reports whether the role is part of the catalog.
func (r Role) Known() bool {
	_, ok := roleOrder[r]
	return ok
}

// Permission is a "resource:action" token checked against a role's granted set.
type Permission string

// Resource and action vocabularies are closed; ValidateCatalog rejects
// permissions outside them.
const (
	PermMembersRead   Permission = "members:read"
	PermMembersCreate Permission = "members:create"
	PermMembersUpdate Permission = "members:update"
	PermMembersDelete Permission = "members:delete"

	PermTrainingRead   Permission = "training:read"
	PermTrainingCreate Permission = "training:create"
	PermTrainingUpdate Permission = "training:update"
	PermTrainingDelete Permission = "training:delete"

	PermAnnouncementsRead   Permission = "announcements:read"
	PermAnnouncementsCreate Permission = "announcements:create"
	PermAnnouncementsUpdate Permission = "announcements:update"
	PermAnnouncementsDelete Permission = "announcements:delete"

	PermReportsRead Permission = "reports:read"

	PermBillingRead   Permission = "billing:read"
	PermBillingUpdate Permission = "billing:update"

	PermSettingsRead   Permission = "settings:read"
	PermSettingsUpdate Permission = "settings:update"
	PermSettingsDelete Permission = "settings:delete"
)

var knownResources = map[string]struct{}{
	"members":       {},
	"training":      {},
	"announcements": {},
	"reports":       {},
	"billing":       {},
	"settings":      {},
}

var knownActions = map[string]struct{}{
	"read":   {},
	"create": {},
	"update": {},
	"delete": {},
}

// Resource returns the resource segment of the permission.
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the action segment of the permission.
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}

// Write reports whether the permission mutates tenant data. Anything that is
// not a read is a write for subscription gating purposes.
func (p Permission) Write() bool {
	return p.Action() != "read"
}

// grants lists the permissions each role adds on top of the next weaker role.
// The effective catalog is the cumulative union, which keeps the superset
// invariant true by construction.
var grants = map[Role][]Permission{
	RoleMember: {
		PermTrainingRead,
		PermAnnouncementsRead,
	},
	RoleStaff: {
		PermMembersRead,
		PermMembersCreate,
		PermMembersUpdate,
		PermTrainingCreate,
		PermTrainingUpdate,
	},
	RoleManager: {
		PermMembersDelete,
		PermTrainingDelete,
		PermAnnouncementsCreate,
		PermAnnouncementsUpdate,
		PermReportsRead,
	},
	RoleAdmin: {
		PermAnnouncementsDelete,
		PermBillingRead,
		PermBillingUpdate,
		PermSettingsRead,
		PermSettingsUpdate,
	},
	RoleSuperAdmin: {
		PermSettingsDelete,
	},
}

var catalog = buildCatalog()

func buildCatalog() map[Role]map[Permission]struct{} {
	built := make(map[Role]map[Permission]struct{}, len(grants))
	cumulative := make(map[Permission]struct{})
	for _, role := range Roles() {
		for _, perm := range grants[role] {
			cumulative[perm] = struct{}{}
		}
		set := make(map[Permission]struct{}, len(cumulative))
		for perm := range cumulative {
			set[perm] = struct{}{}
		}
		built[role] = set
	}
	return built
}

// HasPermission reports whether the role's granted set contains the
// permission. Unknown roles fail closed.
func HasPermission(role Role, perm Permission) bool {
	set, ok := catalog[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// HasMinimumRole compares positions in the role ordering. Unknown roles on
// either side fail closed.
func HasMinimumRole(role, minimum Role) bool {
	pos, ok := roleOrder[role]
	if !ok {
		return false
	}
	min, ok := roleOrder[minimum]
	if !ok {
		return false
	}
	return pos >= min
}

// PermissionsFor returns a copy of the role's granted set.
func PermissionsFor(role Role) []Permission {
	set, ok := catalog[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for perm := range set {
		perms = append(perms, perm)
	}
	return perms
}

// ValidateCatalog checks permission grammar and the monotonic superset
// property across the role ordering. Call it once at startup; a failure is a
// configuration error.
func ValidateCatalog() error {
	for role, set := range catalog {
		for perm := range set {
			if err := validateGrammar(perm); err != nil {
				return fmt.Errorf("authz: role %s: %w", role, err)
			}
		}
	}
	ordered := Roles()
	for i := 1; i < len(ordered); i++ {
		lower, higher := ordered[i-1], ordered[i]
		for perm := range catalog[lower] {
			if _, ok := catalog[higher][perm]; !ok {
				return fmt.Errorf("authz: role %s is missing %s granted to weaker role %s", higher, perm, lower)
			}
		}
	}
	return nil
}

func validateGrammar(perm Permission) error {
	resource, action, found := strings.Cut(string(perm), ":")
	if !found || resource == "" || action == "" {
		return fmt.Errorf("malformed permission %q", perm)
	}
	if resource != strings.ToLower(resource) || action != strings.ToLower(action) {
		return fmt.Errorf("permission %q must be lowercase", perm)
	}
	if _, ok := knownResources[resource]; !ok {
		return fmt.Errorf("permission %q uses unknown resource %q", perm, resource)
	}
	if _, ok := knownActions[action]; !ok {
		return fmt.Errorf("permission %q uses unknown action %q", perm, action)
	}
	return nil
}

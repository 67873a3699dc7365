package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateCatalog(t *testing.T) {
	require.NoError(t, ValidateCatalog())
}

func TestCatalogSupersets(t *testing.T) {
	ordered := Roles()
	for i := 1; i < len(ordered); i++ {
		weaker, stronger := ordered[i-1], ordered[i]
		for _, perm := range PermissionsFor(weaker) {
			if !HasPermission(stronger, perm) {
				t.Fatalf("%s lacks %s granted to %s", stronger, perm, weaker)
			}
		}
	}
}

func TestHasPermission(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleMember, PermTrainingRead, true},
		{RoleMember, PermAnnouncementsRead, true},
		{RoleMember, PermMembersRead, false},
		{RoleMember, PermTrainingCreate, false},
		{RoleStaff, PermMembersCreate, true},
		{RoleStaff, PermMembersDelete, false},
		{RoleStaff, PermReportsRead, false},
		{RoleManager, PermTrainingRead, true},
		{RoleManager, PermTrainingDelete, true},
		{RoleManager, PermReportsRead, true},
		{RoleManager, PermBillingUpdate, false},
		{RoleAdmin, PermBillingUpdate, true},
		{RoleAdmin, PermSettingsUpdate, true},
		{RoleAdmin, PermSettingsDelete, false},
		{RoleSuperAdmin, PermSettingsDelete, true},
		{RoleSuperAdmin, PermTrainingRead, true},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestHasPermissionUnknownRole(t *testing.T) {
	if HasPermission(Role("owner"), PermTrainingRead) {
		t.Fatal("unknown role must fail closed")
	}
	if HasPermission(Role(""), PermTrainingRead) {
		t.Fatal("empty role must fail closed")
	}
}

func TestHasMinimumRole(t *testing.T) {
	cases := []struct {
		role, minimum Role
		want          bool
	}{
		{RoleManager, RoleManager, true},
		{RoleAdmin, RoleManager, true},
		{RoleSuperAdmin, RoleMember, true},
		{RoleStaff, RoleManager, false},
		{RoleMember, RoleStaff, false},
		{Role("owner"), RoleMember, false},
		{RoleAdmin, Role("owner"), false},
		{Role(""), Role(""), false},
	}
	for _, tc := range cases {
		if got := HasMinimumRole(tc.role, tc.minimum); got != tc.want {
			t.Fatalf("HasMinimumRole(%s, %s) = %v, want %v", tc.role, tc.minimum, got, tc.want)
		}
	}
}

func TestPermissionSegments(t *testing.T) {
	require.Equal(t, "members", PermMembersUpdate.Resource())
	require.Equal(t, "update", PermMembersUpdate.Action())
	require.True(t, PermMembersUpdate.Write())
	require.True(t, PermMembersDelete.Write())
	require.False(t, PermReportsRead.Write())
}

func TestPermissionsForUnknownRole(t *testing.T) {
	require.Nil(t, PermissionsFor(Role("owner")))
}

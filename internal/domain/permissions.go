package domain

import "sort"

// PermissionTable is the static role-permission mapping and the total order
// over roles. It is built once at startup and never mutated; methods are
// pure reads and safe for concurrent use.
type PermissionTable struct {
	rank  map[Role]int
	perms map[Role]map[string]struct{}
}

// NewPermissionTable builds the fixed table. Permission strings are
// namespaced resource:action.
func NewPermissionTable() *PermissionTable {
	grants := map[Role][]string{
		RoleSuperAdmin: {
			"users:read", "users:write", "users:delete", "users:invite",
			"orgs:read", "orgs:write", "orgs:delete",
			"assessments:read", "assessments:write", "assessments:delete",
			"reports:read", "reports:write", "reports:export",
			"audit:read", "audit:export",
			"settings:read", "settings:write",
			"sso:configure",
		},
		RoleAnalyst: {
			"users:read",
			"orgs:read",
			"assessments:read", "assessments:write",
			"reports:read", "reports:write", "reports:export",
		},
		RoleClientAdmin: {
			"users:read", "users:write", "users:invite",
			"assessments:read", "assessments:write",
			"reports:read",
		},
		RoleAssessor: {
			"assessments:read",
		},
	}

	t := &PermissionTable{
		rank: map[Role]int{
			RoleSuperAdmin:  4,
			RoleAnalyst:     3,
			RoleClientAdmin: 2,
			RoleAssessor:    1,
		},
		perms: make(map[Role]map[string]struct{}, len(grants)),
	}
	for role, list := range grants {
		set := make(map[string]struct{}, len(list))
		for _, p := range list {
			set[p] = struct{}{}
		}
		t.perms[role] = set
	}
	return t
}

func (t *PermissionTable) HasPermission(role Role, permission string) bool {
	_, ok := t.perms[role][permission]
	return ok
}

// Permissions returns the role's permission set, sorted, for token snapshots.
func (t *PermissionTable) Permissions(role Role) []string {
	set := t.perms[role]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsSenior reports whether a is strictly above b in the role order.
func (t *PermissionTable) IsSenior(a, b Role) bool {
	return t.rank[a] > t.rank[b]
}

// CanManage reports whether manager may administer identities of target's
// role. Managers only manage strictly junior roles.
func (t *PermissionTable) CanManage(manager, target Role) bool {
	return t.IsSenior(manager, target)
}

// CheckTenantAccess is the default tenant isolation rule: tenant-agnostic
// roles see every tenant, tenant-scoped roles only their own. Delegation
// overrides are evaluated separately per resource.
func (t *PermissionTable) CheckTenantAccess(role Role, identityTenant *string, targetTenant string) bool {
	if !role.TenantScoped() {
		return true
	}
	return identityTenant != nil && *identityTenant == targetTenant
}

// AllowedInviteRoles lists roles the inviter may assign to an invitee.
func (t *PermissionTable) AllowedInviteRoles(inviter Role) []Role {
	switch inviter {
	case RoleSuperAdmin:
		return []Role{RoleSuperAdmin, RoleAnalyst, RoleClientAdmin, RoleAssessor}
	case RoleClientAdmin:
		return []Role{RoleClientAdmin, RoleAssessor}
	default:
		return nil
	}
}

// CanInvite reports whether inviter may create an invitation for target.
func (t *PermissionTable) CanInvite(inviter, target Role) bool {
	for _, r := range t.AllowedInviteRoles(inviter) {
		if r == target {
			return true
		}
	}
	return false
}

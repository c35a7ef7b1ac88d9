package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
)

func TestCreateRoleRequiresWriteRoles(t *testing.T) {
	env := newTestEnv(t)

	account := env.newAccount(t, "ada@example.com")
	env.grantGlobal(t, account.ID, "reader", privileges.PrivilegeReadRoles)

	ctx := env.session(t, account.ID)

	_, err := env.roles.CreateRole(ctx, CreateRoleInput{Code: "new-role"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestCreateRoleRejectsUnknownPrivilege(t *testing.T) {
	env := newTestEnv(t)

	account := env.newAccount(t, "ada@example.com")
	env.grantGlobal(t, account.ID, "admin", privileges.PrivilegeWriteRoles)

	ctx := env.session(t, account.ID)

	_, err := env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "broken",
		Privileges: []string{"launch_missiles"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "launch_missiles")
}

func TestCannotGrantPrivilegesYouDontHold(t *testing.T) {
	env := newTestEnv(t)

	account := env.newAccount(t, "ada@example.com")
	env.grantGlobal(t, account.ID, "role-admin",
		privileges.PrivilegeWriteRoles, privileges.PrivilegeReadReports)

	ctx := env.session(t, account.ID)

	_, err := env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "escalated",
		Privileges: []string{string(privileges.PrivilegeWriteSettings)},
	})
	require.ErrorIs(t, err, ErrAccessDenied)

	// Granting what you hold is fine.
	role, err := env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "report-reader",
		Privileges: []string{string(privileges.PrivilegeReadReports)},
	})
	require.NoError(t, err)
	require.NotZero(t, role.ID)
}

func TestOrgScopedGrant(t *testing.T) {
	env := newTestEnv(t)

	orgID := 1
	account := env.newAccount(t, "ada@example.com")
	env.grantOrg(t, account.ID, orgID, "org-admin",
		privileges.PrivilegeWriteRoles, privileges.PrivilegeReadReports)

	ctx := env.session(t, account.ID)

	// Org-held privileges can populate an org role of the same org.
	_, err := env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "org-reader",
		OrgID:      &orgID,
		Privileges: []string{string(privileges.PrivilegeReadReports)},
	})
	require.NoError(t, err)

	// But not a global role.
	_, err = env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "global-reader",
		Privileges: []string{string(privileges.PrivilegeReadReports)},
	})
	require.ErrorIs(t, err, ErrAccessDenied)

	// And not a role of another org.
	otherOrg := 2

	_, err = env.roles.CreateRole(ctx, CreateRoleInput{
		Code:       "other-org-reader",
		OrgID:      &otherOrg,
		Privileges: []string{string(privileges.PrivilegeReadReports)},
	})
	require.ErrorIs(t, err, ErrAccessDenied)
}

// A role edit must reach active sessions of accounts holding the role on
// their next request, without re-authentication.
func TestRoleEditReachesActiveSessions(t *testing.T) {
	env := newTestEnv(t)

	admin := env.newAccount(t, "admin@example.com")
	env.grantGlobal(t, admin.ID, "super",
		privileges.PrivilegeWriteRoles,
		privileges.PrivilegeReadReports,
		privileges.PrivilegeWriteReports,
	)

	member := env.newAccount(t, "member@example.com")
	role := env.grantGlobal(t, member.ID, "reporting", privileges.PrivilegeReadReports)

	memberCtx := env.session(t, member.ID)

	p := env.principals.Current(memberCtx)
	require.True(t, p.HasGlobalPrivilege(privileges.PrivilegeReadReports))
	require.False(t, p.HasGlobalPrivilege(privileges.PrivilegeWriteReports))

	adminCtx := env.session(t, admin.ID)
	require.NoError(t, env.roles.UpdateRolePrivileges(adminCtx, role.ID, []string{
		string(privileges.PrivilegeReadReports),
		string(privileges.PrivilegeWriteReports),
	}))

	// The old unit of work already memoized its staleness check. A new
	// request carrying the stale snapshot triggers detection and reload.
	nextCtx := authz.NewAccountContext(context.Background(), p.Clone())
	p = env.principals.Current(nextCtx)
	require.True(t, p.HasGlobalPrivilege(privileges.PrivilegeWriteReports))
}

func TestAssignAndRevokeRole(t *testing.T) {
	env := newTestEnv(t)

	admin := env.newAccount(t, "admin@example.com")
	env.grantGlobal(t, admin.ID, "super",
		privileges.PrivilegeWriteRoles, privileges.PrivilegeReadReports)

	member := env.newAccount(t, "member@example.com")
	role := env.grantGlobal(t, admin.ID, "extra", privileges.PrivilegeReadReports)

	adminCtx := env.session(t, admin.ID)

	require.NoError(t, env.roles.AssignRole(adminCtx, member.ID, role.ID))

	p, err := env.store.LoadPrincipal(context.Background(), member.ID)
	require.NoError(t, err)
	require.True(t, p.HasGlobalPrivilege(privileges.PrivilegeReadReports))

	require.NoError(t, env.roles.RevokeRole(adminCtx, member.ID, role.ID))

	p, err = env.store.LoadPrincipal(context.Background(), member.ID)
	require.NoError(t, err)
	require.False(t, p.HasGlobalPrivilege(privileges.PrivilegeReadReports))

	require.ErrorIs(t, env.roles.AssignRole(adminCtx, member.ID, 9999), ErrNotFound)
}

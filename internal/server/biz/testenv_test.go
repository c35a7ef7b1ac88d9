package biz

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/stretchr/testify/require"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

type testEnv struct {
	store      *store.Store
	principals *authz.Store

	auth          *AuthService
	accounts      *AccountService
	roles         *RoleService
	orgs          *OrganizationService
	impersonation *ImpersonationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	s := store.New(db, dialect.SQLite)
	require.NoError(t, store.Migrate(context.Background(), s))
	t.Cleanup(func() { _ = s.Close() })

	principals := authz.NewStore(s)

	env := &testEnv{store: s, principals: principals}
	env.auth = NewAuthService(AuthServiceParams{
		Store:      s,
		Principals: principals,
		Config:     AuthConfig{SecretKey: "test-secret"},
	})
	env.accounts = NewAccountService(AccountServiceParams{Store: s, Principals: principals})
	env.roles = NewRoleService(RoleServiceParams{Store: s, Principals: principals})
	env.orgs = NewOrganizationService(OrganizationServiceParams{Store: s, Principals: principals})
	env.impersonation = NewImpersonationService(ImpersonationServiceParams{Store: s, Principals: principals})

	return env
}

// newAccount creates an account directly in the store.
func (e *testEnv) newAccount(t *testing.T, email string) *store.Account {
	t.Helper()

	account := &store.Account{Email: email}
	require.NoError(t, e.store.CreateAccount(context.Background(), account))

	return account
}

// grantGlobal creates a global role with the given privileges and assigns it.
func (e *testEnv) grantGlobal(t *testing.T, accountID int, code string, privs ...privileges.Privilege) *store.Role {
	t.Helper()

	return e.grant(t, accountID, code, nil, privs...)
}

// grantOrg creates an organization role with the given privileges and assigns it.
func (e *testEnv) grantOrg(t *testing.T, accountID, orgID int, code string, privs ...privileges.Privilege) *store.Role {
	t.Helper()

	return e.grant(t, accountID, code, &orgID, privs...)
}

func (e *testEnv) grant(t *testing.T, accountID int, code string, orgID *int, privs ...privileges.Privilege) *store.Role {
	t.Helper()

	slugs := make([]string, len(privs))
	for i, p := range privs {
		slugs[i] = string(p)
	}

	role := &store.Role{Code: code, OrgID: orgID, Privileges: slugs}
	require.NoError(t, e.store.CreateRole(context.Background(), role))
	require.NoError(t, e.store.AssignRole(context.Background(), accountID, role.ID))

	return role
}

// session establishes a fresh unit-of-work context for the account.
func (e *testEnv) session(t *testing.T, accountID int) context.Context {
	t.Helper()

	ctx, _, err := e.auth.EstablishSession(context.Background(), accountID)
	require.NoError(t, err)

	return ctx
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/stretchr/testify/require"

	"github.com/looplj/authcore/internal/privileges"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	// Shared-cache memory databases need a single connection, otherwise a
	// second connection sees an empty database.
	db.SetMaxOpenConns(1)

	s := New(db, dialect.SQLite)
	require.NoError(t, Migrate(context.Background(), s))

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "Ada@example.com", DisplayName: "Ada"}
	require.NoError(t, s.CreateAccount(ctx, account))
	require.NotZero(t, account.ID)
	require.Equal(t, "ada@example.com ada", account.SearchIndex)
	require.Equal(t, "activated", account.Status)

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.Email, got.Email)
	require.False(t, got.ModifiedAt.IsZero())

	_, err = s.GetAccount(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrganizationNameCached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	org := &Organization{Name: "Acme"}
	require.NoError(t, s.CreateOrganization(ctx, org))

	name, err := s.OrganizationName(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", name)

	// Served from cache even after the row is gone.
	_, err = s.db.ExecContext(ctx, "DELETE FROM organizations")
	require.NoError(t, err)

	name, err = s.OrganizationName(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", name)

	_, err = s.OrganizationName(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadPrincipal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "ada@example.com"}
	require.NoError(t, s.CreateAccount(ctx, account))

	org := &Organization{Name: "Acme"}
	require.NoError(t, s.CreateOrganization(ctx, org))
	require.NoError(t, s.AddMember(ctx, account.ID, org.ID))

	admin := &Role{Code: "admin", Privileges: []string{
		string(privileges.PrivilegeReadAccounts),
		string(privileges.PrivilegeWriteAccounts),
	}}
	require.NoError(t, s.CreateRole(ctx, admin))

	reporter := &Role{Code: "reporter", OrgID: &org.ID, Privileges: []string{
		string(privileges.PrivilegeReadReports),
	}}
	require.NoError(t, s.CreateRole(ctx, reporter))

	require.NoError(t, s.AssignRole(ctx, account.ID, admin.ID))
	require.NoError(t, s.AssignRole(ctx, account.ID, reporter.ID))

	p, err := s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)

	require.Equal(t, account.ID, p.AccountID)
	require.True(t, p.HasGlobalPrivilege(privileges.PrivilegeReadAccounts))
	require.True(t, p.HasOrgPrivilege(privileges.PrivilegeReadReports, org.ID))
	require.False(t, p.HasOrgPrivilege(privileges.PrivilegeWriteReports, org.ID))
	require.Equal(t, []string{"admin"}, p.GlobalRoles)
	require.Equal(t, []string{"reporter"}, p.OrgRoles[org.ID])
	require.Equal(t, "Acme", p.OrgNames[org.ID])

	// The snapshot time covers the latest role mutation, so a staleness
	// probe right after loading is quiescent.
	modified, err := s.AccountModifiedSince(ctx, account.ID, p.ModifiedAt)
	require.NoError(t, err)
	require.False(t, modified)

	modified, err = s.RolesModifiedSince(ctx, account.ID, p.ModifiedAt)
	require.NoError(t, err)
	require.False(t, modified)
}

func TestLoadPrincipalMembershipWithoutRoles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "ada@example.com"}
	require.NoError(t, s.CreateAccount(ctx, account))

	org := &Organization{Name: "Acme"}
	require.NoError(t, s.CreateOrganization(ctx, org))
	require.NoError(t, s.AddMember(ctx, account.ID, org.ID))

	p, err := s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)

	set, ok := p.OrgPrivileges[org.ID]
	require.True(t, ok)
	require.True(t, set.IsEmpty())
}

func TestLoadPrincipalMissingAccount(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadPrincipal(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoleMutationsBumpAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "ada@example.com"}
	require.NoError(t, s.CreateAccount(ctx, account))

	role := &Role{Code: "admin", Privileges: []string{string(privileges.PrivilegeReadAccounts)}}
	require.NoError(t, s.CreateRole(ctx, role))
	require.NoError(t, s.AssignRole(ctx, account.ID, role.ID))

	p, err := s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)

	// Editing the role's privilege list reaches every holder through the
	// account timestamp bump.
	err = s.UpdateRolePrivileges(ctx, role.ID, []string{string(privileges.PrivilegeReadDashboard)})
	require.NoError(t, err)

	modified, err := s.AccountModifiedSince(ctx, account.ID, p.ModifiedAt)
	require.NoError(t, err)
	require.True(t, modified)

	p, err = s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, p.HasGlobalPrivilege(privileges.PrivilegeReadDashboard))
	require.False(t, p.HasGlobalPrivilege(privileges.PrivilegeReadAccounts))

	// Revoking deletes the association row; the bump on the account row is
	// what keeps the change observable.
	require.NoError(t, s.RevokeRole(ctx, account.ID, role.ID))

	modified, err = s.AccountModifiedSince(ctx, account.ID, p.ModifiedAt)
	require.NoError(t, err)
	require.True(t, modified)

	p, err = s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, p.HasGlobalPrivilege(privileges.PrivilegeReadDashboard))
	require.Empty(t, p.GlobalRoles)
}

func TestRolesModifiedSinceDefinitionEdit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "ada@example.com"}
	require.NoError(t, s.CreateAccount(ctx, account))

	role := &Role{Code: "admin"}
	require.NoError(t, s.CreateRole(ctx, role))
	require.NoError(t, s.AssignRole(ctx, account.ID, role.ID))

	p, err := s.LoadPrincipal(ctx, account.ID)
	require.NoError(t, err)

	// Bump only the role definition, not the association.
	_, err = s.db.ExecContext(ctx, "UPDATE roles SET modified_at = ? WHERE id = ?",
		time.Now().Add(time.Minute).UnixNano(), role.ID)
	require.NoError(t, err)

	modified, err := s.RolesModifiedSince(ctx, account.ID, p.ModifiedAt)
	require.NoError(t, err)
	require.True(t, modified)
}

func TestAccountModifiedSinceMissingAccount(t *testing.T) {
	s := newTestStore(t)

	modified, err := s.AccountModifiedSince(context.Background(), 9999, time.Now())
	require.NoError(t, err)
	require.True(t, modified)
}

func TestRunInTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	account := &Account{Email: "ada@example.com"}
	require.NoError(t, s.CreateAccount(ctx, account))

	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		other := &Account{Email: "bob@example.com"}
		if err := s.CreateAccount(ctx, other); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count))
	require.Equal(t, 1, count)
}

func TestRunInTransactionJoinsExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		account := &Account{Email: "ada@example.com"}
		if err := s.CreateAccount(ctx, account); err != nil {
			return err
		}

		// The nested call must join the outer transaction, not deadlock
		// on a second connection.
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.TouchAccount(ctx, account.ID)
		})
	})
	require.NoError(t, err)
}

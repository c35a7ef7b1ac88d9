package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/looplj/authcore/internal/privileges"
)

// fakeSource is an in-memory authoritative store for staleness tests.
type fakeSource struct {
	mu sync.Mutex

	modifiedAt time.Time
	principal  *Principal
	err        error

	accountChecks int
	roleChecks    int
	loads         int
}

func (f *fakeSource) AccountModifiedSince(_ context.Context, _ int, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.accountChecks++

	if f.err != nil {
		return false, f.err
	}

	return f.modifiedAt.After(since), nil
}

func (f *fakeSource) RolesModifiedSince(_ context.Context, _ int, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.roleChecks++

	if f.err != nil {
		return false, f.err
	}

	return f.modifiedAt.After(since), nil
}

func (f *fakeSource) LoadPrincipal(_ context.Context, _ int) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loads++

	if f.err != nil {
		return nil, f.err
	}

	return f.principal.Clone(), nil
}

func (f *fakeSource) updateRoles(p *Principal, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p.ModifiedAt = at
	f.principal = p
	f.modifiedAt = at
}

func newFreshContext(t *testing.T, p *Principal) context.Context {
	t.Helper()
	return NewAccountContext(context.Background(), p)
}

func TestCurrentAnonymousWithoutPrincipal(t *testing.T) {
	store := NewStore(&fakeSource{})

	p := store.Current(context.Background())
	require.True(t, p.IsAnonymous())
	require.True(t, store.IsAnonymous(context.Background()))
	require.False(t, store.IsAuthenticated(context.Background()))
}

func TestCurrentFreshPrincipal(t *testing.T) {
	t0 := time.Now()
	p := accountPrincipal()
	p.ModifiedAt = t0

	source := &fakeSource{modifiedAt: t0.Add(-time.Hour), principal: p}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	got := store.Current(ctx)
	require.Equal(t, 1, got.AccountID)
	require.Equal(t, 0, source.loads, "fresh principal should not be reloaded")
}

func TestStalenessPropagation(t *testing.T) {
	// A role change after T0 must be visible on the next unit of work
	// without re-authentication.
	t0 := time.Now().Add(-time.Minute)
	p := accountPrincipal()
	p.ModifiedAt = t0

	source := &fakeSource{modifiedAt: t0, principal: p}
	store := NewStore(source)

	updated := accountPrincipal()
	updated.GlobalRoles = []string{"auditor", "admin"}
	updated.GlobalPrivileges = privileges.NewSet(
		privileges.PrivilegeReadAccounts,
		privileges.PrivilegeWriteAccounts,
	)
	source.updateRoles(updated, time.Now())

	ctx := newFreshContext(t, p)

	got := store.Current(ctx)
	require.True(t, got.HasGlobalPrivilege(privileges.PrivilegeWriteAccounts),
		"refreshed principal must reflect the updated role set")
	require.True(t, got.HasGlobalRole("admin"))

	// Every later read in the same unit of work observes the refreshed set.
	again := store.Current(ctx)
	require.True(t, again.HasGlobalPrivilege(privileges.PrivilegeWriteAccounts))
}

func TestStalenessCheckMemoizedPerUnitOfWork(t *testing.T) {
	t0 := time.Now()
	p := accountPrincipal()
	p.ModifiedAt = t0

	source := &fakeSource{modifiedAt: t0.Add(-time.Hour), principal: p}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	for range 10 {
		store.Current(ctx)
	}

	require.Equal(t, 1, source.accountChecks, "staleness round-trip must run once per unit of work")

	// A new unit of work checks again.
	ctx2 := newFreshContext(t, p.Clone())
	store.Current(ctx2)
	require.Equal(t, 2, source.accountChecks)
}

func TestStalenessFailsOpen(t *testing.T) {
	p := accountPrincipal()
	source := &fakeSource{err: errors.New("store unreachable")}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	got := store.Current(ctx)
	require.Equal(t, 1, got.AccountID, "unreachable source must serve the cached principal")
	require.True(t, got.HasGlobalPrivilege(privileges.PrivilegeReadAccounts))
}

func TestReloadFailureServesCachedSnapshot(t *testing.T) {
	t0 := time.Now().Add(-time.Minute)
	p := accountPrincipal()
	p.ModifiedAt = t0

	source := &fakeSource{modifiedAt: time.Now(), principal: p}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	// Stale check succeeds, then the load fails.
	source.mu.Lock()
	source.err = errors.New("load failed")
	source.mu.Unlock()

	got := store.Current(ctx)
	require.Equal(t, 1, got.AccountID)
}

func TestSyntheticPrincipalsSkipStalenessCheck(t *testing.T) {
	source := &fakeSource{}
	store := NewStore(source)

	ctx := NewBackgroundJobContext(context.Background())
	store.Current(ctx)

	require.Zero(t, source.accountChecks)
	require.Zero(t, source.roleChecks)
}

func TestSingleUsePrincipalNotWidenedByReload(t *testing.T) {
	t0 := time.Now().Add(-time.Minute)
	p := accountPrincipal()
	p.ModifiedAt = t0

	source := &fakeSource{modifiedAt: time.Now(), principal: accountPrincipal()}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	narrowed, err := store.Retain(ctx, privileges.NewSet(privileges.PrivilegeReadReports))
	require.NoError(t, err)
	require.True(t, narrowed.SingleUse)
	require.False(t, narrowed.HasGlobalPrivilege(privileges.PrivilegeReadAccounts))

	got := store.Current(ctx)
	require.False(t, got.HasGlobalPrivilege(privileges.PrivilegeReadAccounts),
		"reload must not widen a narrowed single-use principal")
	require.Zero(t, source.loads)
}

func TestRetainIrreversible(t *testing.T) {
	p := accountPrincipal()
	source := &fakeSource{modifiedAt: p.ModifiedAt.Add(-time.Hour), principal: p}
	store := NewStore(source)

	ctx := newFreshContext(t, p)

	_, err := store.Retain(ctx, privileges.NewSet())
	require.NoError(t, err)

	// Narrowing to the full catalog afterwards cannot restore anything.
	widened, err := store.Retain(ctx, privileges.AllSet())
	require.NoError(t, err)
	require.True(t, widened.GlobalPrivileges.IsEmpty())
	require.False(t, store.Current(ctx).HasGlobalPrivilege(privileges.PrivilegeReadAccounts))
}

func TestReplaceSwapsInPlace(t *testing.T) {
	p := accountPrincipal()
	store := NewStore(&fakeSource{})

	ctx := newFreshContext(t, p)

	target := accountPrincipal()
	target.AccountID = 9
	target.Impersonated = true

	require.NoError(t, store.Replace(ctx, target))
	require.Equal(t, 9, store.Current(ctx).AccountID)
	require.True(t, store.Current(ctx).Impersonated)

	require.Error(t, store.Replace(context.Background(), target))
}

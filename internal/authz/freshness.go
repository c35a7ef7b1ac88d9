package authz

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/privileges"
)

// Source is the authoritative account/role store the staleness detector polls
// and the reloader reads. Implemented by internal/store; treated as a black
// box here.
type Source interface {
	// AccountModifiedSince reports whether the account record was modified
	// after the given timestamp.
	AccountModifiedSince(ctx context.Context, accountID int, since time.Time) (bool, error)

	// RolesModifiedSince reports whether the account's role associations were
	// modified after the given timestamp.
	RolesModifiedSince(ctx context.Context, accountID int, since time.Time) (bool, error)

	// LoadPrincipal rebuilds the principal from current role/privilege data.
	LoadPrincipal(ctx context.Context, accountID int) (*Principal, error)
}

// Store exposes the current principal for the unit of work.
//
// Current performs at most one staleness round-trip per unit of work
// (memoized in the principal box) and swaps a rebuilt principal in place when
// the authoritative store reports a change, so role edits become visible on
// the next request without re-authentication. When the source is unreachable
// the check fails open and the cached principal is served.
type Store struct {
	source Source
	group  singleflight.Group
}

// NewStore builds a principal store over the authoritative source.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Current returns the principal for the unit of work, or the anonymous
// principal when none is established.
func (s *Store) Current(ctx context.Context) *Principal {
	box, ok := boxFromContext(ctx)
	if !ok {
		return NewAnonymous()
	}

	p := box.get()
	if p == nil {
		return NewAnonymous()
	}

	if !s.shouldCheck(p) {
		return p
	}

	if !box.markChecked() {
		return box.get()
	}

	if !s.isStale(ctx, p) {
		return box.get()
	}

	fresh, err := s.reload(ctx, p)
	if err != nil {
		// Fail open: serve the cached snapshot rather than blocking the request.
		log.Warn(ctx, "authz: principal reload failed, serving cached snapshot",
			log.String("principal", p.String()), log.Cause(err))

		return box.get()
	}

	box.replace(fresh)

	log.Debug(ctx, "authz: principal refreshed",
		log.String("principal", fresh.String()),
		log.Time("modified_at", fresh.ModifiedAt))

	return fresh
}

// IsAuthenticated reports whether the current principal is backed by an account.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return !s.Current(ctx).IsAnonymous()
}

// IsAnonymous reports whether no authenticated principal is established.
func (s *Store) IsAnonymous(ctx context.Context) bool {
	return s.Current(ctx).IsAnonymous()
}

// Replace swaps the boxed principal for the unit of work. The replacement is
// treated as freshly loaded, so no further staleness check runs this unit of
// work. Used by the impersonation swap.
func (s *Store) Replace(ctx context.Context, p *Principal) error {
	box, ok := boxFromContext(ctx)
	if !ok {
		return fmt.Errorf("authz: no principal established to replace")
	}

	box.replace(p)

	return nil
}

// Retain narrows the boxed principal's privilege sets to allowed. The
// narrowing is irreversible for the lifetime of the unit of work.
func (s *Store) Retain(ctx context.Context, allowed privileges.Set) (*Principal, error) {
	box, ok := boxFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authz: no principal established to narrow")
	}

	narrowed := box.get().RetainPrivileges(allowed)
	narrowed.SingleUse = true
	box.replace(narrowed)

	return narrowed, nil
}

// Refresh forces a reload from the authoritative source, bypassing the
// per-request memoization. Errors are returned, not failed open.
func (s *Store) Refresh(ctx context.Context) (*Principal, error) {
	box, ok := boxFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authz: no principal established to refresh")
	}

	p := box.get()
	if !s.shouldCheck(p) {
		return p, nil
	}

	fresh, err := s.reload(ctx, p)
	if err != nil {
		return nil, err
	}

	box.replace(fresh)

	return fresh, nil
}

// shouldCheck reports whether the principal participates in staleness
// detection. Synthetic and anonymous principals have no authoritative record;
// single-use principals were narrowed at mint time and a reload would widen
// them back, so they are served as-is for their short lifetime.
func (s *Store) shouldCheck(p *Principal) bool {
	if p.IsAnonymous() || p.IsSynthetic() || p.Kind == KindTest {
		return false
	}

	return !p.SingleUse
}

func (s *Store) isStale(ctx context.Context, p *Principal) bool {
	key := fmt.Sprintf("stale:%d:%d", p.AccountID, p.ModifiedAt.UnixNano())

	modified, err, _ := s.group.Do(key, func() (any, error) {
		changed, err := s.source.AccountModifiedSince(ctx, p.AccountID, p.ModifiedAt)
		if err != nil {
			return false, err
		}

		if changed {
			return true, nil
		}

		return s.source.RolesModifiedSince(ctx, p.AccountID, p.ModifiedAt)
	})
	if err != nil {
		// Fail open: unreachable source means "not modified".
		log.Warn(ctx, "authz: staleness check failed, assuming fresh",
			log.String("principal", p.String()), log.Cause(err))

		return false
	}

	return modified.(bool)
}

func (s *Store) reload(ctx context.Context, p *Principal) (*Principal, error) {
	fresh, err := s.source.LoadPrincipal(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}

	// Session-scoped flags survive the snapshot swap.
	fresh.Impersonated = p.Impersonated
	fresh.Method = p.Method

	return fresh, nil
}

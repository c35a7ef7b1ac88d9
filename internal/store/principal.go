package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
)

// The Store is the authoritative source behind authz.Store: it answers the
// staleness probes and rebuilds principals from current role data.

// AccountModifiedSince reports whether the account record changed after since.
// A missing account reads as modified, forcing a reload that surfaces the
// deletion.
func (s *Store) AccountModifiedSince(ctx context.Context, accountID int, since time.Time) (bool, error) {
	query, args := s.builder().
		Select("modified_at").
		From(entsql.Table("accounts")).
		Where(entsql.EQ("id", accountID)).
		Query()

	var ts int64

	err := s.Querier(ctx).QueryRowContext(ctx, query, args...).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("store: account modified check: %w", err)
	}

	return ts > nanos(since), nil
}

// RolesModifiedSince reports whether the account's role associations, or the
// definitions of the roles it holds, changed after since.
func (s *Store) RolesModifiedSince(ctx context.Context, accountID int, since time.Time) (bool, error) {
	// The joined table is aliased up front; the selector aliases joins on its
	// own otherwise and column refs built here would miss it.
	t := entsql.Table("account_roles")
	r := entsql.Table("roles").As("r")

	query, args := s.builder().
		Select(t.C("modified_at"), r.C("modified_at")).
		From(t).
		Join(r).
		On(t.C("role_id"), r.C("id")).
		Where(entsql.EQ(t.C("account_id"), accountID)).
		Query()

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("store: roles modified check: %w", err)
	}
	defer rows.Close()

	threshold := nanos(since)

	for rows.Next() {
		var assoc, def int64
		if err := rows.Scan(&assoc, &def); err != nil {
			return false, err
		}

		if assoc > threshold || def > threshold {
			return true, nil
		}
	}

	return false, rows.Err()
}

// LoadPrincipal rebuilds the principal for the account from current role and
// membership data. The snapshot timestamp is the maximum modification time
// observed, so a subsequent staleness probe is quiescent until the next
// mutation.
func (s *Store) LoadPrincipal(ctx context.Context, accountID int) (*authz.Principal, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	p := &authz.Principal{
		Kind:             authz.KindAccount,
		AccountID:        account.ID,
		GlobalPrivileges: privileges.NewSet(),
		OrgPrivileges:    map[int]privileges.Set{},
		OrgRoles:         map[int][]string{},
		OrgNames:         map[int]string{},
		ModifiedAt:       account.ModifiedAt,
	}

	if err := s.loadRoles(ctx, p); err != nil {
		return nil, err
	}

	if err := s.loadMemberships(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Store) loadRoles(ctx context.Context, p *authz.Principal) error {
	t := entsql.Table("account_roles")
	r := entsql.Table("roles").As("r")

	query, args := s.builder().
		Select(r.C("code"), r.C("org_id"), r.C("privileges"), t.C("modified_at"), r.C("modified_at")).
		From(t).
		Join(r).
		On(t.C("role_id"), r.C("id")).
		Where(entsql.EQ(t.C("account_id"), p.AccountID)).
		Query()

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: load roles for account %d: %w", p.AccountID, err)
	}
	defer rows.Close()

	globalSlugs := make([]string, 0)
	orgSlugs := map[int][]string{}

	for rows.Next() {
		var (
			code    string
			orgID   *int
			raw     string
			assocTS int64
			roleTS  int64
		)

		if err := rows.Scan(&code, &orgID, &raw, &assocTS, &roleTS); err != nil {
			return err
		}

		var slugs []string
		if err := json.Unmarshal([]byte(raw), &slugs); err != nil {
			return fmt.Errorf("store: decode privileges of role %q: %w", code, err)
		}

		if ts := maxNanos(assocTS, roleTS); fromNanos(ts).After(p.ModifiedAt) {
			p.ModifiedAt = fromNanos(ts)
		}

		if orgID == nil {
			p.GlobalRoles = append(p.GlobalRoles, code)
			globalSlugs = append(globalSlugs, slugs...)
		} else {
			p.OrgRoles[*orgID] = append(p.OrgRoles[*orgID], code)
			orgSlugs[*orgID] = append(orgSlugs[*orgID], slugs...)
		}
	}

	if err := rows.Err(); err != nil {
		return err
	}

	p.GlobalPrivileges = privileges.NewSetFromStrings(globalSlugs)
	for orgID, slugs := range orgSlugs {
		p.OrgPrivileges[orgID] = privileges.NewSetFromStrings(slugs)
	}

	return nil
}

func (s *Store) loadMemberships(ctx context.Context, p *authz.Principal) error {
	m := entsql.Table("organization_members")
	o := entsql.Table("organizations").As("o")

	query, args := s.builder().
		Select(o.C("id"), o.C("name")).
		From(m).
		Join(o).
		On(m.C("org_id"), o.C("id")).
		Where(entsql.EQ(m.C("account_id"), p.AccountID)).
		Query()

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: load memberships for account %d: %w", p.AccountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orgID int
			name  string
		)

		if err := rows.Scan(&orgID, &name); err != nil {
			return err
		}

		p.OrgNames[orgID] = name
		s.orgNames.SetDefault(orgNameKey(orgID), name)

		if _, ok := p.OrgPrivileges[orgID]; !ok {
			p.OrgPrivileges[orgID] = privileges.NewSet()
		}
	}

	return rows.Err()
}

func maxNanos(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}

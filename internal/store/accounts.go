package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Account is an account record of the authoritative store.
type Account struct {
	ID          int
	Email       string
	DisplayName string
	Status      string
	SearchIndex string
	ModifiedAt  time.Time
}

// EntityID implements the secure repository's entity contract.
func (a *Account) EntityID() int { return a.ID }

// Organization is a tenant record.
type Organization struct {
	ID         int
	Name       string
	ModifiedAt time.Time
}

// Role is a named bundle of privileges, global when OrgID is nil and
// organization-scoped otherwise.
type Role struct {
	ID         int
	Code       string
	Name       string
	OrgID      *int
	Privileges []string
	ModifiedAt time.Time
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// Builder returns a query builder bound to the store's dialect.
func (s *Store) Builder() *entsql.DialectBuilder {
	return s.builder()
}

// InsertID runs an insert and returns the generated id across dialects.
func (s *Store) InsertID(ctx context.Context, b *entsql.InsertBuilder) (int, error) {
	return s.insertID(ctx, b)
}

func (s *Store) insertID(ctx context.Context, b *entsql.InsertBuilder) (int, error) {
	q := s.Querier(ctx)

	if s.dialect == dialect.Postgres {
		query, args := b.Returning("id").Query()

		var id int
		if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}

		return id, nil
	}

	query, args := b.Query()

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	return int(id), nil
}

// CreateAccount inserts the account and fills in its id and timestamp.
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	ts := now()
	account.ModifiedAt = fromNanos(ts)

	if account.SearchIndex == "" {
		account.SearchIndex = strings.ToLower(account.Email + " " + account.DisplayName)
	}

	if account.Status == "" {
		account.Status = "activated"
	}

	id, err := s.insertID(ctx, s.builder().
		Insert("accounts").
		Columns("email", "display_name", "status", "search_index", "modified_at").
		Values(account.Email, account.DisplayName, account.Status, account.SearchIndex, ts))
	if err != nil {
		return fmt.Errorf("store: create account: %w", err)
	}

	account.ID = id

	return nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id int) (*Account, error) {
	query, args := s.builder().
		Select("id", "email", "display_name", "status", "search_index", "modified_at").
		From(entsql.Table("accounts")).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		account Account
		ts      int64
	)

	err := s.Querier(ctx).QueryRowContext(ctx, query, args...).
		Scan(&account.ID, &account.Email, &account.DisplayName, &account.Status, &account.SearchIndex, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: account %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("store: get account %d: %w", id, err)
	}

	account.ModifiedAt = fromNanos(ts)

	return &account, nil
}

// GetRole fetches a role by id.
func (s *Store) GetRole(ctx context.Context, id int) (*Role, error) {
	query, args := s.builder().
		Select("id", "code", "name", "org_id", "privileges", "modified_at").
		From(entsql.Table("roles")).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		role Role
		raw  string
		ts   int64
	)

	err := s.Querier(ctx).QueryRowContext(ctx, query, args...).
		Scan(&role.ID, &role.Code, &role.Name, &role.OrgID, &raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: role %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("store: get role %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(raw), &role.Privileges); err != nil {
		return nil, fmt.Errorf("store: decode privileges of role %d: %w", id, err)
	}

	role.ModifiedAt = fromNanos(ts)

	return &role, nil
}

// TouchAccount bumps the account's modification timestamp. Every privilege or
// role mutation funnels through this bump; it is what the staleness detector
// observes on the account's next request.
func (s *Store) TouchAccount(ctx context.Context, accountID int) error {
	query, args := s.builder().
		Update("accounts").
		Set("modified_at", now()).
		Where(entsql.EQ("id", accountID)).
		Query()

	if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: touch account %d: %w", accountID, err)
	}

	return nil
}

// CreateOrganization inserts the organization and fills in its id.
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	ts := now()
	org.ModifiedAt = fromNanos(ts)

	id, err := s.insertID(ctx, s.builder().
		Insert("organizations").
		Columns("name", "modified_at").
		Values(org.Name, ts))
	if err != nil {
		return fmt.Errorf("store: create organization: %w", err)
	}

	org.ID = id
	s.orgNames.Set(orgNameKey(id), org.Name, 0)

	return nil
}

func orgNameKey(id int) string {
	return fmt.Sprintf("orgname:%d", id)
}

// OrganizationName resolves a display name, served from cache when warm.
func (s *Store) OrganizationName(ctx context.Context, orgID int) (string, error) {
	if name, ok := s.orgNames.Get(orgNameKey(orgID)); ok {
		return name.(string), nil
	}

	query, args := s.builder().
		Select("name").
		From(entsql.Table("organizations")).
		Where(entsql.EQ("id", orgID)).
		Query()

	var name string

	err := s.Querier(ctx).QueryRowContext(ctx, query, args...).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: organization %d: %w", orgID, ErrNotFound)
	}

	if err != nil {
		return "", fmt.Errorf("store: organization name %d: %w", orgID, err)
	}

	s.orgNames.SetDefault(orgNameKey(orgID), name)

	return name, nil
}

// AddMember adds the account to the organization and bumps the account.
func (s *Store) AddMember(ctx context.Context, accountID, orgID int) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args := s.builder().
			Insert("organization_members").
			Columns("account_id", "org_id", "modified_at").
			Values(accountID, orgID, now()).
			Query()

		if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: add member: %w", err)
		}

		return s.TouchAccount(ctx, accountID)
	})
}

// RemoveMember removes the account from the organization and bumps the account.
func (s *Store) RemoveMember(ctx context.Context, accountID, orgID int) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args := s.builder().
			Delete("organization_members").
			Where(entsql.And(entsql.EQ("account_id", accountID), entsql.EQ("org_id", orgID))).
			Query()

		if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: remove member: %w", err)
		}

		return s.TouchAccount(ctx, accountID)
	})
}

// CreateRole inserts the role and fills in its id.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	raw, err := json.Marshal(role.Privileges)
	if err != nil {
		return fmt.Errorf("store: encode role privileges: %w", err)
	}

	ts := now()
	role.ModifiedAt = fromNanos(ts)

	b := s.builder().
		Insert("roles").
		Columns("code", "name", "org_id", "privileges", "modified_at").
		Values(role.Code, role.Name, role.OrgID, string(raw), ts)

	id, err := s.insertID(ctx, b)
	if err != nil {
		return fmt.Errorf("store: create role: %w", err)
	}

	role.ID = id

	return nil
}

// UpdateRolePrivileges replaces the role's privilege list and bumps every
// account holding the role so their next request observes the change.
func (s *Store) UpdateRolePrivileges(ctx context.Context, roleID int, privileges []string) error {
	raw, err := json.Marshal(privileges)
	if err != nil {
		return fmt.Errorf("store: encode role privileges: %w", err)
	}

	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args := s.builder().
			Update("roles").
			Set("privileges", string(raw)).
			Set("modified_at", now()).
			Where(entsql.EQ("id", roleID)).
			Query()

		if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: update role %d: %w", roleID, err)
		}

		holders, err := s.accountIDsWithRole(ctx, roleID)
		if err != nil {
			return err
		}

		for _, accountID := range holders {
			if err := s.TouchAccount(ctx, accountID); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) accountIDsWithRole(ctx context.Context, roleID int) ([]int, error) {
	query, args := s.builder().
		Select("account_id").
		From(entsql.Table("account_roles")).
		Where(entsql.EQ("role_id", roleID)).
		Query()

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: accounts with role %d: %w", roleID, err)
	}
	defer rows.Close()

	var ids []int

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AssignRole associates the role with the account and bumps the account.
func (s *Store) AssignRole(ctx context.Context, accountID, roleID int) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args := s.builder().
			Insert("account_roles").
			Columns("account_id", "role_id", "modified_at").
			Values(accountID, roleID, now()).
			Query()

		if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: assign role %d to account %d: %w", roleID, accountID, err)
		}

		return s.TouchAccount(ctx, accountID)
	})
}

// RevokeRole removes the association and bumps the account.
func (s *Store) RevokeRole(ctx context.Context, accountID, roleID int) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args := s.builder().
			Delete("account_roles").
			Where(entsql.And(entsql.EQ("account_id", accountID), entsql.EQ("role_id", roleID))).
			Query()

		if _, err := s.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: revoke role %d from account %d: %w", roleID, accountID, err)
		}

		return s.TouchAccount(ctx, accountID)
	})
}

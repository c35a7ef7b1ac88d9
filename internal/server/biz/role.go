package biz

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

type RoleServiceParams struct {
	fx.In

	Store      *store.Store
	Principals *authz.Store
}

type RoleService struct {
	*AbstractService

	principals *authz.Store
}

func NewRoleService(params RoleServiceParams) *RoleService {
	return &RoleService{
		AbstractService: &AbstractService{store: params.Store},
		principals:      params.Principals,
	}
}

// CreateRoleInput carries the fields of a new role. OrgID nil creates a
// global role.
type CreateRoleInput struct {
	Code       string
	Name       string
	OrgID      *int
	Privileges []string
}

// CreateRole creates a new role. The caller must hold write_roles at the
// role's scope and may only grant privileges it holds itself.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (*store.Role, error) {
	if err := validatePrivileges(input.Privileges); err != nil {
		return nil, err
	}

	if err := s.requireRoleWrite(ctx, input.OrgID); err != nil {
		return nil, err
	}

	if err := s.CanGrantPrivileges(ctx, input.OrgID, input.Privileges); err != nil {
		return nil, err
	}

	role := &store.Role{
		Code:       input.Code,
		Name:       input.Name,
		OrgID:      input.OrgID,
		Privileges: input.Privileges,
	}

	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

// UpdateRolePrivileges replaces the role's privilege list. Every account
// holding the role is bumped by the store, so the change reaches active
// sessions on their next request.
func (s *RoleService) UpdateRolePrivileges(ctx context.Context, roleID int, privs []string) error {
	if err := validatePrivileges(privs); err != nil {
		return err
	}

	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleWrite(ctx, role.OrgID); err != nil {
		return err
	}

	if err := s.CanGrantPrivileges(ctx, role.OrgID, privs); err != nil {
		return err
	}

	if err := s.store.UpdateRolePrivileges(ctx, roleID, privs); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	log.Info(ctx, "role privileges updated",
		log.String("role", role.Code),
		log.Strings("privileges", privs))

	return nil
}

// AssignRole associates the role with the account.
func (s *RoleService) AssignRole(ctx context.Context, accountID, roleID int) error {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleWrite(ctx, role.OrgID); err != nil {
		return err
	}

	if err := s.CanGrantPrivileges(ctx, role.OrgID, role.Privileges); err != nil {
		return err
	}

	if err := s.store.AssignRole(ctx, accountID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// RevokeRole removes the association.
func (s *RoleService) RevokeRole(ctx context.Context, accountID, roleID int) error {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireRoleWrite(ctx, role.OrgID); err != nil {
		return err
	}

	if err := s.store.RevokeRole(ctx, accountID, roleID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	return nil
}

// CanGrantPrivileges checks that the caller holds every privilege it is about
// to grant, at global scope for global roles and at global-or-organization
// scope for organization roles.
func (s *RoleService) CanGrantPrivileges(ctx context.Context, orgID *int, privs []string) error {
	p := s.principals.Current(ctx)

	for _, slug := range privs {
		privilege := privileges.Privilege(slug)

		held := p.HasGlobalPrivilege(privilege)
		if !held && orgID != nil {
			held = p.HasOrgPrivilege(privilege, *orgID)
		}

		if !held {
			return fmt.Errorf("%w: cannot grant privilege %q that you don't hold", ErrAccessDenied, slug)
		}
	}

	return nil
}

func (s *RoleService) requireRoleWrite(ctx context.Context, orgID *int) error {
	p := s.principals.Current(ctx)

	if p.HasGlobalPrivilege(privileges.PrivilegeWriteRoles) {
		return nil
	}

	if orgID != nil && p.HasOrgPrivilege(privileges.PrivilegeWriteRoles, *orgID) {
		return nil
	}

	return fmt.Errorf("%w: write_roles required", ErrAccessDenied)
}

func (s *RoleService) getRole(ctx context.Context, roleID int) (*store.Role, error) {
	role, err := authz.RunAsSystem(ctx, "role-lookup", func(ctx context.Context) (*store.Role, error) {
		return s.store.GetRole(ctx, roleID)
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("role %d: %w", roleID, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// validatePrivileges rejects slugs outside the catalog. A typo in a privilege
// grant must fail loudly, never create an inert role.
func validatePrivileges(privs []string) error {
	for _, slug := range privs {
		if !privileges.IsValid(privileges.Privilege(slug)) {
			return fmt.Errorf("unknown privilege %q", slug)
		}
	}

	return nil
}

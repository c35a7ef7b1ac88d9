package biz

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

type OrganizationServiceParams struct {
	fx.In

	Store      *store.Store
	Principals *authz.Store
}

type OrganizationService struct {
	*AbstractService

	principals *authz.Store
}

func NewOrganizationService(params OrganizationServiceParams) *OrganizationService {
	return &OrganizationService{
		AbstractService: &AbstractService{store: params.Store},
		principals:      params.Principals,
	}
}

// CreateOrganization creates a new organization. Requires global
// write_organizations.
func (s *OrganizationService) CreateOrganization(ctx context.Context, name string) (*store.Organization, error) {
	p := s.principals.Current(ctx)
	if !p.HasGlobalPrivilege(privileges.PrivilegeWriteOrganizations) {
		return nil, fmt.Errorf("%w: write_organizations required", ErrAccessDenied)
	}

	org := &store.Organization{Name: name}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	return org, nil
}

// OrganizationName resolves the display name of an organization the caller is
// a member of. Principal-known names are served without a lookup.
func (s *OrganizationService) OrganizationName(ctx context.Context, orgID int) (string, error) {
	p := s.principals.Current(ctx)

	if name, ok := p.OrganizationName(orgID); ok {
		return name, nil
	}

	name, err := s.store.OrganizationName(ctx, orgID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", fmt.Errorf("organization %d: %w", orgID, ErrNotFound)
		}

		return "", fmt.Errorf("failed to resolve organization name: %w", err)
	}

	return name, nil
}

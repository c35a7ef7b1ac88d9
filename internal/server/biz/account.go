package biz

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

type AccountServiceParams struct {
	fx.In

	Store      *store.Store
	Principals *authz.Store
}

type AccountService struct {
	*AbstractService

	principals *authz.Store
}

func NewAccountService(params AccountServiceParams) *AccountService {
	return &AccountService{
		AbstractService: &AbstractService{store: params.Store},
		principals:      params.Principals,
	}
}

// CreateAccount creates a new account. Requires global write_accounts.
func (s *AccountService) CreateAccount(ctx context.Context, email, displayName string) (*store.Account, error) {
	p := s.principals.Current(ctx)
	if !p.HasGlobalPrivilege(privileges.PrivilegeWriteAccounts) {
		return nil, fmt.Errorf("%w: write_accounts required", ErrAccessDenied)
	}

	account := &store.Account{Email: email, DisplayName: displayName}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// GetAccount fetches an account. Callers may read their own record with
// read_own_account; any other record requires read_accounts.
func (s *AccountService) GetAccount(ctx context.Context, accountID int) (*store.Account, error) {
	p := s.principals.Current(ctx)

	allowed := p.HasGlobalPrivilege(privileges.PrivilegeReadAccounts)
	if !allowed && p.AccountID == accountID {
		allowed = p.HasGlobalPrivilege(privileges.PrivilegeReadOwnAccount)
	}

	if !allowed {
		return nil, fmt.Errorf("%w: read_accounts required", ErrAccessDenied)
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("account %d: %w", accountID, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// AddToOrganization adds the account to the organization. The membership
// change bumps the account, so its active sessions pick it up on their next
// request.
func (s *AccountService) AddToOrganization(ctx context.Context, accountID, orgID int) error {
	if err := s.requireAccountWrite(ctx, orgID); err != nil {
		return err
	}

	if err := s.store.AddMember(ctx, accountID, orgID); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// RemoveFromOrganization removes the account from the organization.
func (s *AccountService) RemoveFromOrganization(ctx context.Context, accountID, orgID int) error {
	if err := s.requireAccountWrite(ctx, orgID); err != nil {
		return err
	}

	if err := s.store.RemoveMember(ctx, accountID, orgID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (s *AccountService) requireAccountWrite(ctx context.Context, orgID int) error {
	p := s.principals.Current(ctx)
	if !p.HasGlobalOrOrgPrivilege(privileges.PrivilegeWriteAccounts, orgID) {
		return fmt.Errorf("%w: write_accounts required", ErrAccessDenied)
	}

	return nil
}

package biz

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/contexts"
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

type ImpersonationServiceParams struct {
	fx.In

	Store      *store.Store
	Principals *authz.Store
}

// ImpersonationService swaps the principal of the current unit of work for
// another account's. Start and Exit run through the same swap primitive, so
// entering and leaving an impersonation session behave symmetrically: both
// load a fresh snapshot and replace the boxed principal in place.
type ImpersonationService struct {
	*AbstractService

	principals *authz.Store
}

func NewImpersonationService(params ImpersonationServiceParams) *ImpersonationService {
	return &ImpersonationService{
		AbstractService: &AbstractService{store: params.Store},
		principals:      params.Principals,
	}
}

// Start begins impersonating the target account. The caller must hold the
// global impersonate privilege; nested impersonation is rejected.
func (s *ImpersonationService) Start(ctx context.Context, targetAccountID int) error {
	current := s.principals.Current(ctx)

	if current.Impersonated {
		return fmt.Errorf("%w: already impersonating", ErrImpersonation)
	}

	if !current.HasGlobalPrivilege(privileges.PrivilegeImpersonate) {
		return fmt.Errorf("%w: impersonate required", ErrAccessDenied)
	}

	if targetAccountID == current.AccountID {
		return fmt.Errorf("%w: cannot impersonate yourself", ErrImpersonation)
	}

	// The impersonator id must survive on this unit of work; Exit restores
	// through it. A context without a container cannot retain the id, so
	// Start refuses before anything is swapped.
	contexts.WithImpersonatorID(ctx, current.AccountID)

	if _, ok := contexts.GetImpersonatorID(ctx); !ok {
		return fmt.Errorf("%w: unit of work carries no context container", ErrImpersonation)
	}

	target, err := s.swap(ctx, targetAccountID, true)
	if err != nil {
		contexts.ClearImpersonatorID(ctx)
		return err
	}

	log.Info(ctx, "impersonation started",
		log.String("impersonator", current.String()),
		log.String("target", target.String()))

	return nil
}

// Exit ends the impersonation session and restores the impersonator's
// principal from a fresh snapshot.
func (s *ImpersonationService) Exit(ctx context.Context) error {
	current := s.principals.Current(ctx)

	if !current.Impersonated {
		return fmt.Errorf("%w: not impersonating", ErrImpersonation)
	}

	impersonatorID, ok := contexts.GetImpersonatorID(ctx)
	if !ok {
		return fmt.Errorf("%w: impersonator unknown", ErrImpersonation)
	}

	restored, err := s.swap(ctx, impersonatorID, false)
	if err != nil {
		return err
	}

	contexts.ClearImpersonatorID(ctx)

	log.Info(ctx, "impersonation ended",
		log.String("impersonated", current.String()),
		log.String("restored", restored.String()))

	return nil
}

// swap loads a fresh principal for the account and replaces the boxed one.
// Both directions of an impersonation session go through here.
func (s *ImpersonationService) swap(ctx context.Context, accountID int, impersonated bool) (*authz.Principal, error) {
	p, err := authz.RunAsSystem(ctx, "impersonation-swap", func(ctx context.Context) (*authz.Principal, error) {
		return s.store.LoadPrincipal(ctx, accountID)
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("account %d: %w", accountID, ErrNotFound)
		}

		log.Error(ctx, "failed to load principal for impersonation",
			log.Int("account_id", accountID), log.Cause(err))

		return nil, ErrInternal
	}

	p.Impersonated = impersonated
	p.Method = authz.AuthMethodSynthetic

	if err := s.principals.Replace(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

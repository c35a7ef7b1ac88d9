package authz

import (
	"context"

	"github.com/looplj/authcore/internal/privileges"
)

// Synthetic principals for non-interactive execution contexts. Each carries
// exactly the privileges its task requires; widening one of these sets is a
// security-review change, not a convenience edit.

// NewBackgroundJobContext creates a context with the background-job principal.
// It holds the full privilege catalog and must only be established on
// scheduled/background execution paths, never on a user-facing request.
func NewBackgroundJobContext(ctx context.Context) context.Context {
	return NewAccountContext(ctx, &Principal{
		Kind:             KindBackgroundJob,
		AccountID:        AccountAnonymous,
		GlobalPrivileges: privileges.AllSet(),
		Method:           AuthMethodSynthetic,
	})
}

// NewOAuthCallbackContext creates a context with the OAuth-callback principal:
// read own account data and manage own role associations, nothing else, so a
// compromised callback handler cannot escalate.
func NewOAuthCallbackContext(ctx context.Context) context.Context {
	return NewAccountContext(ctx, &Principal{
		Kind:      KindOAuthCallback,
		AccountID: AccountAnonymous,
		GlobalPrivileges: privileges.NewSet(
			privileges.PrivilegeReadOwnAccount,
			privileges.PrivilegeManageOwnRoles,
		),
		Method: AuthMethodSynthetic,
	})
}

// NewIntegrationConsumerContext creates a context with the
// integration-consumer principal: backend reads plus account-role management,
// for callbacks from external systems.
func NewIntegrationConsumerContext(ctx context.Context) context.Context {
	return NewAccountContext(ctx, &Principal{
		Kind:      KindIntegrationConsumer,
		AccountID: AccountAnonymous,
		GlobalPrivileges: privileges.NewSet(
			privileges.PrivilegeReadBackend,
			privileges.PrivilegeManageAccountRoles,
		),
		Method: AuthMethodSynthetic,
	})
}

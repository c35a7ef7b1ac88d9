package authz

import (
	"context"

	"github.com/looplj/authcore/internal/privileges"
)

// NewTestContext creates a context with the test principal (only for test
// environment). The test principal carries the full catalog so fixtures can
// be arranged without staging grants first.
func NewTestContext(ctx context.Context) context.Context {
	return NewAccountContext(ctx, &Principal{
		Kind:             KindTest,
		AccountID:        AccountAnonymous,
		GlobalPrivileges: privileges.AllSet(),
		Method:           AuthMethodSynthetic,
	})
}

// WithTestBypass creates a context with the test principal and gating bypassed.
func WithTestBypass(ctx context.Context) context.Context {
	bypassCtx, _ := WithBypass(NewTestContext(ctx), "test")
	return bypassCtx
}

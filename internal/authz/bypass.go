package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/looplj/authcore/internal/log"
)

// bypassKey is an unexported key type to prevent external forgery.
type bypassKey struct{}

// bypassInfo stores bypass metadata.
type bypassInfo struct {
	Reason    string
	Timestamp time.Time
	Principal *Principal
}

// WithBypass creates a local gating-bypass context. Only background-job or
// test principals are allowed to call. reason must be a stable audit
// identifier (e.g., "principal-reload", "auth-lookup").
func WithBypass(ctx context.Context, reason string) (context.Context, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return nil, fmt.Errorf("authz: WithBypass requires a principal in context")
	}

	if p.Kind != KindBackgroundJob && p.Kind != KindTest {
		return nil, fmt.Errorf("authz: WithBypass requires background-job or test principal, got %s", p.String())
	}

	info := bypassInfo{
		Reason:    reason,
		Timestamp: time.Now(),
		Principal: p,
	}

	recordBypassAudit(ctx, info)

	return context.WithValue(ctx, bypassKey{}, info), nil
}

// RunAsSystem executes fn under a fresh background-job principal with gating
// bypassed, limiting the bypass to the closure. Use for internal lookups that
// must not be filtered by the caller's privileges (e.g. reloading a
// principal's own role associations).
func RunAsSystem[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	bypassCtx, err := WithBypass(NewBackgroundJobContext(context.WithoutCancel(ctx)), reason)
	if err != nil {
		var zero T
		return zero, err
	}

	return fn(bypassCtx)
}

// IsBypassActive checks if the current context is in bypass state.
func IsBypassActive(ctx context.Context) bool {
	_, ok := ctx.Value(bypassKey{}).(bypassInfo)
	return ok
}

// auditLogger is the bypass audit logger. Can be customized via SetAuditLogger.
var auditLogger func(ctx context.Context, reason string, principal string)

// SetAuditLogger sets a custom audit logger.
// If not set, default structured log output is used.
func SetAuditLogger(fn func(ctx context.Context, reason string, principal string)) {
	auditLogger = fn
}

func recordBypassAudit(ctx context.Context, info bypassInfo) {
	if auditLogger != nil {
		auditLogger(ctx, info.Reason, info.Principal.String())
		return
	}

	log.Debug(ctx, "authz: gating bypass",
		log.String("principal", info.Principal.String()),
		log.String("reason", info.Reason),
	)
}

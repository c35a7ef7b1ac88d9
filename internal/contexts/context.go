package contexts

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey defines the context key type.
type ContextKey string

const (
	// containerContextKey is used to store the context container in the context.
	containerContextKey ContextKey = "context_container"
)

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)

	container.mu.Lock()
	container.RequestID = &requestID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// EnsureRequestID stores a generated request id in the context if none is present.
func EnsureRequestID(ctx context.Context) context.Context {
	if _, ok := GetRequestID(ctx); ok {
		return ctx
	}

	return WithRequestID(ctx, uuid.NewString())
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithOrganizationID stores the active organization id in the context.
func WithOrganizationID(ctx context.Context, orgID int) context.Context {
	container := getContainer(ctx)

	container.mu.Lock()
	container.OrganizationID = &orgID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetOrganizationID retrieves the active organization id from the context.
func GetOrganizationID(ctx context.Context) (int, bool) {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.OrganizationID != nil {
		return *container.OrganizationID, true
	}

	return 0, false
}

// WithImpersonatorID stores the impersonating account id in the context.
// Set while an impersonation session is active so the original account
// remains known for exit and audit.
func WithImpersonatorID(ctx context.Context, accountID int) context.Context {
	container := getContainer(ctx)

	container.mu.Lock()
	container.ImpersonatorID = &accountID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// ClearImpersonatorID removes the impersonating account id, ending the
// impersonation session for the unit of work.
func ClearImpersonatorID(ctx context.Context) {
	container := getContainer(ctx)

	container.mu.Lock()
	container.ImpersonatorID = nil
	container.mu.Unlock()
}

// GetImpersonatorID retrieves the impersonating account id from the context.
func GetImpersonatorID(ctx context.Context) (int, bool) {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.ImpersonatorID != nil {
		return *container.ImpersonatorID, true
	}

	return 0, false
}

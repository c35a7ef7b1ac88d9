package authz

import (
	"context"
	"fmt"
	"sync"
)

// principalKey is an unexported key type to prevent external forgery.
type principalKey struct{}

// principalBox holds the principal for one unit of work.
//
// The box, not the principal, is stored in the context: the staleness
// reloader and the impersonation swap replace the boxed principal atomically
// so every later read in the same unit of work observes the new snapshot.
// A box is created per unit of work and must never be shared across workers.
type principalBox struct {
	mu sync.RWMutex

	p *Principal

	// checked memoizes the staleness round-trip: at most one per unit of work.
	checked bool
}

func (b *principalBox) get() *Principal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.p
}

// replace swaps the boxed principal and marks it freshly checked, so the
// memoized staleness round-trip is not repeated for the replacement.
func (b *principalBox) replace(p *Principal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.p = p
	b.checked = true
}

func (b *principalBox) markChecked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.checked {
		return false
	}

	b.checked = true

	return true
}

func boxFromContext(ctx context.Context) (*principalBox, bool) {
	box, ok := ctx.Value(principalKey{}).(*principalBox)
	return box, ok
}

// WithPrincipal establishes the principal for the unit of work, returning an
// error if a different principal is already established. Each context carries
// at most one principal, preventing principal mixing across call chains.
func WithPrincipal(ctx context.Context, p *Principal) (context.Context, error) {
	if box, ok := boxFromContext(ctx); ok {
		existing := box.get()
		if existing.Equal(p) {
			return ctx, nil // Same principal, idempotent.
		}

		return ctx, fmt.Errorf("authz: principal conflict: existing=%s, new=%s", existing.String(), p.String())
	}

	return context.WithValue(ctx, principalKey{}, &principalBox{p: p}), nil
}

// NewAccountContext creates a context with the given principal in a fresh
// box, shadowing any principal established on the parent. Used at
// unit-of-work boundaries (request start, job start, bypass closures); within
// a unit of work use WithPrincipal, which enforces set-once semantics.
func NewAccountContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, &principalBox{p: p})
}

// GetPrincipal reads the current principal.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	box, ok := boxFromContext(ctx)
	if !ok {
		return nil, false
	}

	p := box.get()

	return p, p != nil
}

// MustGetPrincipal reads the current principal, panicking if none is
// established (used in chains where the principal is confirmed).
func MustGetPrincipal(ctx context.Context) *Principal {
	p, ok := GetPrincipal(ctx)
	if !ok {
		panic("authz: no principal in context")
	}

	return p
}

// RequirePrincipal checks that a principal exists, otherwise returns an error.
func RequirePrincipal(ctx context.Context) error {
	_, ok := GetPrincipal(ctx)
	if !ok {
		return fmt.Errorf("authz: no principal in context")
	}

	return nil
}

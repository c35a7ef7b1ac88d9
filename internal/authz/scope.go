package authz

// SecurityScope is the explicit request-time parameter object threaded into
// every predicate-builder and repository call. The principal itself may be
// read from the context, but the scope is always passed at the call boundary
// so call sites stay auditable.
//
// Today it only distinguishes read-only calls; further scope flavors (admin
// maintenance windows, data-export scopes) extend this struct rather than
// adding ambient state.
type SecurityScope struct {
	ReadOnly bool
}

// NewSecurityScope returns the default read-write scope.
func NewSecurityScope() SecurityScope {
	return SecurityScope{}
}

// ReadOnlyScope returns a scope under which mutations are rejected.
func ReadOnlyScope() SecurityScope {
	return SecurityScope{ReadOnly: true}
}

package predicate

import (
	"entgo.io/ent/dialect/sql"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/privileges"
)

// Gate returns the privilege-gate predicate for the principal: true iff the
// principal holds required globally, or, for tenant-scoped entities with a
// non-empty orgColumn, rows whose organization the principal holds it in.
//
// An empty required privilege means the entity type is unrestricted. The
// no-qualifying-organizations case renders as membership in the sentinel
// organization, which matches nothing by construction.
func Gate(p *authz.Principal, required privileges.Privilege, orgColumn string) Predicate {
	if required == "" {
		return True()
	}

	if p.HasGlobalPrivilege(required) {
		return True()
	}

	if orgColumn == "" {
		return False()
	}

	orgIDs := p.OrganizationIDsWithPrivilege(required)

	return Raw(sql.In(orgColumn, intArgs(orgIDs)...))
}

// Secure wraps a base predicate with the privilege gate; the result is
// applied to every read path, no repository method may bypass it. The scope
// parameter keeps the call boundary explicit even though the principal may
// come from the request context.
func Secure(_ authz.SecurityScope, base Predicate, p *authz.Principal, required privileges.Privilege, orgColumn string) Predicate {
	return And(base, Gate(p, required, orgColumn))
}

package authz

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/looplj/authcore/internal/privileges"
)

const (
	// AccountAnonymous is the sentinel account id carried by principals that
	// are not backed by an account record.
	AccountAnonymous = -2

	// OrganizationNone is the sentinel organization id used when building
	// membership constraints over an empty organization set. It never
	// collides with a real organization id.
	OrganizationNone = -1
)

// Kind defines authorization principal kinds.
type Kind int

const (
	// KindUnknown unknown principal kind.
	KindUnknown Kind = iota
	// KindAccount principal backed by an account record.
	KindAccount
	// KindBackgroundJob synthetic principal for scheduled/background execution.
	KindBackgroundJob
	// KindOAuthCallback synthetic principal for OAuth callback handlers.
	KindOAuthCallback
	// KindIntegrationConsumer synthetic principal for external system callbacks.
	KindIntegrationConsumer
	// KindTest test principal (only for test environment).
	KindTest
)

// String returns string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindBackgroundJob:
		return "background-job"
	case KindOAuthCallback:
		return "oauth-callback"
	case KindIntegrationConsumer:
		return "integration-consumer"
	case KindTest:
		return "test"
	default:
		return "unknown"
	}
}

// AuthMethod records how the principal was authenticated.
type AuthMethod int

const (
	AuthMethodUnknown AuthMethod = iota
	AuthMethodPassword
	AuthMethodToken
	AuthMethodOAuth
	AuthMethodSynthetic
)

// String returns string representation of AuthMethod.
func (m AuthMethod) String() string {
	switch m {
	case AuthMethodPassword:
		return "password"
	case AuthMethodToken:
		return "token"
	case AuthMethodOAuth:
		return "oauth"
	case AuthMethodSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Principal represents the authorization identity of one unit of work:
// an account id (or the anonymous sentinel), its privilege and role snapshot
// at global and per-organization scope, and authentication metadata.
//
// The identity fields are fixed at construction. The snapshot fields are
// replaced as a whole by the Store when staleness is detected; they are never
// mutated field by field. Narrowing via RetainPrivileges produces a new
// Principal and is irreversible for the session.
type Principal struct {
	Kind      Kind
	AccountID int

	GlobalPrivileges privileges.Set
	GlobalRoles      []string
	OrgPrivileges    map[int]privileges.Set
	OrgRoles         map[int][]string
	OrgNames         map[int]string

	Impersonated bool
	SingleUse    bool
	Method       AuthMethod

	// ModifiedAt is the authoritative modification timestamp the snapshot
	// was built from; the staleness detector compares against it.
	ModifiedAt time.Time
}

// NewAnonymous returns the unauthenticated principal.
func NewAnonymous() *Principal {
	return &Principal{
		Kind:      KindAccount,
		AccountID: AccountAnonymous,
	}
}

// IsAnonymous reports whether the principal is not backed by an account.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.AccountID == AccountAnonymous
}

// IsSynthetic reports whether the principal was constructed for a
// non-interactive execution context.
func (p *Principal) IsSynthetic() bool {
	return p != nil && (p.Kind == KindBackgroundJob || p.Kind == KindOAuthCallback || p.Kind == KindIntegrationConsumer)
}

// HasGlobalPrivilege reports whether the privilege is held at global scope.
func (p *Principal) HasGlobalPrivilege(privilege privileges.Privilege) bool {
	if p == nil {
		return false
	}

	return p.GlobalPrivileges.Has(privilege)
}

// HasOrgPrivilege reports whether the privilege is held within the organization.
func (p *Principal) HasOrgPrivilege(privilege privileges.Privilege, orgID int) bool {
	if p == nil {
		return false
	}

	set, ok := p.OrgPrivileges[orgID]
	if !ok {
		return false
	}

	return set.Has(privilege)
}

// HasGlobalOrOrgPrivilege reports whether the privilege is held globally or
// within the organization.
func (p *Principal) HasGlobalOrOrgPrivilege(privilege privileges.Privilege, orgID int) bool {
	return p.HasGlobalPrivilege(privilege) || p.HasOrgPrivilege(privilege, orgID)
}

// OrganizationIDsWithPrivilege returns the ids of all organizations in which
// the privilege is held, sorted ascending.
//
// When no organization qualifies it returns the singleton {OrganizationNone}
// rather than an empty slice, so membership clauses built from the result are
// always well formed and match nothing instead of degenerating.
func (p *Principal) OrganizationIDsWithPrivilege(privilege privileges.Privilege) []int {
	ids := make([]int, 0)

	if p != nil {
		for orgID, set := range p.OrgPrivileges {
			if set.Has(privilege) {
				ids = append(ids, orgID)
			}
		}
	}

	if len(ids) == 0 {
		return []int{OrganizationNone}
	}

	sort.Ints(ids)

	return ids
}

// OrganizationIDs returns the ids of all organizations the principal holds
// any privilege in, sorted ascending.
func (p *Principal) OrganizationIDs() []int {
	if p == nil {
		return nil
	}

	ids := make([]int, 0, len(p.OrgPrivileges))
	for orgID := range p.OrgPrivileges {
		ids = append(ids, orgID)
	}

	sort.Ints(ids)

	return ids
}

// OrganizationName returns the display name of the organization, if known.
// Absent names are tolerated: membership without a resolved name is valid.
func (p *Principal) OrganizationName(orgID int) (string, bool) {
	if p == nil {
		return "", false
	}

	name, ok := p.OrgNames[orgID]

	return name, ok
}

// HasGlobalRole reports whether the role is held at global scope.
func (p *Principal) HasGlobalRole(role string) bool {
	if p == nil {
		return false
	}

	for _, r := range p.GlobalRoles {
		if r == role {
			return true
		}
	}

	return false
}

// RetainPrivileges returns a copy of the principal whose global and
// per-organization privilege sets are intersected with allowed. Roles and
// identity fields are preserved. Used for scoped tokens that must never carry
// more privilege than their issuing session.
func (p *Principal) RetainPrivileges(allowed privileges.Set) *Principal {
	if p == nil {
		return nil
	}

	narrowed := p.Clone()
	narrowed.GlobalPrivileges = p.GlobalPrivileges.Narrow(allowed)

	narrowed.OrgPrivileges = make(map[int]privileges.Set, len(p.OrgPrivileges))
	for orgID, set := range p.OrgPrivileges {
		narrowed.OrgPrivileges[orgID] = set.Narrow(allowed)
	}

	return narrowed
}

// Clone returns a deep copy of the principal.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}

	clone := *p

	clone.GlobalRoles = append([]string(nil), p.GlobalRoles...)
	clone.OrgPrivileges = maps.Clone(p.OrgPrivileges)
	clone.OrgNames = maps.Clone(p.OrgNames)

	clone.OrgRoles = make(map[int][]string, len(p.OrgRoles))
	for orgID, roles := range p.OrgRoles {
		clone.OrgRoles[orgID] = append([]string(nil), roles...)
	}

	return &clone
}

// Equal reports whether two principals carry the same identity, privilege and
// role snapshot. Authentication metadata and timestamps are ignored.
func (p *Principal) Equal(other *Principal) bool {
	if p == nil || other == nil {
		return p == other
	}

	if p.AccountID != other.AccountID || p.Kind != other.Kind {
		return false
	}

	if !p.GlobalPrivileges.Equal(other.GlobalPrivileges) {
		return false
	}

	if !stringsEqual(p.GlobalRoles, other.GlobalRoles) {
		return false
	}

	if len(p.OrgPrivileges) != len(other.OrgPrivileges) {
		return false
	}

	for orgID, set := range p.OrgPrivileges {
		otherSet, ok := other.OrgPrivileges[orgID]
		if !ok || !set.Equal(otherSet) {
			return false
		}
	}

	if len(p.OrgRoles) != len(other.OrgRoles) {
		return false
	}

	for orgID, roles := range p.OrgRoles {
		if !stringsEqual(roles, other.OrgRoles[orgID]) {
			return false
		}
	}

	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)

	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}

	return true
}

// String returns string representation of Principal (for audit logs).
func (p *Principal) String() string {
	if p == nil {
		return "none"
	}

	switch p.Kind {
	case KindBackgroundJob, KindOAuthCallback, KindIntegrationConsumer, KindTest:
		return p.Kind.String()
	case KindAccount:
		if p.IsAnonymous() {
			return "anonymous"
		}

		if p.Impersonated {
			return fmt.Sprintf("account:%d(impersonated)", p.AccountID)
		}

		return fmt.Sprintf("account:%d", p.AccountID)
	default:
		return "unknown"
	}
}

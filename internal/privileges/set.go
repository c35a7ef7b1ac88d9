package privileges

import (
	"sort"
	"strings"
)

// Set is an immutable collection of privileges.
//
// A Set never grows after construction: the only derived-set operation is
// Narrow, which returns a new Set containing the intersection with an allowed
// set. Code holding a Set can therefore hand it downstream without risking
// privilege escalation through mutation.
type Set struct {
	m map[Privilege]struct{}
}

// NewSet builds a Set from the given privileges.
func NewSet(privileges ...Privilege) Set {
	m := make(map[Privilege]struct{}, len(privileges))
	for _, p := range privileges {
		m[p] = struct{}{}
	}

	return Set{m: m}
}

// NewSetFromStrings builds a Set from string slugs, e.g. rows read from storage.
func NewSetFromStrings(slugs []string) Set {
	m := make(map[Privilege]struct{}, len(slugs))
	for _, s := range slugs {
		m[Privilege(s)] = struct{}{}
	}

	return Set{m: m}
}

// Has reports whether the set contains the privilege.
func (s Set) Has(p Privilege) bool {
	_, ok := s.m[p]
	return ok
}

// Len returns the number of privileges in the set.
func (s Set) Len() int {
	return len(s.m)
}

// IsEmpty reports whether the set holds no privileges.
func (s Set) IsEmpty() bool {
	return len(s.m) == 0
}

// Narrow returns a new Set containing only privileges also present in allowed.
func (s Set) Narrow(allowed Set) Set {
	m := make(map[Privilege]struct{}, len(s.m))

	for p := range s.m {
		if allowed.Has(p) {
			m[p] = struct{}{}
		}
	}

	return Set{m: m}
}

// Equal reports whether two sets hold exactly the same privileges.
func (s Set) Equal(other Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}

	for p := range s.m {
		if !other.Has(p) {
			return false
		}
	}

	return true
}

// Slice returns the privileges in sorted order.
func (s Set) Slice() []Privilege {
	out := make([]Privilege, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Strings returns the privileges as sorted string slugs.
func (s Set) Strings() []string {
	slugs := s.Slice()

	out := make([]string, len(slugs))
	for i, p := range slugs {
		out[i] = string(p)
	}

	return out
}

// String returns a stable representation for audit logs.
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}

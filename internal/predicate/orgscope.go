package predicate

import (
	"entgo.io/ent/dialect/sql"
)

// OrgScope constrains the tenant-scoping column to the given organizations.
//
// A nil slice means unconstrained (always-true). An empty non-nil slice means
// "no accessible organizations" and short-circuits to always-false rather
// than reaching storage as an IN clause over an empty set, which is not
// guaranteed well-defined there.
func OrgScope(column string, orgIDs []int) Predicate {
	switch {
	case orgIDs == nil:
		return True()
	case len(orgIDs) == 0:
		return False()
	case len(orgIDs) == 1:
		return Raw(sql.EQ(column, orgIDs[0]))
	default:
		return Raw(sql.In(column, intArgs(orgIDs)...))
	}
}

func intArgs(ids []int) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return args
}

// Package predicate builds composable, privilege-aware query predicates on
// top of the ent sql builder. Predicates compose like boolean formulas; the
// always-true and always-false identities are first class so degenerate
// inputs (no search terms, zero accessible organizations) short-circuit
// instead of reaching storage as malformed clauses.
package predicate

import (
	"entgo.io/ent/dialect/sql"
)

type kind int

const (
	kindExpr kind = iota
	kindTrue
	kindFalse
)

// Predicate is an opaque boolean query fragment over an entity table.
type Predicate struct {
	kind kind
	p    *sql.Predicate
}

// True returns the always-true predicate. Applying it constrains nothing.
func True() Predicate {
	return Predicate{kind: kindTrue}
}

// False returns the always-false predicate. Applying it matches nothing.
func False() Predicate {
	return Predicate{kind: kindFalse}
}

// Raw wraps an ent sql predicate.
func Raw(p *sql.Predicate) Predicate {
	return Predicate{kind: kindExpr, p: p}
}

// IsAlwaysTrue reports whether the predicate constrains nothing.
func (p Predicate) IsAlwaysTrue() bool { return p.kind == kindTrue }

// IsAlwaysFalse reports whether the predicate matches nothing.
func (p Predicate) IsAlwaysFalse() bool { return p.kind == kindFalse }

// And combines predicates conjunctively. No arguments yield True; any
// always-false operand collapses the conjunction to False; always-true
// operands are dropped.
func And(ps ...Predicate) Predicate {
	exprs := make([]*sql.Predicate, 0, len(ps))

	for _, p := range ps {
		switch p.kind {
		case kindFalse:
			return False()
		case kindTrue:
			// Identity element, dropped.
		case kindExpr:
			exprs = append(exprs, p.p)
		}
	}

	switch len(exprs) {
	case 0:
		return True()
	case 1:
		return Raw(exprs[0])
	default:
		return Raw(sql.And(exprs...))
	}
}

// Or combines predicates disjunctively. No arguments yield False; any
// always-true operand collapses the disjunction to True; always-false
// operands are dropped.
func Or(ps ...Predicate) Predicate {
	exprs := make([]*sql.Predicate, 0, len(ps))

	for _, p := range ps {
		switch p.kind {
		case kindTrue:
			return True()
		case kindFalse:
			// Identity element, dropped.
		case kindExpr:
			exprs = append(exprs, p.p)
		}
	}

	switch len(exprs) {
	case 0:
		return False()
	case 1:
		return Raw(exprs[0])
	default:
		return Raw(sql.Or(exprs...))
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	switch p.kind {
	case kindTrue:
		return False()
	case kindFalse:
		return True()
	default:
		return Raw(sql.Not(p.p))
	}
}

// Apply adds the predicate to the selector's WHERE clause.
func (p Predicate) Apply(s *sql.Selector) {
	switch p.kind {
	case kindTrue:
		// Nothing to constrain.
	case kindFalse:
		s.Where(sql.ExprP("FALSE"))
	case kindExpr:
		s.Where(p.p)
	}
}

// SQL returns the underlying ent sql predicate. The identities render as the
// FALSE/TRUE literals.
func (p Predicate) SQL() *sql.Predicate {
	switch p.kind {
	case kindTrue:
		return sql.ExprP("TRUE")
	case kindFalse:
		return sql.ExprP("FALSE")
	default:
		return p.p
	}
}

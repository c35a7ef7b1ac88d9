package predicate

import (
	"strings"

	"entgo.io/ent/dialect/sql"
)

// FreeText matches every term as a case-insensitive substring of the entity's
// precomputed search-index column. Empty or absent terms yield the
// always-true predicate, not an error.
func FreeText(column string, terms ...string) Predicate {
	ps := make([]Predicate, 0, len(terms))

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		ps = append(ps, Raw(sql.ContainsFold(column, term)))
	}

	return And(ps...)
}

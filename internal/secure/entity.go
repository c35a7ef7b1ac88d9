// Package secure provides the privilege-gated repository facade over the
// store. Every read is filtered through the caller's privilege gate before it
// reaches storage and every write is checked against the entity's owning
// organization, so call sites cannot forget authorization.
package secure

import (
	"database/sql"
	"fmt"

	"github.com/looplj/authcore/internal/predicate"
	"github.com/looplj/authcore/internal/privileges"
)

// Entity is the minimal contract stored rows satisfy.
type Entity interface {
	EntityID() int
}

// TenantEntity is implemented by organization-owned entities. Entities that
// do not implement it are global and gated by global privileges only.
type TenantEntity interface {
	Entity
	OrganizationID() int
}

// EntityType declares how one entity kind maps onto storage and which
// privileges gate it. Construction of instances goes through the typed New
// hook, never through reflection.
type EntityType[T Entity] struct {
	// Name identifies the type in the registry and in errors.
	Name string

	// Table is the backing table. Columns lists the selected columns with
	// the id column first; Values must return the non-id column values in
	// the same order.
	Table   string
	Columns []string

	// SearchColumn is matched by free-text search terms. Empty disables
	// free-text search for the type.
	SearchColumn string

	// OrgColumn is the tenant-scoping column. Empty marks the type global.
	OrgColumn string

	// ReadPrivilege and WritePrivilege gate the respective paths. An empty
	// privilege leaves that path unrestricted.
	ReadPrivilege  privileges.Privilege
	WritePrivilege privileges.Privilege

	// Fields declares the filterable fields exposed to structured filters.
	Fields map[string]predicate.FieldDef

	New    func(orgID int) T
	Scan   func(rows *sql.Rows) (T, error)
	Values func(e T) []any

	// ApplyForm copies submitted form values onto the entity. Optional;
	// types without it reject SaveForm.
	ApplyForm func(e T, form map[string]string) (T, error)
}

// Validate checks the declaration. A bad privilege slug or column layout is a
// programmer error and fails loudly here rather than degrading at query time.
func (t *EntityType[T]) Validate() error {
	fail := func(format string, args ...any) error {
		return &ConfigurationError{Entity: t.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if t.Name == "" {
		return &ConfigurationError{Entity: "?", Reason: "missing name"}
	}

	if t.Table == "" {
		return fail("missing table")
	}

	if len(t.Columns) == 0 {
		return fail("no columns declared")
	}

	if t.Columns[0] != "id" {
		return fail("first column must be id, got %q", t.Columns[0])
	}

	if t.ReadPrivilege != "" && !privileges.IsValid(t.ReadPrivilege) {
		return fail("unknown read privilege %q", t.ReadPrivilege)
	}

	if t.WritePrivilege != "" && !privileges.IsValid(t.WritePrivilege) {
		return fail("unknown write privilege %q", t.WritePrivilege)
	}

	for name, def := range t.Fields {
		if def.Column == "" {
			return fail("field %q has no column", name)
		}

		if def.Type == predicate.FieldTypeUnknown {
			return fail("field %q has unknown type", name)
		}
	}

	if t.New == nil || t.Scan == nil || t.Values == nil {
		return fail("New, Scan and Values hooks are required")
	}

	return nil
}

package secure

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/predicate"
	"github.com/looplj/authcore/internal/store"
)

// Query describes a gated search. All parts are optional; the zero Query
// matches every row the caller is allowed to see.
type Query struct {
	// Terms are free-text terms, conjunctively matched against the type's
	// search column.
	Terms []string

	// Filters are structured field filters keyed by declared field name.
	Filters map[string]string

	// OrgIDs narrows results to the given organizations on top of the
	// privilege gate. Nil means no narrowing; empty means no organizations
	// and matches nothing.
	OrgIDs []int

	// OrderBy names a declared column; empty orders by id.
	OrderBy string
	Desc    bool

	Limit  int
	Offset int
}

// Repository is the privilege-gated data access facade for one entity type.
// Reads conjoin the caller's privilege gate into every statement; writes are
// checked against the entity's owning organization before any row is touched.
type Repository[T Entity] struct {
	store      *store.Store
	principals *authz.Store
	typ        *EntityType[T]
}

// NewRepository builds the facade. The declaration is validated here, so a
// misconfigured type fails wiring instead of serving unfiltered rows.
func NewRepository[T Entity](s *store.Store, principals *authz.Store, t *EntityType[T]) (*Repository[T], error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &Repository[T]{store: s, principals: principals, typ: t}, nil
}

// New builds a blank entity through the type's factory.
func (r *Repository[T]) New(orgID int) T {
	return r.typ.New(orgID)
}

// gate returns the read gate for the current principal.
func (r *Repository[T]) gate(ctx context.Context) predicate.Predicate {
	p := r.principals.Current(ctx)
	return predicate.Gate(p, r.typ.ReadPrivilege, r.typ.OrgColumn)
}

// Search returns the rows matching the query that the caller is allowed to
// see. A caller with no qualifying privilege gets an empty result, not an
// error.
func (r *Repository[T]) Search(ctx context.Context, scope authz.SecurityScope, q Query) ([]T, error) {
	base, err := r.queryPredicate(q)
	if err != nil {
		return nil, err
	}

	p := r.principals.Current(ctx)

	combined := predicate.Secure(scope, base, p, r.typ.ReadPrivilege, r.typ.OrgColumn)
	if combined.IsAlwaysFalse() {
		return []T{}, nil
	}

	sel := r.selector()
	combined.Apply(sel)

	if err := r.order(sel, q); err != nil {
		return nil, err
	}

	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	if q.Offset > 0 {
		sel.Offset(q.Offset)
	}

	return r.queryAll(ctx, sel)
}

// FindByID returns the entity when it exists and the caller may see it.
// A row hidden by the gate reports ErrNotFound, indistinguishable from a row
// that does not exist.
func (r *Repository[T]) FindByID(ctx context.Context, scope authz.SecurityScope, id int) (T, error) {
	var zero T

	combined := predicate.Secure(scope, predicate.Raw(entsql.EQ("id", id)),
		r.principals.Current(ctx), r.typ.ReadPrivilege, r.typ.OrgColumn)
	if combined.IsAlwaysFalse() {
		return zero, fmt.Errorf("secure: %s %d: %w", r.typ.Name, id, ErrNotFound)
	}

	sel := r.selector()
	combined.Apply(sel)
	sel.Limit(1)

	all, err := r.queryAll(ctx, sel)
	if err != nil {
		return zero, err
	}

	if len(all) == 0 {
		return zero, fmt.Errorf("secure: %s %d: %w", r.typ.Name, id, ErrNotFound)
	}

	return all[0], nil
}

// FindByEntity re-reads the entity through the gate.
func (r *Repository[T]) FindByEntity(ctx context.Context, scope authz.SecurityScope, e T) (T, error) {
	return r.FindByID(ctx, scope, e.EntityID())
}

// FindByPredicate returns the first visible row matching p.
func (r *Repository[T]) FindByPredicate(ctx context.Context, scope authz.SecurityScope, p predicate.Predicate) (T, error) {
	var zero T

	combined := predicate.Secure(scope, p, r.principals.Current(ctx), r.typ.ReadPrivilege, r.typ.OrgColumn)
	if combined.IsAlwaysFalse() {
		return zero, fmt.Errorf("secure: %s: %w", r.typ.Name, ErrNotFound)
	}

	sel := r.selector()
	combined.Apply(sel)
	sel.OrderBy(entsql.Asc("id")).Limit(1)

	all, err := r.queryAll(ctx, sel)
	if err != nil {
		return zero, err
	}

	if len(all) == 0 {
		return zero, fmt.Errorf("secure: %s: %w", r.typ.Name, ErrNotFound)
	}

	return all[0], nil
}

// Count returns the number of visible rows matching p. The gate applies, so
// counting is not an existence side channel.
func (r *Repository[T]) Count(ctx context.Context, scope authz.SecurityScope, p predicate.Predicate) (int, error) {
	combined := predicate.Secure(scope, p, r.principals.Current(ctx), r.typ.ReadPrivilege, r.typ.OrgColumn)
	if combined.IsAlwaysFalse() {
		return 0, nil
	}

	sel := r.store.Builder().
		Select(entsql.Count("*")).
		From(entsql.Table(r.typ.Table))
	combined.Apply(sel)

	query, args := sel.Query()

	var n int
	if err := r.store.Querier(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("secure: count %s: %w", r.typ.Name, err)
	}

	return n, nil
}

// ExistsAny reports whether any visible row matches p.
func (r *Repository[T]) ExistsAny(ctx context.Context, scope authz.SecurityScope, p predicate.Predicate) (bool, error) {
	n, err := r.Count(ctx, scope, p)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// ExistsOne reports whether the entity's row exists and is visible.
func (r *Repository[T]) ExistsOne(ctx context.Context, scope authz.SecurityScope, e T) (bool, error) {
	return r.ExistsAny(ctx, scope, predicate.Raw(entsql.EQ("id", e.EntityID())))
}

// SaveOne inserts or updates the entity after the write gate passes.
func (r *Repository[T]) SaveOne(ctx context.Context, scope authz.SecurityScope, e T) (T, error) {
	var zero T

	if err := r.checkWrite(ctx, scope, e); err != nil {
		return zero, err
	}

	return r.save(ctx, e)
}

// SaveAll saves the batch atomically: every entity is gated first and all
// denials are reported together; storage is touched only when the whole batch
// passes, inside a single transaction.
func (r *Repository[T]) SaveAll(ctx context.Context, scope authz.SecurityScope, es []T) ([]T, error) {
	var denied *multierror.Error

	for _, e := range es {
		if err := r.checkWrite(ctx, scope, e); err != nil {
			denied = multierror.Append(denied, err)
		}
	}

	if err := denied.ErrorOrNil(); err != nil {
		return nil, err
	}

	saved := make([]T, 0, len(es))

	err := r.store.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, e := range es {
			out, err := r.save(ctx, e)
			if err != nil {
				return err
			}

			saved = append(saved, out)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// SaveForm loads the entity through the read gate, applies the submitted
// values through the type's form hook and saves the result.
func (r *Repository[T]) SaveForm(ctx context.Context, scope authz.SecurityScope, id int, form map[string]string) (T, error) {
	var zero T

	if r.typ.ApplyForm == nil {
		return zero, &ConfigurationError{Entity: r.typ.Name, Reason: "no form hook declared"}
	}

	e, err := r.FindByID(ctx, scope, id)
	if err != nil {
		return zero, err
	}

	e, err = r.typ.ApplyForm(e, form)
	if err != nil {
		return zero, err
	}

	return r.SaveOne(ctx, scope, e)
}

// DeleteOne deletes the entity after the write gate passes. The gate rides in
// the DELETE statement, so the stored row's organization decides writability
// and a forged entity organization cannot reach a foreign row. A row outside
// the caller's gate reports ErrNotFound, same as a row that does not exist.
func (r *Repository[T]) DeleteOne(ctx context.Context, scope authz.SecurityScope, e T) error {
	if err := r.checkWrite(ctx, scope, e); err != nil {
		return err
	}

	combined := r.writeGated(ctx, e.EntityID())
	if combined.IsAlwaysFalse() {
		return fmt.Errorf("secure: %s %d: %w", r.typ.Name, e.EntityID(), ErrNotFound)
	}

	b := r.store.Builder().
		Delete(r.typ.Table).
		Where(combined.SQL())

	query, args := b.Query()

	res, err := r.store.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("secure: delete %s %d: %w", r.typ.Name, e.EntityID(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("secure: %s %d: %w", r.typ.Name, e.EntityID(), ErrNotFound)
	}

	return nil
}

// DeleteAll deletes the rows matching p that the caller may write. The write
// gate is conjoined into the statement, so rows outside the caller's
// organizations survive untouched. Returns the number of rows deleted.
func (r *Repository[T]) DeleteAll(ctx context.Context, scope authz.SecurityScope, p predicate.Predicate) (int, error) {
	if scope.ReadOnly {
		return 0, ErrReadOnly
	}

	principal := r.principals.Current(ctx)

	combined := predicate.And(p, predicate.Gate(principal, r.typ.WritePrivilege, r.typ.OrgColumn))
	if combined.IsAlwaysFalse() {
		return 0, nil
	}

	b := r.store.Builder().Delete(r.typ.Table)
	if !combined.IsAlwaysTrue() {
		b.Where(combined.SQL())
	}

	query, args := b.Query()

	res, err := r.store.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("secure: delete %s: %w", r.typ.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	log.Debug(ctx, "secure: batch delete",
		log.String("entity", r.typ.Name),
		log.String("principal", principal.String()),
		log.Int("rows", int(n)))

	return int(n), nil
}

// checkWrite gates a single-entity write against the entity's claimed
// organization. For inserts the claim decides where the row lands; updates and
// deletes additionally carry the gate in the statement, so the stored row's
// organization stays authoritative and the claim cannot reach foreign rows.
func (r *Repository[T]) checkWrite(ctx context.Context, scope authz.SecurityScope, e T) error {
	if scope.ReadOnly {
		return ErrReadOnly
	}

	if r.typ.WritePrivilege == "" {
		return nil
	}

	p := r.principals.Current(ctx)

	if p.HasGlobalPrivilege(r.typ.WritePrivilege) {
		return nil
	}

	if te, ok := any(e).(TenantEntity); ok && r.typ.OrgColumn != "" {
		if p.HasOrgPrivilege(r.typ.WritePrivilege, te.OrganizationID()) {
			return nil
		}
	}

	return fmt.Errorf("secure: %s requires %s: %w", r.typ.Name, r.typ.WritePrivilege, ErrAccessDenied)
}

func (r *Repository[T]) save(ctx context.Context, e T) (T, error) {
	var zero T

	values := r.typ.Values(e)
	if len(values) != len(r.typ.Columns)-1 {
		return zero, &ConfigurationError{
			Entity: r.typ.Name,
			Reason: fmt.Sprintf("Values returned %d values for %d columns", len(values), len(r.typ.Columns)-1),
		}
	}

	if e.EntityID() == 0 {
		id, err := r.store.InsertID(ctx, r.store.Builder().
			Insert(r.typ.Table).
			Columns(r.typ.Columns[1:]...).
			Values(values...))
		if err != nil {
			return zero, fmt.Errorf("secure: insert %s: %w", r.typ.Name, err)
		}

		return r.rescan(ctx, id, e)
	}

	// Updates carry the write gate in the statement: the stored row's
	// organization decides writability, not the entity's claim.
	combined := r.writeGated(ctx, e.EntityID())
	if combined.IsAlwaysFalse() {
		return zero, fmt.Errorf("secure: %s %d: %w", r.typ.Name, e.EntityID(), ErrNotFound)
	}

	b := r.store.Builder().Update(r.typ.Table)
	for i, col := range r.typ.Columns[1:] {
		b.Set(col, values[i])
	}

	b.Where(combined.SQL())

	query, args := b.Query()

	res, err := r.store.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return zero, fmt.Errorf("secure: update %s %d: %w", r.typ.Name, e.EntityID(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return zero, err
	}

	if n == 0 {
		return zero, fmt.Errorf("secure: %s %d: %w", r.typ.Name, e.EntityID(), ErrNotFound)
	}

	return e, nil
}

// writeGated conjoins the row lookup with the caller's write gate.
func (r *Repository[T]) writeGated(ctx context.Context, id int) predicate.Predicate {
	gate := predicate.Gate(r.principals.Current(ctx), r.typ.WritePrivilege, r.typ.OrgColumn)
	return predicate.And(predicate.Raw(entsql.EQ("id", id)), gate)
}

// rescan re-reads a freshly inserted row so the returned entity carries its
// generated id. The write already passed the gate; the re-read bypasses it so
// a writer without the read privilege still gets its entity back.
func (r *Repository[T]) rescan(ctx context.Context, id int, fallback T) (T, error) {
	sel := r.selector()
	sel.Where(entsql.EQ("id", id))

	all, err := r.queryAll(ctx, sel)
	if err != nil || len(all) == 0 {
		return fallback, err
	}

	return all[0], nil
}

func (r *Repository[T]) selector() *entsql.Selector {
	return r.store.Builder().
		Select(r.typ.Columns...).
		From(entsql.Table(r.typ.Table))
}

// queryPredicate builds the caller-supplied part of a search.
func (r *Repository[T]) queryPredicate(q Query) (predicate.Predicate, error) {
	parts := make([]predicate.Predicate, 0, 3)

	if len(q.Terms) > 0 {
		if r.typ.SearchColumn == "" {
			return predicate.Predicate{}, fmt.Errorf("%w: %s has no search column", ErrInvalidQuery, r.typ.Name)
		}

		parts = append(parts, predicate.FreeText(r.typ.SearchColumn, q.Terms...))
	}

	if len(q.Filters) > 0 {
		p, err := predicate.FieldFilters(r.typ.Fields, q.Filters)
		if err != nil {
			return predicate.Predicate{}, err
		}

		parts = append(parts, p)
	}

	if r.typ.OrgColumn != "" {
		parts = append(parts, predicate.OrgScope(r.typ.OrgColumn, q.OrgIDs))
	}

	return predicate.And(parts...), nil
}

func (r *Repository[T]) order(sel *entsql.Selector, q Query) error {
	col := q.OrderBy
	if col == "" {
		col = "id"
	}

	if !lo.Contains(r.typ.Columns, col) {
		return fmt.Errorf("%w: cannot order %s by %q", ErrInvalidQuery, r.typ.Name, col)
	}

	if q.Desc {
		sel.OrderBy(entsql.Desc(col))
	} else {
		sel.OrderBy(entsql.Asc(col))
	}

	return nil
}

func (r *Repository[T]) queryAll(ctx context.Context, sel *entsql.Selector) ([]T, error) {
	query, args := sel.Query()

	rows, err := r.store.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("secure: query %s: %w", r.typ.Name, err)
	}
	defer rows.Close()

	out := []T{}

	for rows.Next() {
		e, err := r.typ.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("secure: scan %s: %w", r.typ.Name, err)
		}

		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// IsNotFound reports whether err is the not-found outcome. Gated-out rows and
// missing rows both satisfy it.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, store.ErrNotFound)
}

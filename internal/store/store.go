// Package store implements the authoritative account/role store over
// database/sql, using the ent sql builder for query construction. It is the
// source the staleness detector polls and the reloader reads, and it carries
// the transaction plumbing shared with the secure repository facade.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	gocache "github.com/patrickmn/go-cache"
)

// Config configures the backing database.
type Config struct {
	// Dialect is one of sqlite3, mysql, postgres.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`
	DSN     string `conf:"dsn" yaml:"dsn" json:"dsn"`
}

// Store is the authoritative account/role store.
type Store struct {
	db      *sql.DB
	dialect string

	// orgNames caches organization display names; names change rarely and
	// are not part of the staleness contract.
	orgNames *gocache.Cache
}

// Open connects to the configured database.
func Open(cfg Config) (*Store, error) {
	driver, err := driverFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Dialect, err)
	}

	return New(db, cfg.Dialect), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, d string) *Store {
	return &Store{
		db:       db,
		dialect:  d,
		orgNames: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func driverFor(d string) (string, error) {
	switch d {
	case dialect.SQLite:
		return "sqlite", nil
	case dialect.MySQL:
		return "mysql", nil
	case dialect.Postgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("store: unsupported dialect %q", d)
	}
}

// Dialect returns the SQL dialect queries are built for.
func (s *Store) Dialect() string {
	return s.dialect
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() int64 {
	return time.Now().UnixNano()
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}

// Querier is the execution surface shared by the pool and transactions.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txKey is an unexported key type for the transaction stash.
type txKey struct{}

// NewTxContext stores the transaction in the context so nested operations
// join it.
func NewTxContext(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext retrieves the active transaction, if any.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Querier returns the active transaction when one is stashed in the context,
// otherwise the pool.
func (s *Store) Querier(ctx context.Context) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}

	return s.db
}

// RunInTransaction executes fn inside a transaction, joining an existing one
// when present. The transaction is rolled back on error or panic.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()

			panic(r)
		}

		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(NewTxContext(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	committed = true

	return nil
}

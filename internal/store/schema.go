package store

import (
	"context"
	"fmt"
)

// Schema for the authoritative store. Timestamps are unix nanoseconds; the
// staleness detector compares them against a principal's snapshot time.
// Production deployments on mysql/postgres manage schema through their own
// migration tooling; Migrate covers sqlite for development and tests.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'activated',
		search_index TEXT NOT NULL DEFAULT '',
		modified_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		modified_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		org_id INTEGER,
		privileges TEXT NOT NULL DEFAULT '[]',
		modified_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_roles (
		account_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		PRIMARY KEY (account_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS organization_members (
		account_id INTEGER NOT NULL,
		org_id INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		PRIMARY KEY (account_id, org_id)
	)`,
}

// Migrate creates the authoritative-store tables.
func Migrate(ctx context.Context, s *Store) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}

	return nil
}

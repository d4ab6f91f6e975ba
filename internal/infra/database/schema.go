package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS ledger_log (
			id        BIGSERIAL PRIMARY KEY,
			logged_at TIMESTAMPTZ NOT NULL,
			message   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_members (
			snapshot    VARCHAR(64) NOT NULL,
			email       TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (snapshot, email)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_markers (
			snapshot   VARCHAR(64) PRIMARY KEY,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS ledger_log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			logged_at DATETIME NOT NULL,
			message   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_members (
			snapshot    TEXT NOT NULL,
			email       TEXT NOT NULL,
			recorded_at DATETIME NOT NULL,
			PRIMARY KEY (snapshot, email)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_markers (
			snapshot   TEXT PRIMARY KEY,
			updated_at DATETIME NOT NULL
		)`,
	},
}

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	statements, ok := schemaStatements[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", dialect)
	}

	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	for _, stmt := range statements {
		if _, err := txn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return txn.Commit()
}

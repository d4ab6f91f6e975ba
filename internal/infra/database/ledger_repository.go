// internal/infra/database/ledger_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"membership_sync/internal/domain/membership"
)

// Custom errors
var ErrSnapshotUnknown = fmt.Errorf("unknown snapshot name")

// SQLLedger stores snapshots and the operations log in PostgreSQL or SQLite.
type SQLLedger struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLLedger(db *sql.DB, dialect Dialect) *SQLLedger {
	return &SQLLedger{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLLedger) q(query string) string {
	return rebind(r.dialect, query)
}

func checkName(name membership.SnapshotName) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrSnapshotUnknown, name)
	}
	return nil
}

// --- Snapshot Methods ---

func (r *SQLLedger) ReadSnapshot(ctx context.Context, name membership.SnapshotName) (membership.Set, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.q(`SELECT email FROM snapshot_members WHERE snapshot = ?`), string(name))
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot %s: %w", name, err)
	}
	defer rows.Close()

	members := membership.NewSet()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("error scanning snapshot %s member: %w", name, err)
		}
		members.Add(membership.Email(email))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot %s: %w", name, err)
	}
	return members, nil
}

// WriteSnapshot replaces the snapshot content and marker in one transaction.
func (r *SQLLedger) WriteSnapshot(ctx context.Context, name membership.SnapshotName, members membership.Set, at time.Time) error {
	if err := checkName(name); err != nil {
		return err
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for snapshot %s: %w", name, err)
	}
	defer txn.Rollback() // Rollback if not committed

	if _, err := txn.ExecContext(ctx, r.q(`DELETE FROM snapshot_members WHERE snapshot = ?`), string(name)); err != nil {
		return fmt.Errorf("error clearing snapshot %s: %w", name, err)
	}
	if err := r.insertMembers(ctx, txn, name, members, at, `INSERT INTO snapshot_members (snapshot, email, recorded_at) VALUES (?, ?, ?)`); err != nil {
		return err
	}
	if err := r.touchMarker(ctx, txn, name, at); err != nil {
		return err
	}
	return txn.Commit()
}

// AppendSnapshot adds members that are not in the snapshot yet; existing rows keep their original timestamp.
func (r *SQLLedger) AppendSnapshot(ctx context.Context, name membership.SnapshotName, members membership.Set, at time.Time) error {
	if err := checkName(name); err != nil {
		return err
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for snapshot %s: %w", name, err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := r.insertMembers(ctx, txn, name, members, at, `INSERT INTO snapshot_members (snapshot, email, recorded_at) VALUES (?, ?, ?)
		ON CONFLICT (snapshot, email) DO NOTHING`); err != nil {
		return err
	}
	if err := r.touchMarker(ctx, txn, name, at); err != nil {
		return err
	}
	return txn.Commit()
}

func (r *SQLLedger) insertMembers(ctx context.Context, txn *sql.Tx, name membership.SnapshotName, members membership.Set, at time.Time, query string) error {
	if members.IsEmpty() {
		return nil
	}

	stmt, err := txn.PrepareContext(ctx, r.q(query))
	if err != nil {
		return fmt.Errorf("failed to prepare insert for snapshot %s: %w", name, err)
	}
	defer stmt.Close()

	// Sorted so that the insert order, and any failure, is deterministic.
	for _, email := range members.Sorted() {
		if _, err := stmt.ExecContext(ctx, string(name), string(email), at.UTC()); err != nil {
			return fmt.Errorf("error inserting %s into snapshot %s: %w", email, name, err)
		}
	}
	return nil
}

func (r *SQLLedger) touchMarker(ctx context.Context, txn *sql.Tx, name membership.SnapshotName, at time.Time) error {
	query := `INSERT INTO snapshot_markers (snapshot, updated_at) VALUES (?, ?)
		ON CONFLICT (snapshot) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := txn.ExecContext(ctx, r.q(query), string(name), at.UTC()); err != nil {
		return fmt.Errorf("error updating marker for snapshot %s: %w", name, err)
	}
	return nil
}

func (r *SQLLedger) SnapshotInfo(ctx context.Context, name membership.SnapshotName) (*membership.Snapshot, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	info := &membership.Snapshot{Name: name}
	err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM snapshot_members WHERE snapshot = ?`), string(name)).Scan(&info.Size)
	if err != nil {
		return nil, fmt.Errorf("error counting snapshot %s: %w", name, err)
	}

	err = r.db.QueryRowContext(ctx, r.q(`SELECT updated_at FROM snapshot_markers WHERE snapshot = ?`), string(name)).Scan(&info.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("error reading marker for snapshot %s: %w", name, err)
	}
	return info, nil
}

// --- Log Methods ---

func (r *SQLLedger) AppendLog(ctx context.Context, message string) error {
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO ledger_log (logged_at, message) VALUES (?, ?)`), r.now().UTC(), message)
	if err != nil {
		return fmt.Errorf("error appending log entry: %w", err)
	}
	return nil
}

// ListLog returns the most recent entries, newest first.
func (r *SQLLedger) ListLog(ctx context.Context, limit int) ([]*membership.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, logged_at, message FROM ledger_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("error listing log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*membership.LogEntry, 0)
	for rows.Next() {
		e := &membership.LogEntry{}
		if err := rows.Scan(&e.ID, &e.LoggedAt, &e.Message); err != nil {
			return nil, fmt.Errorf("error scanning log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"membership_sync/internal/domain/membership"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newSQLiteLedger(t *testing.T) *SQLLedger {
	t.Helper()
	db, dialect, err := Open("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db, dialect))
	return NewSQLLedger(db, dialect)
}

func TestSQLLedgerSnapshots(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteLedger(t)
	t0 := time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	t.Run("Unwritten Snapshot Is Empty", func(t *testing.T) {
		members, err := ledger.ReadSnapshot(ctx, membership.SnapshotRiseupPrevious)
		require.NoError(t, err)
		require.True(t, members.IsEmpty())

		info, err := ledger.SnapshotInfo(ctx, membership.SnapshotRiseupPrevious)
		require.NoError(t, err)
		require.Zero(t, info.Size)
		require.True(t, info.UpdatedAt.IsZero())
	})

	t.Run("Write Replaces Content", func(t *testing.T) {
		require.NoError(t, ledger.WriteSnapshot(ctx, membership.SnapshotRiseupPrevious, membership.NewSet("a@x.com", "b@x.com"), t0))
		require.NoError(t, ledger.WriteSnapshot(ctx, membership.SnapshotRiseupPrevious, membership.NewSet("a@x.com"), t1))

		members, err := ledger.ReadSnapshot(ctx, membership.SnapshotRiseupPrevious)
		require.NoError(t, err)
		require.Equal(t, []string{"a@x.com"}, members.Strings())

		info, err := ledger.SnapshotInfo(ctx, membership.SnapshotRiseupPrevious)
		require.NoError(t, err)
		require.Equal(t, 1, info.Size)
		require.True(t, t1.Equal(info.UpdatedAt), "marker %v", info.UpdatedAt)
	})

	t.Run("Write Of Empty Set Clears Snapshot And Updates Marker", func(t *testing.T) {
		require.NoError(t, ledger.WriteSnapshot(ctx, membership.SnapshotAggregatedMasterList, membership.NewSet("z@x.com"), t0))
		require.NoError(t, ledger.WriteSnapshot(ctx, membership.SnapshotAggregatedMasterList, membership.NewSet(), t1))

		info, err := ledger.SnapshotInfo(ctx, membership.SnapshotAggregatedMasterList)
		require.NoError(t, err)
		require.Zero(t, info.Size)
		require.True(t, t1.Equal(info.UpdatedAt))
	})

	t.Run("Append Grows Without Duplicates", func(t *testing.T) {
		require.NoError(t, ledger.AppendSnapshot(ctx, membership.SnapshotZohoAdditionsSeen, membership.NewSet("a@x.com"), t0))
		require.NoError(t, ledger.AppendSnapshot(ctx, membership.SnapshotZohoAdditionsSeen, membership.NewSet("a@x.com", "b@x.com"), t1))

		members, err := ledger.ReadSnapshot(ctx, membership.SnapshotZohoAdditionsSeen)
		require.NoError(t, err)
		require.Equal(t, []string{"a@x.com", "b@x.com"}, members.Strings())

		var recordedAt time.Time
		err = ledger.db.QueryRowContext(ctx,
			`SELECT recorded_at FROM snapshot_members WHERE snapshot = ? AND email = ?`,
			string(membership.SnapshotZohoAdditionsSeen), "a@x.com").Scan(&recordedAt)
		require.NoError(t, err)
		require.True(t, t0.Equal(recordedAt), "first-seen timestamp is kept")
	})

	t.Run("Snapshots Are Independent", func(t *testing.T) {
		members, err := ledger.ReadSnapshot(ctx, membership.SnapshotRiseupUnsubscribed)
		require.NoError(t, err)
		require.True(t, members.IsEmpty())
	})

	t.Run("Unknown Snapshot", func(t *testing.T) {
		_, err := ledger.ReadSnapshot(ctx, "sheet1")
		require.ErrorIs(t, err, ErrSnapshotUnknown)
		require.ErrorIs(t, ledger.WriteSnapshot(ctx, "sheet1", membership.NewSet(), t0), ErrSnapshotUnknown)
	})
}

func TestSQLLedgerLog(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteLedger(t)
	ledger.now = func() time.Time { return time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC) }

	require.NoError(t, ledger.AppendLog(ctx, "Added 1 from Zoho"))
	require.NoError(t, ledger.AppendLog(ctx, "Found 2 unsubscribed from Riseup"))

	entries, err := ledger.ListLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Found 2 unsubscribed from Riseup", entries[0].Message)
	require.Equal(t, "Added 1 from Zoho", entries[1].Message)
	require.Equal(t, 2026, entries[0].LoggedAt.Year())

	entries, err = ledger.ListLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSQLLedgerWriteRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ledger := NewSQLLedger(db, DialectPostgres)
	at := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM snapshot_members").
		WithArgs("riseupPrevious").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectPrepare("INSERT INTO snapshot_members")
	mock.ExpectExec("INSERT INTO snapshot_members").
		WithArgs("riseupPrevious", "a@x.com", at).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = ledger.WriteSnapshot(context.Background(), membership.SnapshotRiseupPrevious, membership.NewSet("a@x.com"), at)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLedgerInfoWithoutMarker(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ledger := NewSQLLedger(db, DialectPostgres)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM snapshot_members`).
		WithArgs("aggregatedMasterList").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT updated_at FROM snapshot_markers").
		WithArgs("aggregatedMasterList").
		WillReturnError(sql.ErrNoRows)

	info, err := ledger.SnapshotInfo(context.Background(), membership.SnapshotAggregatedMasterList)
	require.NoError(t, err)
	require.Equal(t, 3, info.Size)
	require.True(t, info.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	require.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", rebind(DialectPostgres, "SELECT a FROM t WHERE b = ? AND c = ?"))
	require.Equal(t, "SELECT a FROM t WHERE b = ?", rebind(DialectSQLite, "SELECT a FROM t WHERE b = ?"))
}

func TestParseDatabaseURL(t *testing.T) {
	dialect, dsn, err := ParseDatabaseURL("postgres://u:p@localhost/listsync")
	require.NoError(t, err)
	require.Equal(t, DialectPostgres, dialect)
	require.Equal(t, "postgres://u:p@localhost/listsync", dsn)

	dialect, dsn, err = ParseDatabaseURL("sqlite:///var/lib/listsync/ledger.db")
	require.NoError(t, err)
	require.Equal(t, DialectSQLite, dialect)
	require.Equal(t, "/var/lib/listsync/ledger.db", dsn)

	dialect, dsn, err = ParseDatabaseURL("host=localhost port=5432 dbname=listsync sslmode=disable")
	require.NoError(t, err)
	require.Equal(t, DialectPostgres, dialect)
	require.Equal(t, "host=localhost port=5432 dbname=listsync sslmode=disable", dsn)

	_, _, err = ParseDatabaseURL("mysql://u:secret@db/listsync")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "secret")

	_, _, err = ParseDatabaseURL("")
	require.Error(t, err)
}

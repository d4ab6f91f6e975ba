// internal/domain/membership/snapshot.go
package membership

import "time"

// SnapshotName identifies one of the persisted membership sets.
type SnapshotName string

const (
	SnapshotZohoAdditionsSeen    SnapshotName = "zohoAdditionsSeen"
	SnapshotRiseupPrevious       SnapshotName = "riseupPrevious"
	SnapshotRiseupUnsubscribed   SnapshotName = "riseupUnsubscribed"
	SnapshotAggregatedMasterList SnapshotName = "aggregatedMasterList"
)

// AllSnapshots lists every tracked snapshot in reporting order.
var AllSnapshots = []SnapshotName{
	SnapshotZohoAdditionsSeen,
	SnapshotRiseupPrevious,
	SnapshotRiseupUnsubscribed,
	SnapshotAggregatedMasterList,
}

// Valid reports whether n is one of the tracked snapshots.
func (n SnapshotName) Valid() bool {
	for _, known := range AllSnapshots {
		if n == known {
			return true
		}
	}
	return false
}

// Snapshot summarises a persisted set. UpdatedAt is zero if the snapshot was never written.
type Snapshot struct {
	Name      SnapshotName
	Size      int
	UpdatedAt time.Time
}

// LogEntry is one line of the append-only operations log.
type LogEntry struct {
	ID       int64
	LoggedAt time.Time
	Message  string
}

// internal/domain/membership/repository.go
package membership

import (
	"context"
	"time"
)

// Ledger is the system's own record of previously observed membership state.
// Implementations must make each write atomic: a reader sees either the old or the new content.
type Ledger interface {
	ReadSnapshot(ctx context.Context, name SnapshotName) (Set, error)
	// WriteSnapshot replaces the whole snapshot and sets its last-updated marker to at.
	WriteSnapshot(ctx context.Context, name SnapshotName, members Set, at time.Time) error
	// AppendSnapshot adds members, each stamped with at, and sets the marker to at.
	AppendSnapshot(ctx context.Context, name SnapshotName, members Set, at time.Time) error
	AppendLog(ctx context.Context, message string) error

	// SnapshotInfo and ListLog are read-only views used for status reporting.
	SnapshotInfo(ctx context.Context, name SnapshotName) (*Snapshot, error)
	ListLog(ctx context.Context, limit int) ([]*LogEntry, error)
}

// Source yields the deduplicated set of addresses the CRM wants on the list.
type Source interface {
	FetchMemberEmails(ctx context.Context) (Set, error)
}

// SessionToken is an opaque name=value cookie pair proving an authenticated session
// with the mailing-list host. It is obtained fresh on every run and never persisted.
type SessionToken string

func (t SessionToken) String() string { return string(t) }

// SessionAuthenticator performs the mailing-list login handshake.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (SessionToken, error)
}

// SubscriberFetcher downloads the current subscriber set using an authenticated session.
type SubscriberFetcher interface {
	FetchSubscribers(ctx context.Context, session SessionToken) (Set, error)
}

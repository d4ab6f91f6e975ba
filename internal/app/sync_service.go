// internal/app/sync_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"membership_sync/internal/domain/membership"
	"membership_sync/internal/domain/syncerr"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned when a run is requested while another one is still going.
var ErrRunInProgress = errors.New("a reconciliation run is already in progress")

// Reporter is a side channel notified of run outcomes. Failures to report are logged, never fatal.
type Reporter interface {
	ReportRun(ctx context.Context, report *RunReport) error
	ReportFailure(ctx context.Context, err error) error
}

// NopReporter drops every report.
type NopReporter struct{}

func (NopReporter) ReportRun(context.Context, *RunReport) error { return nil }
func (NopReporter) ReportFailure(context.Context, error) error  { return nil }

// MailingListCredentials are the list owner's login for the mailing-list host.
type MailingListCredentials struct {
	Username string
	Password string
}

// RunReport describes what one reconciliation run observed and changed.
type RunReport struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	NewMembers       membership.Set
	Unsubscribed     membership.Set
	CurrentListSize  int
	AggregateSize    int
	AggregateChanged bool
}

// HasChanges reports whether any delta was non-empty.
func (r *RunReport) HasChanges() bool {
	return !r.NewMembers.IsEmpty() || !r.Unsubscribed.IsEmpty() || r.AggregateChanged
}

// Messages returns one log line per non-empty delta, in the order they were applied.
func (r *RunReport) Messages() []string {
	var msgs []string
	if n := r.NewMembers.Len(); n > 0 {
		msgs = append(msgs, newMembersMessage(n))
	}
	if n := r.Unsubscribed.Len(); n > 0 {
		msgs = append(msgs, unsubscribedMessage(n))
	}
	if r.AggregateChanged {
		msgs = append(msgs, aggregateMessage(r.AggregateSize))
	}
	return msgs
}

func newMembersMessage(n int) string   { return fmt.Sprintf("Added %d from Zoho", n) }
func unsubscribedMessage(n int) string { return fmt.Sprintf("Found %d unsubscribed from Riseup", n) }
func aggregateMessage(n int) string    { return fmt.Sprintf("Aggregated master list now has %d members", n) }

// SyncService reconciles the CRM, the mailing list and the ledger.
type SyncService struct {
	ledger      membership.Ledger
	crm         membership.Source
	sessions    membership.SessionAuthenticator
	subscribers membership.SubscriberFetcher
	creds       MailingListCredentials
	reporter    Reporter
	logger      *logrus.Entry
	now         func() time.Time

	runMu sync.Mutex
}

func NewSyncService(
	ledger membership.Ledger,
	crm membership.Source,
	sessions membership.SessionAuthenticator,
	subscribers membership.SubscriberFetcher,
	creds MailingListCredentials,
	reporter Reporter,
	logger *logrus.Entry,
) *SyncService {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &SyncService{
		ledger:      ledger,
		crm:         crm,
		sessions:    sessions,
		subscribers: subscribers,
		creds:       creds,
		reporter:    reporter,
		logger:      logger.WithField("component", "sync"),
		now:         time.Now,
	}
}

// Run performs one reconciliation. Only one run executes at a time; a
// concurrent call returns ErrRunInProgress without touching anything.
func (s *SyncService) Run(ctx context.Context) (*RunReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	report, err := s.run(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("kind", syncerr.Kind(err)).Error("Reconciliation run failed")
		// The run context may already be past its deadline.
		if rerr := s.reporter.ReportFailure(context.WithoutCancel(ctx), err); rerr != nil {
			s.logger.WithError(rerr).Warn("Failed to report run failure")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"new_members":       report.NewMembers.Len(),
		"unsubscribed":      report.Unsubscribed.Len(),
		"current_list_size": report.CurrentListSize,
		"aggregate_size":    report.AggregateSize,
		"aggregate_changed": report.AggregateChanged,
		"duration":          report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Reconciliation run finished")

	if report.HasChanges() {
		if rerr := s.reporter.ReportRun(ctx, report); rerr != nil {
			s.logger.WithError(rerr).Warn("Failed to report run result")
		}
	}
	return report, nil
}

func (s *SyncService) run(ctx context.Context) (*RunReport, error) {
	at := s.now()
	report := &RunReport{StartedAt: at}

	snapshots, err := s.readSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	recorded := snapshots[membership.SnapshotZohoAdditionsSeen]
	previous := snapshots[membership.SnapshotRiseupPrevious]
	unsubscribed := snapshots[membership.SnapshotRiseupUnsubscribed]
	aggregate := snapshots[membership.SnapshotAggregatedMasterList]

	// 1. New members from the CRM.
	crmMembers, err := s.crm.FetchMemberEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CRM members: %w", err)
	}
	report.NewMembers = membership.NewMembers(crmMembers, recorded)
	if !report.NewMembers.IsEmpty() {
		if err := s.ledger.AppendSnapshot(ctx, membership.SnapshotZohoAdditionsSeen, report.NewMembers, at); err != nil {
			return nil, err
		}
		if err := s.appendLog(ctx, newMembersMessage(report.NewMembers.Len())); err != nil {
			return nil, err
		}
		recorded = recorded.Union(report.NewMembers)
	}

	// 2. Unsubscribes from the mailing list.
	session, err := s.sessions.Authenticate(ctx, s.creds.Username, s.creds.Password)
	if err != nil {
		return nil, err
	}
	current, err := s.subscribers.FetchSubscribers(ctx, session)
	if err != nil {
		return nil, err
	}
	report.CurrentListSize = current.Len()
	report.Unsubscribed = membership.Unsubscribed(previous, current, unsubscribed)

	// The two writes touch different snapshots and are both computed from
	// in-memory values, so they can go out together.
	g, gctx := errgroup.WithContext(ctx)
	if !report.Unsubscribed.IsEmpty() {
		g.Go(func() error {
			if err := s.ledger.AppendSnapshot(gctx, membership.SnapshotRiseupUnsubscribed, report.Unsubscribed, at); err != nil {
				return err
			}
			return s.appendLog(gctx, unsubscribedMessage(report.Unsubscribed.Len()))
		})
	}
	g.Go(func() error {
		// A cache of the last observed list, overwritten on every run.
		return s.ledger.WriteSnapshot(gctx, membership.SnapshotRiseupPrevious, current, at)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	unsubscribed = unsubscribed.Union(report.Unsubscribed)

	// 3. Aggregate, from the same in-memory sets just written.
	candidate, changed := membership.Aggregate(recorded, current, unsubscribed, aggregate)
	report.AggregateSize = candidate.Len()
	report.AggregateChanged = changed
	if changed {
		if err := s.ledger.WriteSnapshot(ctx, membership.SnapshotAggregatedMasterList, candidate, at); err != nil {
			return nil, err
		}
		if err := s.appendLog(ctx, aggregateMessage(candidate.Len())); err != nil {
			return nil, err
		}
	}

	report.FinishedAt = s.now()
	return report, nil
}

func (s *SyncService) readSnapshots(ctx context.Context) (map[membership.SnapshotName]membership.Set, error) {
	out := make(map[membership.SnapshotName]membership.Set, len(membership.AllSnapshots))
	for _, name := range membership.AllSnapshots {
		set, err := s.ledger.ReadSnapshot(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
		}
		out[name] = set
	}
	return out, nil
}

func (s *SyncService) appendLog(ctx context.Context, message string) error {
	s.logger.Info(message)
	if err := s.ledger.AppendLog(ctx, message); err != nil {
		return fmt.Errorf("failed to append ledger log: %w", err)
	}
	return nil
}

// Status summarises every snapshot and the most recent log entries.
func (s *SyncService) Status(ctx context.Context, logLimit int) ([]*membership.Snapshot, []*membership.LogEntry, error) {
	snapshots := make([]*membership.Snapshot, 0, len(membership.AllSnapshots))
	for _, name := range membership.AllSnapshots {
		info, err := s.ledger.SnapshotInfo(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		snapshots = append(snapshots, info)
	}

	entries, err := s.ledger.ListLog(ctx, logLimit)
	if err != nil {
		return nil, nil, err
	}
	return snapshots, entries, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership_sync/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SyncRunner runs one reconciliation.
type SyncRunner interface {
	Run(ctx context.Context) (*app.RunReport, error)
}

type SyncScheduler struct {
	cronEngine *cron.Cron
	runner     SyncRunner
	logger     *logrus.Entry
	cronSpec   string
	runTimeout time.Duration
}

func NewSyncScheduler(
	runner SyncRunner,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 6 * * *" (06:00 daily)
	runTimeout time.Duration,
) *SyncScheduler {
	return &SyncScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		runner:     runner,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

// Start registers the sync job and starts the cron engine.
func (s *SyncScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting sync scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runOnce); err != nil {
		return fmt.Errorf("could not add sync cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Sync scheduler started.")
	return nil
}

func (s *SyncScheduler) runOnce() {
	s.logger.Info("Cron job triggered for membership sync.")
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	_, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		s.logger.Warn("Previous sync still running, skipping this tick.")
	case err != nil:
		// Already logged and reported by the sync service.
		s.logger.WithError(err).Debug("Scheduled sync failed")
	}
}

func (s *SyncScheduler) Stop() {
	s.logger.Info("Stopping sync scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Sync scheduler gracefully stopped.")
}

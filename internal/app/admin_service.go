package app

import (
	"context"
	"fmt"

	"membership_sync/internal/domain/membership"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

const statusLogLimit = 5

// Runner is the part of SyncService the admin commands drive.
type Runner interface {
	Run(ctx context.Context) (*RunReport, error)
	Status(ctx context.Context, logLimit int) ([]*membership.Snapshot, []*membership.LogEntry, error)
}

// AdminService gates manual operations behind the configured admin identity.
type AdminService struct {
	runner          Runner
	adminTelegramID int64
}

func NewAdminService(runner Runner, adminID int64) *AdminService {
	return &AdminService{
		runner:          runner,
		adminTelegramID: adminID,
	}
}

// TriggerSync runs a reconciliation on behalf of an admin.
func (s *AdminService) TriggerSync(ctx context.Context, performingAdminID int64) (*RunReport, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	return s.runner.Run(ctx)
}

// Status returns snapshot sizes and the latest log entries.
func (s *AdminService) Status(ctx context.Context, performingAdminID int64) ([]*membership.Snapshot, []*membership.LogEntry, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, nil, ErrAdminNotAuthorized
	}
	snapshots, entries, err := s.runner.Status(ctx, statusLogLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load status: %w", err)
	}
	return snapshots, entries, nil
}

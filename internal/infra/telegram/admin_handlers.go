package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership_sync/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers the /sync and /status commands.
// Both are restricted to the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, runTimeout time.Duration, baseLogger *logrus.Entry) {
	b.Handle("/sync", syncHandler(ctx, adminService, adminTelegramID, runTimeout, baseLogger))
	b.Handle("/status", statusHandler(ctx, adminService, adminTelegramID, baseLogger))
}

func syncHandler(ctx context.Context, adminService *app.AdminService, adminTelegramID int64, runTimeout time.Duration, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sync",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		if err := c.Send("Sync started."); err != nil {
			handlerLogger.WithError(err).Warn("Failed to acknowledge command")
		}

		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		report, err := adminService.TriggerSync(runCtx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(unauthorizedReply)
			case errors.Is(err, app.ErrRunInProgress):
				logWithError.Info("Sync already running")
				return c.Send("A sync is already running, try again later.")
			default:
				// The failure itself is delivered by the reporter.
				logWithError.Error("Manual sync failed")
				return nil
			}
		}

		handlerLogger.WithField("has_changes", report.HasChanges()).Info("Manual sync finished")
		if !report.HasChanges() {
			return c.Send(fmt.Sprintf("Sync finished, nothing changed. Current list size: %d.", report.CurrentListSize))
		}
		// Non-empty reports were already sent by the reporter.
		return nil
	}
}

func statusHandler(ctx context.Context, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/status",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		snapshots, entries, err := adminService.Status(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(unauthorizedReply)
			}
			logWithError.Error("Failed to load status")
			return c.Send(fmt.Sprintf("Failed to load status: %s", err.Error()))
		}

		handlerLogger.WithField("log_entries", len(entries)).Info("Status sent")
		return c.Send(truncate(formatStatus(snapshots, entries)))
	}
}

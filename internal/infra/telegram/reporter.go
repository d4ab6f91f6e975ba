// internal/infra/telegram/reporter.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"membership_sync/internal/app"
	"membership_sync/internal/domain/membership"
	"membership_sync/internal/domain/syncerr"
	domaintelegram "membership_sync/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Telegram rejects messages longer than this.
const maxMessageLength = 4096

// Reporter forwards run results and failures to the admin chat.
type Reporter struct {
	client  domaintelegram.Client
	adminID int64
	logger  *logrus.Entry
}

var _ app.Reporter = (*Reporter)(nil)

func NewReporter(client domaintelegram.Client, adminID int64, logger *logrus.Entry) *Reporter {
	return &Reporter{
		client:  client,
		adminID: adminID,
		logger:  logger.WithField("component", "telegram_reporter"),
	}
}

func (r *Reporter) ReportRun(_ context.Context, report *app.RunReport) error {
	return r.send(formatRunReport(report))
}

func (r *Reporter) ReportFailure(_ context.Context, err error) error {
	return r.send(formatFailure(err))
}

func (r *Reporter) send(text string) error {
	if err := r.client.SendMessage(r.adminID, truncate(text), &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		r.logger.WithError(err).WithField("admin_id", r.adminID).Error("Failed to send report")
		return fmt.Errorf("failed to send report to admin %d: %w", r.adminID, err)
	}
	return nil
}

func formatRunReport(report *app.RunReport) string {
	var b strings.Builder
	b.WriteString("Membership sync finished\n")
	for _, msg := range report.Messages() {
		b.WriteString("- ")
		b.WriteString(msg)
		b.WriteString("\n")
	}
	writeEmails(&b, "New members", report.NewMembers)
	writeEmails(&b, "Unsubscribed", report.Unsubscribed)
	fmt.Fprintf(&b, "Current list size: %d", report.CurrentListSize)
	return b.String()
}

func writeEmails(b *strings.Builder, title string, set membership.Set) {
	if set.IsEmpty() {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, e := range set.Strings() {
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func formatFailure(err error) string {
	return fmt.Sprintf("Membership sync failed (%s)\n%s", syncerr.Kind(err), err.Error())
}

func formatStatus(snapshots []*membership.Snapshot, entries []*membership.LogEntry) string {
	var b strings.Builder
	b.WriteString("Snapshots:\n")
	for _, s := range snapshots {
		updated := "never"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s: %d (updated %s)\n", s.Name, s.Size, updated)
	}
	if len(entries) == 0 {
		b.WriteString("\nLog is empty.")
		return b.String()
	}
	b.WriteString("\nRecent log:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", e.LoggedAt.Format(time.RFC3339), e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "\n..."
	cut := maxMessageLength - len(suffix)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

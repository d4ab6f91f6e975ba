package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"membership_sync/internal/app"
	"membership_sync/internal/domain/membership"
	"membership_sync/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

// fakeContext implements the parts of telebot.Context the handlers use.
type fakeContext struct {
	telebot.Context
	sender *telebot.User
	sent   []string
}

func (c *fakeContext) Sender() *telebot.User { return c.sender }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

type stubRunner struct {
	report *app.RunReport
	err    error
	runs   int
}

func (r *stubRunner) Run(context.Context) (*app.RunReport, error) {
	r.runs++
	return r.report, r.err
}

func (r *stubRunner) Status(context.Context, int) ([]*membership.Snapshot, []*membership.LogEntry, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	return []*membership.Snapshot{{Name: membership.SnapshotAggregatedMasterList, Size: 4}}, nil, nil
}

const adminID int64 = 42

func TestSyncHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects Non Admin", func(t *testing.T) {
		runner := &stubRunner{}
		h := syncHandler(ctx, app.NewAdminService(runner, adminID), adminID, time.Minute, logger.Discard())
		c := &fakeContext{sender: &telebot.User{ID: 7}}

		require.NoError(t, h(c))
		assert.Equal(t, []string{unauthorizedReply}, c.sent)
		assert.Zero(t, runner.runs)
	})

	t.Run("No Changes", func(t *testing.T) {
		runner := &stubRunner{report: &app.RunReport{CurrentListSize: 3}}
		h := syncHandler(ctx, app.NewAdminService(runner, adminID), adminID, time.Minute, logger.Discard())
		c := &fakeContext{sender: &telebot.User{ID: adminID}}

		require.NoError(t, h(c))
		assert.Equal(t, 1, runner.runs)
		require.Len(t, c.sent, 2)
		assert.Equal(t, "Sync finished, nothing changed. Current list size: 3.", c.sent[1])
	})

	t.Run("Changes Are Left To The Reporter", func(t *testing.T) {
		runner := &stubRunner{report: &app.RunReport{NewMembers: membership.NewSet("a@x.com")}}
		h := syncHandler(ctx, app.NewAdminService(runner, adminID), adminID, time.Minute, logger.Discard())
		c := &fakeContext{sender: &telebot.User{ID: adminID}}

		require.NoError(t, h(c))
		assert.Equal(t, []string{"Sync started."}, c.sent)
	})

	t.Run("Run In Progress", func(t *testing.T) {
		runner := &stubRunner{err: app.ErrRunInProgress}
		h := syncHandler(ctx, app.NewAdminService(runner, adminID), adminID, time.Minute, logger.Discard())
		c := &fakeContext{sender: &telebot.User{ID: adminID}}

		require.NoError(t, h(c))
		assert.Equal(t, "A sync is already running, try again later.", c.sent[len(c.sent)-1])
	})
}

func TestStatusHandler(t *testing.T) {
	ctx := context.Background()

	runner := &stubRunner{}
	h := statusHandler(ctx, app.NewAdminService(runner, adminID), adminID, logger.Discard())
	c := &fakeContext{sender: &telebot.User{ID: adminID}}
	require.NoError(t, h(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "aggregatedMasterList: 4")

	failing := statusHandler(ctx, app.NewAdminService(&stubRunner{err: errors.New("db down")}, adminID), adminID, logger.Discard())
	c = &fakeContext{sender: &telebot.User{ID: adminID}}
	require.NoError(t, failing(c))
	assert.Contains(t, c.sent[0], "db down")

	c = &fakeContext{sender: &telebot.User{ID: 1}}
	require.NoError(t, h(c))
	assert.Equal(t, []string{unauthorizedReply}, c.sent)
}

func TestHelpHandler(t *testing.T) {
	h := helpHandler(adminID, logger.Discard())

	c := &fakeContext{sender: &telebot.User{ID: adminID}}
	require.NoError(t, h(c))
	assert.Contains(t, c.sent[0], "/sync")

	c = &fakeContext{sender: &telebot.User{ID: 1}}
	require.NoError(t, h(c))
	assert.Equal(t, []string{"No commands are available to you."}, c.sent)
}

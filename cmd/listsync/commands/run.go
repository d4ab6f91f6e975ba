package commands

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one reconciliation and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var bot *telebot.Bot
		if e.cfg.TelegramEnabled() {
			if bot, err = newBot(e.cfg, e.log, true); err != nil {
				return err
			}
		}

		svc, err := newSyncService(e, reporterFor(e, bot))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.RunTimeout)
		defer cancel()

		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"has_changes":    report.HasChanges(),
			"aggregate_size": report.AggregateSize,
		}).Info("Done")
		return nil
	},
}

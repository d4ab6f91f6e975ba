package commands

import (
	"os"
	"os/signal"
	"syscall"

	"membership_sync/internal/app"
	"membership_sync/internal/infra/scheduler"
	"membership_sync/internal/infra/telegram"

	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs reconciliations on the cron schedule and serves Telegram admin commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var bot *telebot.Bot
		if e.cfg.TelegramEnabled() {
			if bot, err = newBot(e.cfg, e.log, false); err != nil {
				return err
			}
		}

		syncService, err := newSyncService(e, reporterFor(e, bot))
		if err != nil {
			return err
		}

		syncScheduler := scheduler.NewSyncScheduler(syncService, e.log, e.cfg.CronSpec, e.cfg.RunTimeout)
		if err := syncScheduler.Start(); err != nil {
			return err
		}

		if bot != nil {
			adminService := app.NewAdminService(syncService, e.cfg.AdminTelegramID)
			telegram.RegisterBotCommands(bot, e.cfg.AdminTelegramID, e.log)
			telegram.RegisterAdminHandlers(ctx, bot, adminService, e.cfg.AdminTelegramID, e.cfg.RunTimeout, e.log)
			e.log.Info("Telegram command handlers registered.")

			// Start bot in a goroutine so it doesn't block graceful shutdown handling
			go bot.Start()
		}

		e.log.Info("Application setup complete. Scheduler is running.")

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit // Block until a signal is received

		e.log.Info("Shutting down application...")
		if bot != nil {
			bot.Stop()
		}
		syncScheduler.Stop()
		e.log.Info("Application shut down gracefully.")
		return nil
	},
}

// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	b.Handle("/start", startHandler(adminTelegramID, baseLogger))
	b.Handle("/help", helpHandler(adminTelegramID, baseLogger))
}

func startHandler(adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello %s! Sync reports will be sent here. Use /help for the list of commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("This bot reports membership sync runs to its administrator only.")
	}
}

func helpHandler(adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available to you.")
		}

		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/sync`\n - Run a membership sync now.\n\n")
		helpText.WriteString("`/status`\n - Show snapshot sizes and the latest log entries.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}

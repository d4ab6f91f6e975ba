package telegram

import "gopkg.in/telebot.v3"

// Client sends a message to a Telegram chat. Reporting depends on this
// rather than on *telebot.Bot so it can run without a live bot.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

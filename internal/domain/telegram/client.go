package telegram

// Client defines an interface for sending messages via a Telegram bot.
// This keeps the application logic independent of the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}

package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, managerTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")
		return c.Send(startText(senderID, managerTelegramID, c.Sender().FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")
		if senderID == managerTelegramID {
			return c.Send(helpText(senderID, managerTelegramID), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send(helpText(senderID, managerTelegramID))
	})
}

func startText(senderID, managerTelegramID int64, firstName string) string {
	if senderID == managerTelegramID {
		return "Hi " + firstName + "! Payroll digests will arrive here. Use /help for the command list."
	}
	return "Hi! This bot only serves the school's payroll manager."
}

func helpText(senderID, managerTelegramID int64) string {
	if senderID != managerTelegramID {
		return "No commands are available to you."
	}
	var help strings.Builder
	help.WriteString("Manager commands:\n\n")
	help.WriteString("`/payroll <YYYY-MM-DD> <YYYY-MM-DD> [coachID]`\n - Send the payroll digest for an inclusive date range.\n\n")
	help.WriteString("`/quote <classID> [YYYY-MM-DD]`\n - Quote tuition for joining a class on a date (default today).\n\n")
	help.WriteString("`/help`\n - Show this message.")
	return help.String()
}

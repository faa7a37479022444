package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"school_portal_core/internal/app"
	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/payroll"
	"school_portal_core/internal/domain/pricing"
	"school_portal_core/internal/domain/term"
)

// PayrollDigester sends a payroll digest to the manager chat.
type PayrollDigester interface {
	SendDigest(ctx context.Context, req app.PayrollRequest) (payroll.Report, error)
}

// Quoter prices a class for a join date.
type Quoter interface {
	QuoteForClass(ctx context.Context, classID string, asOf time.Time) (pricing.Quote, error)
}

const unauthorizedText = "Error: you are not allowed to run this command."

// RegisterManagerHandlers registers the manager-only commands.
func RegisterManagerHandlers(ctx context.Context, b *telebot.Bot, digester PayrollDigester, quoter Quoter, managerTelegramID int64, baseLogger *logrus.Entry) {
	h := &managerHandlers{
		digester:  digester,
		quoter:    quoter,
		managerID: managerTelegramID,
		logger:    baseLogger,
		now:       time.Now,
	}
	b.Handle("/payroll", func(c telebot.Context) error {
		return c.Send(h.payroll(ctx, c.Sender().ID, c.Args()))
	})
	b.Handle("/quote", func(c telebot.Context) error {
		return c.Send(h.quote(ctx, c.Sender().ID, c.Args()))
	})
}

type managerHandlers struct {
	digester  PayrollDigester
	quoter    Quoter
	managerID int64
	logger    *logrus.Entry
	now       func() time.Time
}

// payroll returns the chat reply. The digest itself is delivered by the
// digester, so the reply only confirms it.
func (h *managerHandlers) payroll(ctx context.Context, senderID int64, args []string) string {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   "/payroll",
		"sender_id": senderID,
	})
	handlerLogger.Info("Command received")

	if senderID != h.managerID {
		handlerLogger.Warn("Unauthorized access attempt")
		return unauthorizedText
	}
	// Expected format: /payroll <start> <end> [coachID]
	if len(args) < 2 || len(args) > 3 {
		handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
		return "Invalid format. Use: /payroll <YYYY-MM-DD> <YYYY-MM-DD> [coachID]"
	}
	req := app.PayrollRequest{StartDate: args[0], EndDate: args[1]}
	if len(args) == 3 {
		req.CoachID = args[2]
	}
	handlerLogger = handlerLogger.WithFields(logrus.Fields{"start": req.StartDate, "end": req.EndDate, "coach_id": req.CoachID})

	report, err := h.digester.SendDigest(ctx, req)
	if err != nil {
		logWithError := handlerLogger.WithError(err)
		if apperr.Is(err, apperr.KindValidation) {
			logWithError.Warn("Invalid payroll request")
			return "Error: " + err.Error()
		}
		logWithError.Error("Failed to send payroll digest")
		return "Could not build the payroll digest. Please try again later."
	}
	handlerLogger.WithField("sessions", report.Totals.SessionCount).Info("Payroll digest sent")
	return fmt.Sprintf("Digest sent: %d sessions, $%s.", report.Totals.SessionCount, report.Totals.TotalPay.StringFixed(2))
}

func (h *managerHandlers) quote(ctx context.Context, senderID int64, args []string) string {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   "/quote",
		"sender_id": senderID,
	})
	handlerLogger.Info("Command received")

	if senderID != h.managerID {
		handlerLogger.Warn("Unauthorized access attempt")
		return unauthorizedText
	}
	if len(args) < 1 || len(args) > 2 {
		return "Invalid format. Use: /quote <classID> [YYYY-MM-DD]"
	}
	asOf := h.now()
	if len(args) == 2 {
		d, err := term.ParseDate(args[1])
		if err != nil {
			return "Error: the date must be YYYY-MM-DD."
		}
		asOf = d
	}

	q, err := h.quoter.QuoteForClass(ctx, args[0], asOf)
	if err != nil {
		logWithError := handlerLogger.WithError(err)
		switch apperr.KindOf(err) {
		case apperr.KindNotFound, apperr.KindValidation:
			logWithError.Warn("Quote rejected")
			return "Error: " + err.Error()
		default:
			logWithError.Error("Failed to quote class")
			return "Could not price this class. Please try again later."
		}
	}
	if !q.Prorated() {
		return fmt.Sprintf("%s: $%d (full term, %d weeks).", q.Tier.Key, q.Price, q.TotalWeeks)
	}
	return fmt.Sprintf("%s: $%d for %d of %d weeks (full price $%d).",
		q.Tier.Key, q.Price, q.RemainingWeeks, q.TotalWeeks, q.FullPrice)
}

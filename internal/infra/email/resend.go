package email

import (
	"context"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
)

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	log    *logrus.Entry
}

// NewResendSender creates a new ResendSender with the given API key and default from address.
func NewResendSender(apiKey, from string, log *logrus.Entry) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		log:    log,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (Result, error) {
	if err := Validate(msg); err != nil {
		return Result{}, err
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return Result{}, apperr.Upstream("resend", err)
	}

	s.log.WithFields(logrus.Fields{"message_id": sent.Id, "subject": msg.Subject}).Debug("Email sent via Resend")
	return Result{MessageID: sent.Id, SentAt: time.Now()}, nil
}

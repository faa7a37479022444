package email

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender sends emails via the SendGrid v3 mail API.
type SendgridSender struct {
	key  string
	host string
	from *sgmail.Email
	log  *logrus.Entry
}

// NewSendgridSender parses from as an RFC 5322 address ("Name <addr>").
func NewSendgridSender(apiKey, from string, log *logrus.Entry) (*SendgridSender, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	return &SendgridSender{
		key:  apiKey,
		host: sendgridHost,
		from: sgmail.NewEmail(addr.Name, addr.Address),
		log:  log,
	}, nil
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	if msg.ReplyTo != "" {
		m.SetReplyTo(sgmail.NewEmail("", msg.ReplyTo))
	}
	return m
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) (Result, error) {
	if err := Validate(msg); err != nil {
		return Result{}, err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return Result{}, apperr.Upstream("sendgrid", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("status %d: %s", res.StatusCode, res.Body)
		if res.StatusCode < http.StatusInternalServerError {
			return Result{}, apperr.UpstreamClient("sendgrid", err)
		}
		return Result{}, apperr.Upstream("sendgrid", err)
	}

	var id string
	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	s.log.WithFields(logrus.Fields{"message_id": id, "subject": msg.Subject}).Debug("Email sent via SendGrid")
	return Result{MessageID: id, SentAt: time.Now()}, nil
}

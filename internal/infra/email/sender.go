package email

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
)

// Message is one outbound portal email.
type Message struct {
	To      []string `validate:"required,min=1,dive,email"`
	Subject string   `validate:"required"`
	HTML    string   `validate:"required_without=Text"`
	Text    string   `validate:"required_without=HTML"`
	ReplyTo string   `validate:"omitempty,email"`
}

// Result is the provider's acknowledgement of a send.
type Result struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers portal email through a provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

var validate = validator.New()

// Validate rejects messages no provider would accept.
func Validate(msg Message) error {
	if err := validate.Struct(msg); err != nil {
		return apperr.ValidationWrap(err, "invalid email message")
	}
	return nil
}

// Outcome is the settled result of one message in a batch.
type Outcome struct {
	Message Message
	Result  Result
	Err     error
}

// SendAll sends every message concurrently and waits for all of them to
// settle. One failure never cancels the others; failures are logged and
// returned in the outcome at the same index.
func SendAll(ctx context.Context, sender Sender, log *logrus.Entry, msgs []Message) []Outcome {
	outcomes := make([]Outcome, len(msgs))
	var wg sync.WaitGroup
	for i, msg := range msgs {
		wg.Add(1)
		go func(i int, msg Message) {
			defer wg.Done()
			res, err := sender.Send(ctx, msg)
			outcomes[i] = Outcome{Message: msg, Result: res, Err: err}
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"to":      msg.To,
					"subject": msg.Subject,
				}).Warn("Email send failed")
			}
		}(i, msg)
	}
	wg.Wait()
	return outcomes
}

// Failed counts outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

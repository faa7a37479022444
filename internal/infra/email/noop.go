package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// NoopSender logs sends but does not deliver them. Used in development.
type NoopSender struct {
	log *logrus.Entry
}

func NewNoopSender(log *logrus.Entry) *NoopSender {
	return &NoopSender{log: log}
}

func (s *NoopSender) Send(_ context.Context, msg Message) (Result, error) {
	if err := Validate(msg); err != nil {
		return Result{}, err
	}
	s.log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("Email not delivered (noop sender)")
	return Result{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

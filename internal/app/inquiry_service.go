package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/infra/email"
	"school_portal_core/internal/infra/metrics"
	"school_portal_core/internal/infra/ratelimit"
)

// Inquiry is an anonymous contact-form submission.
type Inquiry struct {
	Name    string `validate:"required,max=200"`
	Email   string `validate:"required,email"`
	Phone   string `validate:"omitempty,max=40"`
	Message string `validate:"required,max=5000"`
}

// InquiryService forwards anonymous inquiries to the admin inbox, limited per
// caller.
type InquiryService struct {
	limiter    ratelimit.Store
	sender     email.Sender
	adminInbox string
	logger     *logrus.Entry
	now        func() time.Time
}

func NewInquiryService(limiter ratelimit.Store, sender email.Sender, adminInbox string, logger *logrus.Entry) *InquiryService {
	return &InquiryService{
		limiter:    limiter,
		sender:     sender,
		adminInbox: adminInbox,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit counts the attempt against callerKey (typically the client IP)
// before doing anything else.
func (s *InquiryService) Submit(ctx context.Context, callerKey string, in Inquiry) error {
	key := strings.TrimSpace(callerKey)
	if key == "" {
		key = "anonymous"
	}
	decision, err := s.limiter.Hit(ctx, key, s.now())
	if err != nil {
		return apperr.Upstream("rate limit store", err)
	}
	if !decision.Allowed {
		metrics.RateLimitRejections.Inc()
		s.logger.WithField("caller", key).Warn("Inquiry rate limit exceeded")
		return apperr.RateLimited(fmt.Sprintf("too many submissions; try again after %s",
			decision.ResetAt.UTC().Format(time.RFC3339)))
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	if err := validate.Struct(in); err != nil {
		return apperr.ValidationWrap(err, "invalid inquiry")
	}
	if s.adminInbox == "" {
		return apperr.Validation("admin inbox is not configured")
	}

	body := fmt.Sprintf("**From:** %s <%s>\n", in.Name, in.Email)
	if in.Phone != "" {
		body += fmt.Sprintf("**Phone:** %s\n", in.Phone)
	}
	body += "\n" + in.Message
	msg, err := email.FromMarkdown([]string{s.adminInbox}, "New inquiry from "+in.Name, body)
	if err != nil {
		return err
	}
	msg.ReplyTo = in.Email

	if _, err := s.sender.Send(ctx, msg); err != nil {
		if apperr.KindOf(err) != "" {
			return err
		}
		return apperr.Upstream("email", err)
	}
	s.logger.WithField("caller", key).Info("Inquiry forwarded to admin inbox")
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/payroll"
	"school_portal_core/internal/domain/session"
	domainTelegram "school_portal_core/internal/domain/telegram"
)

// PayrollRequest is the payroll query as received from the caller.
type PayrollRequest struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
	CoachID   string `validate:"omitempty,max=64"`
}

// PayrollService produces payroll reports and sends them to the payroll manager.
type PayrollService struct {
	repo              payroll.Repository
	telegramClient    domainTelegram.Client
	managerTelegramID int64
	logger            *logrus.Entry
}

// NewPayrollService accepts a nil telegram client when the bot is disabled.
func NewPayrollService(repo payroll.Repository, tc domainTelegram.Client, managerID int64, logger *logrus.Entry) *PayrollService {
	return &PayrollService{
		repo:              repo,
		telegramClient:    tc,
		managerTelegramID: managerID,
		logger:            logger,
	}
}

// Generate builds the report for req. Admins may query any coach; a coach
// only ever sees their own sessions.
func (s *PayrollService) Generate(ctx context.Context, sess session.Session, req PayrollRequest) (payroll.Report, error) {
	if err := sess.Require(session.RoleAdmin, session.RoleCoach); err != nil {
		return payroll.Report{}, err
	}
	if sess.Profile.Role == session.RoleCoach {
		req.CoachID = sess.UserID
	}
	return s.generate(ctx, req)
}

func (s *PayrollService) generate(ctx context.Context, req PayrollRequest) (payroll.Report, error) {
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	if err := validate.Struct(req); err != nil {
		if !dateFieldFailed(err) {
			return payroll.Report{}, apperr.ValidationWrap(err, "invalid payroll request")
		}
		return payroll.Report{}, apperr.ValidationWrap(payroll.ErrInvalidDateRange, "invalid payroll request: %v", err)
	}
	r, err := payroll.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return payroll.Report{}, apperr.ValidationWrap(err, "%v", err)
	}

	records, err := s.repo.ListSessions(ctx, r, req.CoachID)
	if err != nil {
		return payroll.Report{}, apperr.Upstream("storage", err)
	}
	report := payroll.Aggregate(r, req.CoachID, records)
	s.logger.WithFields(logrus.Fields{
		"range":    r.String(),
		"coach_id": req.CoachID,
		"sessions": report.Totals.SessionCount,
	}).Debug("Payroll report generated")
	return report, nil
}

// dateFieldFailed reports whether validation failed on StartDate or EndDate.
func dateFieldFailed(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return true
	}
	for _, fe := range verrs {
		if fe.Field() == "StartDate" || fe.Field() == "EndDate" {
			return true
		}
	}
	return false
}

// FormatDigest renders a report as a plain-text message.
func FormatDigest(report payroll.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payroll %s to %s\n", report.StartDate, report.EndDate)
	if len(report.SummaryPerCoach) == 0 {
		b.WriteString("No sessions in this period.")
		return b.String()
	}
	for _, cs := range report.SummaryPerCoach {
		fmt.Fprintf(&b, "\n%s: %d sessions, %d min, $%s", cs.CoachName, cs.SessionCount, cs.TotalMinutes, cs.TotalPay.StringFixed(2))
	}
	fmt.Fprintf(&b, "\n\nTotal: %d coaches, %d sessions, $%s",
		report.Totals.CoachCount, report.Totals.SessionCount, report.Totals.TotalPay.StringFixed(2))
	return b.String()
}

var ErrDigestRecipientMissing = errors.New("payroll manager telegram recipient is not configured")

// SendDigest generates the report for req and posts it to the payroll manager.
func (s *PayrollService) SendDigest(ctx context.Context, req PayrollRequest) (payroll.Report, error) {
	if s.telegramClient == nil || s.managerTelegramID == 0 {
		return payroll.Report{}, ErrDigestRecipientMissing
	}
	report, err := s.generate(ctx, req)
	if err != nil {
		return payroll.Report{}, err
	}
	if err := s.telegramClient.SendMessage(s.managerTelegramID, FormatDigest(report)); err != nil {
		s.logger.WithError(err).WithField("manager_id", s.managerTelegramID).Error("Failed to send payroll digest")
		return report, apperr.Upstream("telegram", err)
	}
	s.logger.WithField("manager_id", s.managerTelegramID).Info("Payroll digest sent")
	return report, nil
}

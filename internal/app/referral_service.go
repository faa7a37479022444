package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/referral"
	"school_portal_core/internal/domain/session"
	"school_portal_core/internal/infra/metrics"
)

// maxCodeIssueAttempts bounds fresh candidates per IssueOrGetCode call.
const maxCodeIssueAttempts = 5

// ReferralService owns referral codes and the referral credit lifecycle.
type ReferralService struct {
	codes        referral.CodeRepository
	referrals    referral.Repository
	generator    referral.Generator
	creditAmount int64
	logger       *logrus.Entry
	now          func() time.Time
}

func NewReferralService(
	codes referral.CodeRepository,
	referrals referral.Repository,
	generator referral.Generator,
	creditAmount int64,
	logger *logrus.Entry,
) *ReferralService {
	return &ReferralService{
		codes:        codes,
		referrals:    referrals,
		generator:    generator,
		creditAmount: creditAmount,
		logger:       logger,
		now:          time.Now,
	}
}

// IssueOrGetCode returns the user's code, creating it on first use. Concurrent
// first-time calls for the same user all return the single persisted code.
func (s *ReferralService) IssueOrGetCode(ctx context.Context, userID string) (*referral.Code, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user id is required")
	}

	existing, err := s.codes.GetCodeByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, referral.ErrCodeNotFound) {
		return nil, apperr.Upstream("storage", err)
	}

	log := s.logger.WithField("user_id", userID)
	for attempt := 1; attempt <= maxCodeIssueAttempts; attempt++ {
		candidate, err := s.generator.Generate()
		if err != nil {
			return nil, apperr.Upstream("code generator", err)
		}

		code := &referral.Code{UserID: userID, Code: candidate, CreatedAt: s.now().UTC()}
		err = s.codes.InsertCode(ctx, code)
		if err == nil {
			metrics.ReferralCodesIssued.Inc()
			log.WithField("code", candidate).Info("Referral code issued")
			return code, nil
		}
		if !errors.Is(err, referral.ErrCodeConflict) {
			return nil, apperr.Upstream("storage", err)
		}

		// The conflict is either a concurrent call for this user that won, or
		// a candidate already owned by someone else.
		winner, lookupErr := s.codes.GetCodeByUser(ctx, userID)
		if lookupErr == nil {
			metrics.ReferralCodeConflicts.WithLabelValues("self").Inc()
			log.Debug("Concurrent issuance won by another request; returning its code")
			return winner, nil
		}
		if !errors.Is(lookupErr, referral.ErrCodeNotFound) {
			return nil, apperr.Upstream("storage", lookupErr)
		}
		metrics.ReferralCodeConflicts.WithLabelValues("foreign").Inc()
		log.WithFields(logrus.Fields{"attempt": attempt, "candidate": candidate}).Warn("Referral code candidate collided; retrying")
	}

	log.Error("Referral code issuance attempts exhausted")
	return nil, apperr.ConflictExhausted(referral.ErrCodeIssuanceFailed, "could not issue a unique referral code")
}

// ConvertOldestRegisteredReferral converts at most one referral: for each
// candidate in order it tries the oldest registered referral targeting that
// profile and stops at the first guarded update that succeeds. Finding nothing
// is not an error.
func (s *ReferralService) ConvertOldestRegisteredReferral(ctx context.Context, candidateProfileIDs []string) (string, bool, error) {
	seen := make(map[string]struct{}, len(candidateProfileIDs))
	for _, raw := range candidateProfileIDs {
		profileID := strings.TrimSpace(raw)
		if profileID == "" {
			continue
		}
		if _, dup := seen[profileID]; dup {
			continue
		}
		seen[profileID] = struct{}{}

		ref, err := s.referrals.OldestRegisteredForStudent(ctx, profileID)
		if errors.Is(err, referral.ErrReferralNotFound) {
			continue
		}
		if err != nil {
			return "", false, apperr.Upstream("storage", err)
		}

		ok, err := s.referrals.MarkConverted(ctx, ref.ID, s.creditAmount, s.now().UTC())
		if err != nil {
			return "", false, apperr.Upstream("storage", err)
		}
		if !ok {
			metrics.ReferralTransitions.WithLabelValues(string(referral.StatusConverted), "lost_race").Inc()
			s.logger.WithFields(logrus.Fields{"referral_id": ref.ID, "profile_id": profileID}).
				Warn("Referral was converted by a concurrent request; trying next candidate")
			continue
		}

		metrics.ReferralTransitions.WithLabelValues(string(referral.StatusConverted), "ok").Inc()
		s.logger.WithFields(logrus.Fields{
			"referral_id":   ref.ID,
			"referrer_id":   ref.ReferrerID,
			"profile_id":    profileID,
			"credit_amount": s.creditAmount,
		}).Info("Referral converted")
		return ref.ID, true, nil
	}
	return "", false, nil
}

// RecordReferral creates a pending referral for the owner of code. submitter
// is nil for anonymous sign-ups; a signed-in owner cannot use their own code.
func (s *ReferralService) RecordReferral(ctx context.Context, submitter *session.Session, code, referredEmail string) (*referral.Referral, error) {
	normalized := referral.NormalizeCode(code)
	if !referral.ValidCode(normalized) {
		return nil, apperr.Validation("referral code %q is malformed", code)
	}
	email := strings.ToLower(strings.TrimSpace(referredEmail))
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperr.ValidationWrap(err, "referred email %q is invalid", referredEmail)
	}

	owner, err := s.codes.GetCodeByValue(ctx, normalized)
	if errors.Is(err, referral.ErrCodeNotFound) {
		return nil, apperr.NotFound("referral code", normalized)
	}
	if err != nil {
		return nil, apperr.Upstream("storage", err)
	}
	if submitter != nil && submitter.UserID == owner.UserID {
		return nil, apperr.ValidationWrap(referral.ErrSelfReferral, "cannot use your own referral code")
	}

	ref := &referral.Referral{
		ReferrerID:    owner.UserID,
		ReferredEmail: email,
		Status:        referral.StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.referrals.Create(ctx, ref); err != nil {
		return nil, apperr.Upstream("storage", err)
	}
	metrics.ReferralTransitions.WithLabelValues(string(referral.StatusPending), "ok").Inc()
	s.logger.WithFields(logrus.Fields{"referral_id": ref.ID, "referrer_id": owner.UserID}).Info("Referral recorded")
	return ref, nil
}

// MarkRegistered links the oldest pending referral for email to the new
// student profile. A student holds at most one referral past pending, so it
// returns false when there is nothing to register or the student already
// has one.
func (s *ReferralService) MarkRegistered(ctx context.Context, referredEmail, studentID string) (string, bool, error) {
	email := strings.ToLower(strings.TrimSpace(referredEmail))
	if email == "" || strings.TrimSpace(studentID) == "" {
		return "", false, apperr.Validation("email and student id are required")
	}

	held, err := s.referrals.OldestRegisteredForStudent(ctx, studentID)
	if err == nil {
		s.logger.WithFields(logrus.Fields{"referral_id": held.ID, "student_id": studentID}).
			Info("Student already holds a registered referral")
		return "", false, nil
	}
	if !errors.Is(err, referral.ErrReferralNotFound) {
		return "", false, apperr.Upstream("storage", err)
	}

	ref, err := s.referrals.OldestPendingForEmail(ctx, email)
	if errors.Is(err, referral.ErrReferralNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Upstream("storage", err)
	}
	if ref.ReferrerID == studentID {
		return "", false, apperr.ValidationWrap(referral.ErrSelfReferral, "referrer cannot register as their own referral")
	}

	ok, err := s.referrals.MarkRegistered(ctx, ref.ID, studentID, s.now().UTC())
	if err != nil {
		return "", false, apperr.Upstream("storage", err)
	}
	if !ok {
		metrics.ReferralTransitions.WithLabelValues(string(referral.StatusRegistered), "lost_race").Inc()
		return "", false, nil
	}
	metrics.ReferralTransitions.WithLabelValues(string(referral.StatusRegistered), "ok").Inc()
	s.logger.WithFields(logrus.Fields{"referral_id": ref.ID, "student_id": studentID}).Info("Referral registered")
	return ref.ID, true, nil
}

// MarkCredited records that the referrer's credit was applied. Admin only.
func (s *ReferralService) MarkCredited(ctx context.Context, sess session.Session, referralID string) error {
	if err := sess.Require(session.RoleAdmin); err != nil {
		return err
	}
	ref, err := s.referrals.GetByID(ctx, referralID)
	if errors.Is(err, referral.ErrReferralNotFound) {
		return apperr.NotFound("referral", referralID)
	}
	if err != nil {
		return apperr.Upstream("storage", err)
	}
	if ref.Status != referral.StatusConverted {
		return apperr.Validation("referral %s is %s, not converted", referralID, ref.Status)
	}

	ok, err := s.referrals.MarkCredited(ctx, referralID, s.now().UTC())
	if err != nil {
		return apperr.Upstream("storage", err)
	}
	if !ok {
		metrics.ReferralTransitions.WithLabelValues(string(referral.StatusCredited), "lost_race").Inc()
		return apperr.Validation("referral %s was changed by another request", referralID)
	}
	metrics.ReferralTransitions.WithLabelValues(string(referral.StatusCredited), "ok").Inc()
	s.logger.WithFields(logrus.Fields{"referral_id": referralID, "admin_id": sess.UserID}).Info("Referral credited")
	return nil
}

package app

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/reportcard"
	"school_portal_core/internal/domain/session"
	"school_portal_core/internal/infra/blob"
	"school_portal_core/internal/infra/metrics"
)

// SignedURLCreator is the createSignedUrl storage collaborator.
type SignedURLCreator interface {
	CreateSignedURL(ctx context.Context, class blob.AssetClass, key string) (string, error)
}

// Upload describes a report card file already received by the transport layer.
type Upload struct {
	FileName string
	Size     int64
}

// ReportCardService enforces the draft → submitted → approved/rejected workflow.
type ReportCardService struct {
	cards     reportcard.Repository
	urls      SignedURLCreator
	maxUpload int64
	logger    *logrus.Entry
	now       func() time.Time
}

func NewReportCardService(cards reportcard.Repository, urls SignedURLCreator, maxUpload int64, logger *logrus.Entry) *ReportCardService {
	if maxUpload <= 0 {
		maxUpload = reportcard.DefaultMaxUploadBytes
	}
	return &ReportCardService{
		cards:     cards,
		urls:      urls,
		maxUpload: maxUpload,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ReportCardService) load(ctx context.Context, id string) (*reportcard.ReportCard, error) {
	card, err := s.cards.GetByID(ctx, id)
	if errors.Is(err, reportcard.ErrReportCardNotFound) {
		return nil, apperr.NotFound("report card", id)
	}
	if err != nil {
		return nil, apperr.Upstream("storage", err)
	}
	return card, nil
}

// ObjectKey is where a submission's file is stored in the report card bucket.
// Each submission gets a fresh key so a resubmission never overwrites the
// file a reviewer rejected.
func ObjectKey(card reportcard.ReportCard, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if ext == "" || len(ext) > 8 {
		ext = ".pdf"
	}
	return path.Join(card.StudentID, card.TermID, card.ID+"-"+uuid.NewString()+ext)
}

// Submit moves a draft or rejected card to submitted. Only the card's coach
// may submit it.
func (s *ReportCardService) Submit(ctx context.Context, sess session.Session, id string, upload Upload) (*reportcard.ReportCard, error) {
	if err := sess.Require(session.RoleCoach); err != nil {
		return nil, err
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.CoachID != sess.UserID {
		return nil, apperr.Unauthorized("report card belongs to another coach")
	}
	if !reportcard.CanSubmit(card.Status) {
		return nil, apperr.ValidationWrap(reportcard.ErrIllegalTransition, "cannot submit a %s report card", card.Status)
	}
	if err := reportcard.CheckUpload(upload.Size, s.maxUpload); err != nil {
		return nil, apperr.ValidationWrap(err, "upload of %d bytes rejected (max %d)", upload.Size, s.maxUpload)
	}

	tr := reportcard.Transition{
		ID:       card.ID,
		From:     card.Status,
		To:       reportcard.StatusSubmitted,
		FilePath: ObjectKey(*card, upload.FileName),
		At:       s.now().UTC(),
	}
	if err := s.apply(ctx, tr); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"report_card_id": id, "coach_id": sess.UserID, "file_path": tr.FilePath}).Info("Report card submitted")
	return s.load(ctx, id)
}

// Review approves or rejects a submitted card. Admin only.
func (s *ReportCardService) Review(ctx context.Context, sess session.Session, id string, decision reportcard.Decision, note string) (*reportcard.ReportCard, error) {
	if err := sess.Require(session.RoleAdmin); err != nil {
		return nil, err
	}
	target, ok := decision.Target()
	if !ok {
		return nil, apperr.Validation("unknown review decision %q", decision)
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reportcard.CanReview(card.Status) {
		return nil, apperr.ValidationWrap(reportcard.ErrIllegalTransition, "cannot review a %s report card", card.Status)
	}

	tr := reportcard.Transition{
		ID:         card.ID,
		From:       card.Status,
		To:         target,
		ReviewerID: sess.UserID,
		ReviewNote: strings.TrimSpace(note),
		At:         s.now().UTC(),
	}
	if err := s.apply(ctx, tr); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"report_card_id": id, "reviewer_id": sess.UserID, "status": target}).Info("Report card reviewed")
	return s.load(ctx, id)
}

func (s *ReportCardService) apply(ctx context.Context, tr reportcard.Transition) error {
	ok, err := s.cards.ApplyTransition(ctx, tr)
	if err != nil {
		return apperr.Upstream("storage", err)
	}
	if !ok {
		return apperr.ValidationWrap(reportcard.ErrIllegalTransition, "report card %s changed while it was being updated", tr.ID)
	}
	metrics.ReportCardTransitions.WithLabelValues(string(tr.To)).Inc()
	return nil
}

// DownloadURL returns a short-lived link to the card's file for an admin or
// the card's coach.
func (s *ReportCardService) DownloadURL(ctx context.Context, sess session.Session, id string) (string, error) {
	if err := sess.Require(session.RoleAdmin, session.RoleCoach); err != nil {
		return "", err
	}
	card, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Profile.Role == session.RoleCoach && card.CoachID != sess.UserID {
		return "", apperr.Unauthorized("report card belongs to another coach")
	}
	if card.FilePath == "" {
		return "", apperr.Validation("report card %s has no uploaded file", id)
	}
	return s.urls.CreateSignedURL(ctx, blob.AssetReportCards, card.FilePath)
}

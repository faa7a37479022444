package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"school_portal_core/internal/domain/reportcard"
)

// ReportCardStore implements reportcard.Repository.
type ReportCardStore struct {
	db *sqlx.DB
}

func NewReportCardStore(db *sqlx.DB) *ReportCardStore {
	return &ReportCardStore{db: db}
}

type reportCardRow struct {
	ID          string   `db:"id"`
	StudentID   string   `db:"student_id"`
	CoachID     string   `db:"coach_id"`
	TermID      string   `db:"term_id"`
	Status      string   `db:"status"`
	FilePath    string   `db:"file_path"`
	ReviewNote  string   `db:"review_note"`
	ReviewerID  string   `db:"reviewer_id"`
	CreatedAt   nullTime `db:"created_at"`
	SubmittedAt nullTime `db:"submitted_at"`
	ReviewedAt  nullTime `db:"reviewed_at"`
}

func (s *ReportCardStore) GetByID(ctx context.Context, id string) (*reportcard.ReportCard, error) {
	query := s.db.Rebind(`SELECT id, student_id, coach_id, term_id, status, file_path, review_note,
		reviewer_id, created_at, submitted_at, reviewed_at
		FROM report_cards WHERE id = ?`)
	var row reportCardRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reportcard.ErrReportCardNotFound
		}
		return nil, fmt.Errorf("error getting report card by ID: %w", err)
	}
	return &reportcard.ReportCard{
		ID:          row.ID,
		StudentID:   row.StudentID,
		CoachID:     row.CoachID,
		TermID:      row.TermID,
		Status:      reportcard.Status(row.Status),
		FilePath:    row.FilePath,
		ReviewNote:  row.ReviewNote,
		ReviewerID:  row.ReviewerID,
		CreatedAt:   row.CreatedAt.Time,
		SubmittedAt: row.SubmittedAt.Ptr(),
		ReviewedAt:  row.ReviewedAt.Ptr(),
	}, nil
}

// ApplyTransition updates the card only while its status still equals tr.From.
func (s *ReportCardStore) ApplyTransition(ctx context.Context, tr reportcard.Transition) (bool, error) {
	var (
		query string
		args  []any
	)
	switch tr.To {
	case reportcard.StatusSubmitted:
		query = `UPDATE report_cards SET status = ?, file_path = ?, submitted_at = ?
			WHERE id = ? AND status = ?`
		args = []any{string(tr.To), tr.FilePath, tr.At.UTC(), tr.ID, string(tr.From)}
	case reportcard.StatusApproved, reportcard.StatusRejected:
		query = `UPDATE report_cards SET status = ?, reviewer_id = ?, review_note = ?, reviewed_at = ?
			WHERE id = ? AND status = ?`
		args = []any{string(tr.To), tr.ReviewerID, tr.ReviewNote, tr.At.UTC(), tr.ID, string(tr.From)}
	default:
		return false, fmt.Errorf("%w: %s -> %s", reportcard.ErrIllegalTransition, tr.From, tr.To)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("error updating report card: %w", err)
	}
	return affectedOne(res)
}

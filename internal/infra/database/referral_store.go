package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"school_portal_core/internal/domain/referral"
)

// ReferralStore implements referral.CodeRepository and referral.Repository.
type ReferralStore struct {
	db *sqlx.DB
}

func NewReferralStore(db *sqlx.DB) *ReferralStore {
	return &ReferralStore{db: db}
}

type codeRow struct {
	UserID    string   `db:"user_id"`
	Code      string   `db:"code"`
	CreatedAt nullTime `db:"created_at"`
}

func (r codeRow) toDomain() *referral.Code {
	return &referral.Code{UserID: r.UserID, Code: r.Code, CreatedAt: r.CreatedAt.Time}
}

type referralRow struct {
	ID                string         `db:"id"`
	ReferrerID        string         `db:"referrer_id"`
	ReferredEmail     string         `db:"referred_email"`
	ReferredStudentID sql.NullString `db:"referred_student_id"`
	Status            string         `db:"status"`
	CreditAmount      int64          `db:"credit_amount"`
	CreatedAt         nullTime       `db:"created_at"`
	RegisteredAt      nullTime       `db:"registered_at"`
	ConvertedAt       nullTime       `db:"converted_at"`
	CreditedAt        nullTime       `db:"credited_at"`
}

func (r referralRow) toDomain() *referral.Referral {
	out := &referral.Referral{
		ID:            r.ID,
		ReferrerID:    r.ReferrerID,
		ReferredEmail: r.ReferredEmail,
		Status:        referral.Status(r.Status),
		CreditAmount:  r.CreditAmount,
		CreatedAt:     r.CreatedAt.Time,
		RegisteredAt:  r.RegisteredAt.Ptr(),
		ConvertedAt:   r.ConvertedAt.Ptr(),
		CreditedAt:    r.CreditedAt.Ptr(),
	}
	if r.ReferredStudentID.Valid {
		id := r.ReferredStudentID.String
		out.ReferredStudentID = &id
	}
	return out
}

const referralColumns = `id, referrer_id, referred_email, referred_student_id, status, credit_amount,
	created_at, registered_at, converted_at, credited_at`

// --- Codes ---

func (s *ReferralStore) GetCodeByUser(ctx context.Context, userID string) (*referral.Code, error) {
	return s.getCode(ctx, `SELECT user_id, code, created_at FROM referral_codes WHERE user_id = ?`, userID)
}

func (s *ReferralStore) GetCodeByValue(ctx context.Context, code string) (*referral.Code, error) {
	return s.getCode(ctx, `SELECT user_id, code, created_at FROM referral_codes WHERE code = ?`, referral.NormalizeCode(code))
}

func (s *ReferralStore) getCode(ctx context.Context, query string, arg string) (*referral.Code, error) {
	var row codeRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, referral.ErrCodeNotFound
		}
		return nil, fmt.Errorf("error getting referral code: %w", err)
	}
	return row.toDomain(), nil
}

// InsertCode returns referral.ErrCodeConflict when either the user or the code
// is already present.
func (s *ReferralStore) InsertCode(ctx context.Context, c *referral.Code) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`INSERT INTO referral_codes (user_id, code, created_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, c.UserID, c.Code, c.CreatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", referral.ErrCodeConflict, ErrUniqueViolation)
		}
		return fmt.Errorf("error inserting referral code: %w", err)
	}
	return nil
}

// --- Referrals ---

func (s *ReferralStore) Create(ctx context.Context, r *referral.Referral) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = referral.StatusPending
	}
	query := s.db.Rebind(`INSERT INTO referrals (` + referralColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	var student any
	if r.ReferredStudentID != nil {
		student = *r.ReferredStudentID
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ReferrerID, r.ReferredEmail, student, string(r.Status), r.CreditAmount,
		r.CreatedAt.UTC(), utcPtr(r.RegisteredAt), utcPtr(r.ConvertedAt), utcPtr(r.CreditedAt))
	if err != nil {
		return fmt.Errorf("error creating referral: %w", err)
	}
	return nil
}

func (s *ReferralStore) GetByID(ctx context.Context, id string) (*referral.Referral, error) {
	return s.getReferral(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = ?`, id)
}

func (s *ReferralStore) OldestPendingForEmail(ctx context.Context, email string) (*referral.Referral, error) {
	return s.getReferral(ctx, `SELECT `+referralColumns+` FROM referrals
		WHERE LOWER(referred_email) = LOWER(?) AND status = 'pending'
		ORDER BY created_at ASC, id ASC LIMIT 1`, email)
}

func (s *ReferralStore) OldestRegisteredForStudent(ctx context.Context, studentID string) (*referral.Referral, error) {
	return s.getReferral(ctx, `SELECT `+referralColumns+` FROM referrals
		WHERE referred_student_id = ? AND status = 'registered'
		ORDER BY created_at ASC, id ASC LIMIT 1`, studentID)
}

func (s *ReferralStore) getReferral(ctx context.Context, query string, arg string) (*referral.Referral, error) {
	var row referralRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, referral.ErrReferralNotFound
		}
		return nil, fmt.Errorf("error getting referral: %w", err)
	}
	return row.toDomain(), nil
}

// MarkRegistered links a pending referral to studentID. It reports false when
// the referral is no longer pending or the student already holds a
// registered, converted or credited referral.
func (s *ReferralStore) MarkRegistered(ctx context.Context, id, studentID string, at time.Time) (bool, error) {
	return s.guardedUpdate(ctx, `UPDATE referrals
		SET status = 'registered', referred_student_id = ?, registered_at = ?
		WHERE id = ? AND status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM referrals held
			WHERE held.referred_student_id = ? AND held.status IN ('registered', 'converted', 'credited')
		)`, studentID, at.UTC(), id, studentID)
}

// MarkConverted flips exactly one registered referral. A false result means
// another request converted it first.
func (s *ReferralStore) MarkConverted(ctx context.Context, id string, creditAmount int64, at time.Time) (bool, error) {
	return s.guardedUpdate(ctx, `UPDATE referrals
		SET status = 'converted', credit_amount = ?, converted_at = ?
		WHERE id = ? AND status = 'registered'`, creditAmount, at.UTC(), id)
}

func (s *ReferralStore) MarkCredited(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.guardedUpdate(ctx, `UPDATE referrals
		SET status = 'credited', credited_at = ?
		WHERE id = ? AND status = 'converted'`, at.UTC(), id)
}

func (s *ReferralStore) guardedUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if isUniqueViolation(err) {
		// A concurrent update registered another referral for the same student.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error updating referral: %w", err)
	}
	return affectedOne(res)
}

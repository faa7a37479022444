package referral

import (
	"context"
	"errors"
	"time"
)

// Status is a referral's lifecycle position. Referrals only move forward:
// pending → registered → converted → credited.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRegistered Status = "registered"
	StatusConverted  Status = "converted"
	StatusCredited   Status = "credited"
	StatusExpired    Status = "expired"
)

// DefaultCreditAmount is the credit earned per converted referral.
const DefaultCreditAmount int64 = 50

var (
	ErrCodeNotFound       = errors.New("referral code not found")
	ErrReferralNotFound   = errors.New("referral not found")
	ErrCodeIssuanceFailed = errors.New("referral code issuance attempts exhausted")
	ErrSelfReferral       = errors.New("users cannot refer themselves")
	// ErrCodeConflict is returned by CodeRepository.InsertCode when either
	// the user already has a code or the code belongs to someone else.
	ErrCodeConflict = errors.New("referral code conflicts with an existing code")
)

// Code is a user's referral code. Created once, never mutated.
type Code struct {
	UserID    string
	Code      string
	CreatedAt time.Time
}

// Referral is one invitation from a referrer to a prospective student.
type Referral struct {
	ID                string
	ReferrerID        string
	ReferredEmail     string
	ReferredStudentID *string
	Status            Status
	CreditAmount      int64
	CreatedAt         time.Time
	RegisteredAt      *time.Time
	ConvertedAt       *time.Time
	CreditedAt        *time.Time
}

// CodeRepository persists referral codes. Uniqueness of both user_id and
// code is enforced by the store. Lookups return ErrCodeNotFound.
type CodeRepository interface {
	GetCodeByUser(ctx context.Context, userID string) (*Code, error)
	GetCodeByValue(ctx context.Context, code string) (*Code, error)
	InsertCode(ctx context.Context, c *Code) error
}

// Repository persists referrals. Every status change is a guarded update that
// reports whether the row still held the expected status.
type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id string) (*Referral, error)
	// OldestPendingForEmail returns ErrReferralNotFound when nothing matches.
	OldestPendingForEmail(ctx context.Context, email string) (*Referral, error)
	// OldestRegisteredForStudent returns ErrReferralNotFound when nothing
	// matches.
	OldestRegisteredForStudent(ctx context.Context, studentID string) (*Referral, error)
	MarkRegistered(ctx context.Context, id, studentID string, at time.Time) (bool, error)
	MarkConverted(ctx context.Context, id string, creditAmount int64, at time.Time) (bool, error)
	MarkCredited(ctx context.Context, id string, at time.Time) (bool, error)
}

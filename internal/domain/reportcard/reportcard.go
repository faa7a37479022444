package reportcard

import (
	"context"
	"errors"
	"time"
)

// Status of a report card submission.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

var (
	ErrReportCardNotFound = errors.New("report card not found")
	ErrIllegalTransition  = errors.New("report card transition not allowed")
	ErrUploadTooLarge     = errors.New("report card upload exceeds maximum size")
	ErrEmptyUpload        = errors.New("report card upload is empty")
)

// DefaultMaxUploadBytes is 10 MiB.
const DefaultMaxUploadBytes int64 = 10 << 20

// ReportCard is a coach's report card submission for a student.
type ReportCard struct {
	ID          string
	StudentID   string
	CoachID     string
	TermID      string
	Status      Status
	FilePath    string
	ReviewNote  string
	ReviewerID  string
	CreatedAt   time.Time
	SubmittedAt *time.Time
	ReviewedAt  *time.Time
}

// CanSubmit is true for drafts and for rejected cards being resubmitted.
func CanSubmit(s Status) bool {
	return s == StatusDraft || s == StatusRejected
}

// CanReview is true only for a card awaiting a decision.
func CanReview(s Status) bool {
	return s == StatusSubmitted
}

// LastActivityTimestamp is ReviewedAt for reviewed cards that carry one,
// CreatedAt otherwise.
func LastActivityTimestamp(rc ReportCard) time.Time {
	if (rc.Status == StatusApproved || rc.Status == StatusRejected) && rc.ReviewedAt != nil {
		return *rc.ReviewedAt
	}
	return rc.CreatedAt
}

// Decision is the outcome of a review.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Target returns the status a decision moves a submitted card to.
func (d Decision) Target() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	default:
		return "", false
	}
}

// CheckUpload validates the size of an uploaded file against max bytes.
func CheckUpload(size, max int64) error {
	if size <= 0 {
		return ErrEmptyUpload
	}
	if size > max {
		return ErrUploadTooLarge
	}
	return nil
}

// Transition is a status-guarded update: it applies only while the stored
// status still equals From.
type Transition struct {
	ID         string
	From       Status
	To         Status
	FilePath   string
	ReviewerID string
	ReviewNote string
	At         time.Time
}

// Repository persists report cards.
type Repository interface {
	// GetByID returns ErrReportCardNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*ReportCard, error)
	// ApplyTransition returns false when the guard did not match.
	ApplyTransition(ctx context.Context, tr Transition) (bool, error)
}

// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"

	"school_portal_core/internal/domain/preference"
)

// ReminderClaim marks one reminder for one recipient of one class session.
// Corresponds to the 'reminder_log' table; the four key fields are unique.
type ReminderClaim struct {
	ClassID     string
	SessionDate string // YYYY-MM-DD in the class's zone
	ProfileID   string
	Type        preference.ReminderType
	ClaimedAt   time.Time
}

// Repository records which reminders have been sent.
type Repository interface {
	// ClaimReminder inserts the claim and reports false if it already exists,
	// so overlapping dispatch runs never send the same reminder twice.
	ClaimReminder(ctx context.Context, c ReminderClaim) (bool, error)
	// ReleaseReminder removes a claim whose send failed so a later run can retry.
	ReleaseReminder(ctx context.Context, c ReminderClaim) error
}

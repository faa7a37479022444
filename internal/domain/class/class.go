package class

import (
	"context"
	"errors"
)

var ErrClassNotFound = errors.New("class not found")

// Class is a recurring weekly class. ScheduleDay, StartTime and EndTime are
// wall-clock values in Timezone.
type Class struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Category    string `db:"category"`
	ScheduleDay string `db:"schedule_day"`
	StartTime   string `db:"start_time"`
	EndTime     string `db:"end_time"`
	Timezone    string `db:"timezone"`
	TermID      string `db:"term_id"`
	Active      bool   `db:"active"`
}

// Recipient is a profile that receives notifications about a class.
type Recipient struct {
	ProfileID   string `db:"profile_id"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
	Timezone    string `db:"timezone"`
	Locale      string `db:"locale"`
	// Preferences is the raw, schema-less preference blob.
	Preferences []byte `db:"notification_preferences"`
}

// Repository reads classes and their notification recipients.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Class, error)
	ListActive(ctx context.Context) ([]Class, error)
	ListRecipients(ctx context.Context, classID string) ([]Recipient, error)
}

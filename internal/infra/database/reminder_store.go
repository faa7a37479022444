package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"school_portal_core/internal/domain/notification"
)

// ReminderStore implements notification.Repository on the reminder_log table.
type ReminderStore struct {
	db *sqlx.DB
}

func NewReminderStore(db *sqlx.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func (s *ReminderStore) ClaimReminder(ctx context.Context, c notification.ReminderClaim) (bool, error) {
	query := s.db.Rebind(`INSERT INTO reminder_log (class_id, session_date, profile_id, reminder_type, claimed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (class_id, session_date, profile_id, reminder_type) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query, c.ClassID, c.SessionDate, c.ProfileID, string(c.Type), c.ClaimedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("error claiming reminder (class %s, profile %s, %s): %w", c.ClassID, c.ProfileID, c.Type, err)
	}
	return affectedOne(res)
}

func (s *ReminderStore) ReleaseReminder(ctx context.Context, c notification.ReminderClaim) error {
	query := s.db.Rebind(`DELETE FROM reminder_log
		WHERE class_id = ? AND session_date = ? AND profile_id = ? AND reminder_type = ?`)
	if _, err := s.db.ExecContext(ctx, query, c.ClassID, c.SessionDate, c.ProfileID, string(c.Type)); err != nil {
		return fmt.Errorf("error releasing reminder claim: %w", err)
	}
	return nil
}

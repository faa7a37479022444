package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"school_portal_core/internal/domain/payroll"
	"school_portal_core/internal/domain/term"
)

// PayrollStore implements payroll.Repository.
type PayrollStore struct {
	db *sqlx.DB
}

func NewPayrollStore(db *sqlx.DB) *PayrollStore {
	return &PayrollStore{db: db}
}

type sessionRow struct {
	ID              string          `db:"id"`
	CoachID         string          `db:"coach_id"`
	CoachName       string          `db:"coach_name"`
	ClassID         string          `db:"class_id"`
	ClassName       string          `db:"class_name"`
	SessionDate     string          `db:"session_date"`
	DurationMinutes int             `db:"duration_minutes"`
	HourlyRate      decimal.Decimal `db:"hourly_rate"`
	AttendeeCount   int             `db:"attendee_count"`
}

// ListSessions returns sessions whose date falls in r, optionally for one coach.
func (s *PayrollStore) ListSessions(ctx context.Context, r payroll.DateRange, coachID string) ([]payroll.SessionRecord, error) {
	query := `SELECT cs.id, cs.coach_id, co.display_name AS coach_name, cs.class_id, cl.name AS class_name,
		cs.session_date, cs.duration_minutes, co.hourly_rate, cs.attendee_count
		FROM class_sessions cs
		JOIN coaches co ON co.id = cs.coach_id
		JOIN classes cl ON cl.id = cs.class_id
		WHERE cs.session_date >= ? AND cs.session_date <= ?`
	args := []any{r.Start.Format(term.DateLayout), r.End.Format(term.DateLayout)}
	if coachID != "" {
		query += ` AND cs.coach_id = ?`
		args = append(args, coachID)
	}
	query += ` ORDER BY cs.session_date, cs.id`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error listing class sessions for %s: %w", r, err)
	}

	records := make([]payroll.SessionRecord, 0, len(rows))
	for _, row := range rows {
		date, err := term.ParseDate(row.SessionDate)
		if err != nil {
			return nil, fmt.Errorf("session %s has malformed date %q: %w", row.ID, row.SessionDate, err)
		}
		records = append(records, payroll.SessionRecord{
			ID:              row.ID,
			CoachID:         row.CoachID,
			CoachName:       row.CoachName,
			ClassID:         row.ClassID,
			ClassName:       row.ClassName,
			SessionDate:     date,
			DurationMinutes: row.DurationMinutes,
			HourlyRate:      row.HourlyRate,
			AttendeeCount:   row.AttendeeCount,
		})
	}
	return records, nil
}

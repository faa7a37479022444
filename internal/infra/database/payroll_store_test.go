package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_core/internal/domain/payroll"
)

func TestPayrollStoreListSessions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedClasses(t, db)
	exec(t, db, `INSERT INTO coaches (id, display_name, hourly_rate) VALUES (?, ?, ?), (?, ?, ?)`,
		"co1", "Zed", "45.50", "co2", "Amy", "40")
	for _, s := range []struct {
		id, coach, date string
		minutes         int
	}{
		{"s1", "co1", "2024-09-30", 90},
		{"s2", "co2", "2024-10-01", 60},
		{"s3", "co1", "2024-10-15", 60},
		{"s4", "co1", "2024-11-01", 60},
	} {
		exec(t, db, `INSERT INTO class_sessions (id, class_id, coach_id, session_date, duration_minutes, attendee_count)
			VALUES (?, ?, ?, ?, ?, ?)`, s.id, "c1", s.coach, s.date, s.minutes, 6)
	}
	store := NewPayrollStore(db)

	r, err := payroll.ParseDateRange("2024-10-01", "2024-10-31")
	require.NoError(t, err)

	all, err := store.ListSessions(ctx, r, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)
	assert.Equal(t, "Amy", all[0].CoachName)
	assert.Equal(t, "Debate A", all[0].ClassName)
	assert.Equal(t, "40", all[0].HourlyRate.String())
	assert.Equal(t, "s3", all[1].ID)
	assert.Equal(t, "45.5", all[1].HourlyRate.String())
	assert.Equal(t, "45.5", all[1].Pay().String())

	one, err := store.ListSessions(ctx, r, "co1")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "s3", one[0].ID)

	wide, err := payroll.ParseDateRange("2024-09-01", "2024-12-31")
	require.NoError(t, err)
	report := payroll.Aggregate(wide, "", mustList(t, store, wide))
	assert.Equal(t, 4, report.Totals.SessionCount)
	require.Len(t, report.SummaryPerCoach, 2)
	assert.Equal(t, "Amy", report.SummaryPerCoach[0].CoachName)
}

func mustList(t *testing.T, store *PayrollStore, r payroll.DateRange) []payroll.SessionRecord {
	t.Helper()
	records, err := store.ListSessions(context.Background(), r, "")
	require.NoError(t, err)
	return records
}

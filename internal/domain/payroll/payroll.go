package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"school_portal_core/internal/domain/term"
)

var ErrInvalidDateRange = errors.New("invalid payroll date range")

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds and requires start <= end.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := term.ParseDate(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q is not a calendar date", ErrInvalidDateRange, start)
	}
	e, err := term.ParseDate(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q is not a calendar date", ErrInvalidDateRange, end)
	}
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDateRange, start, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Contains reports whether the UTC calendar day of t is inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := term.Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(term.DateLayout) + ".." + r.End.Format(term.DateLayout)
}

// SessionRecord is one taught session as read from attendance/session rows.
type SessionRecord struct {
	ID              string          `json:"id"`
	CoachID         string          `json:"coachId"`
	CoachName       string          `json:"coachName"`
	ClassID         string          `json:"classId"`
	ClassName       string          `json:"className"`
	SessionDate     time.Time       `json:"sessionDate"`
	DurationMinutes int             `json:"durationMinutes"`
	HourlyRate      decimal.Decimal `json:"hourlyRate"`
	AttendeeCount   int             `json:"attendeeCount"`
}

// Pay is rate × minutes / 60, rounded to cents.
func (s SessionRecord) Pay() decimal.Decimal {
	return s.HourlyRate.
		Mul(decimal.NewFromInt(int64(s.DurationMinutes))).
		Div(decimal.NewFromInt(60)).
		Round(2)
}

// CoachSummary aggregates one coach's sessions in the range.
type CoachSummary struct {
	CoachID       string          `json:"coachId"`
	CoachName     string          `json:"coachName"`
	SessionCount  int             `json:"sessionCount"`
	TotalMinutes  int             `json:"totalMinutes"`
	AttendeeCount int             `json:"attendeeCount"`
	TotalPay      decimal.Decimal `json:"totalPay"`
}

// Totals is the sum over every CoachSummary.
type Totals struct {
	CoachCount   int             `json:"coachCount"`
	SessionCount int             `json:"sessionCount"`
	TotalMinutes int             `json:"totalMinutes"`
	TotalPay     decimal.Decimal `json:"totalPay"`
}

// Report is the payroll result for a range.
type Report struct {
	Range           DateRange       `json:"-"`
	StartDate       string          `json:"startDate"`
	EndDate         string          `json:"endDate"`
	Sessions        []SessionRecord `json:"sessions"`
	SummaryPerCoach []CoachSummary  `json:"summaryPerCoach"`
	Totals          Totals          `json:"totals"`
}

// Aggregate builds a report from records. Records outside the range, for a
// different coach (when coachID is set) or repeating an already-seen session
// id are skipped, so every qualifying session counts exactly once.
func Aggregate(r DateRange, coachID string, records []SessionRecord) Report {
	report := Report{
		Range:           r,
		StartDate:       r.Start.Format(term.DateLayout),
		EndDate:         r.End.Format(term.DateLayout),
		Sessions:        make([]SessionRecord, 0, len(records)),
		SummaryPerCoach: make([]CoachSummary, 0),
		Totals:          Totals{TotalPay: decimal.Zero},
	}

	seen := make(map[string]bool, len(records))
	byCoach := make(map[string]*CoachSummary)
	for _, rec := range records {
		if !r.Contains(rec.SessionDate) {
			continue
		}
		if coachID != "" && rec.CoachID != coachID {
			continue
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		report.Sessions = append(report.Sessions, rec)

		cs, ok := byCoach[rec.CoachID]
		if !ok {
			cs = &CoachSummary{CoachID: rec.CoachID, CoachName: rec.CoachName, TotalPay: decimal.Zero}
			byCoach[rec.CoachID] = cs
		}
		cs.SessionCount++
		cs.TotalMinutes += rec.DurationMinutes
		cs.AttendeeCount += rec.AttendeeCount
		cs.TotalPay = cs.TotalPay.Add(rec.Pay())
	}

	sort.SliceStable(report.Sessions, func(i, j int) bool {
		a, b := report.Sessions[i], report.Sessions[j]
		if !a.SessionDate.Equal(b.SessionDate) {
			return a.SessionDate.Before(b.SessionDate)
		}
		return a.ID < b.ID
	})

	for _, cs := range byCoach {
		report.SummaryPerCoach = append(report.SummaryPerCoach, *cs)
	}
	sort.Slice(report.SummaryPerCoach, func(i, j int) bool {
		a, b := report.SummaryPerCoach[i], report.SummaryPerCoach[j]
		if a.CoachName != b.CoachName {
			return a.CoachName < b.CoachName
		}
		return a.CoachID < b.CoachID
	})

	for _, cs := range report.SummaryPerCoach {
		report.Totals.CoachCount++
		report.Totals.SessionCount += cs.SessionCount
		report.Totals.TotalMinutes += cs.TotalMinutes
		report.Totals.TotalPay = report.Totals.TotalPay.Add(cs.TotalPay)
	}
	return report
}

// Repository reads session records for a range. coachID may be empty.
type Repository interface {
	ListSessions(ctx context.Context, r DateRange, coachID string) ([]SessionRecord, error)
}

package term

import (
	"context"
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Domain errors
var (
	ErrEmptyName      = errors.New("term name cannot be empty")
	ErrEmptyStartDate = errors.New("start date cannot be zero")
	ErrEmptyEndDate   = errors.New("end date cannot be zero")
	ErrInvalidDates   = errors.New("start date must not be after end date")
)

// Term is a closed calendar-day interval. Only the date component of
// StartDate and EndDate is meaningful; both are compared as UTC days.
type Term struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Validate checks if the Term has usable dates.
func (t Term) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.StartDate.IsZero() {
		return ErrEmptyStartDate
	}
	if t.EndDate.IsZero() {
		return ErrEmptyEndDate
	}
	if Day(t.StartDate).After(Day(t.EndDate)) {
		return ErrInvalidDates
	}
	return nil
}

// Contains reports whether date's UTC calendar day lies in [StartDate, EndDate].
func (t Term) Contains(date time.Time) bool {
	d := Day(date).Format(DateLayout)
	return d >= Day(t.StartDate).Format(DateLayout) && d <= Day(t.EndDate).Format(DateLayout)
}

// TotalWeeks is the number of whole weeks between start and end, never below 1.
func (t Term) TotalWeeks() int {
	w := DaysBetween(t.StartDate, t.EndDate) / 7
	if w < 1 {
		return 1
	}
	return w
}

// WeekNumber is the 1-based term week that date falls in. Dates before the
// term start report week 1.
func (t Term) WeekNumber(date time.Time) int {
	days := DaysBetween(t.StartDate, date)
	if days < 0 {
		return 1
	}
	return days/7 + 1
}

// Day truncates t to midnight of its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

var ErrTermNotFound = errors.New("term not found")

// Repository reads terms.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Term, error)
}

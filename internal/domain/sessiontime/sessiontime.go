// Package sessiontime resolves class session times across IANA zones.
//
// A class's schedule is always defined in the class's own zone. Callers must
// obtain a *time.Location through LoadZone (or ZoneOrDefault) before using any
// other function here, so unvalidated zone strings never reach the resolver.
package sessiontime

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database independent of the host

	"school_portal_core/internal/domain/term"
)

// DefaultViewerPattern renders date, 24-hour time and zone abbreviation.
const DefaultViewerPattern = "2006-01-02 15:04 MST"

const (
	rangeDayLayout  = "Mon Jan 2, 2006"
	rangeTimeLayout = "15:04"
)

var ErrInvalidTimezone = errors.New("invalid IANA timezone")

// LoadZone validates name as an IANA zone identifier. Empty names and "Local"
// are rejected because they do not identify a zone independent of the host.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

func IsValidTimezone(name string) bool {
	_, err := LoadZone(name)
	return err == nil
}

// ZoneOrDefault returns the zone for name, degrading to fallback (and then UTC)
// instead of failing.
func ZoneOrDefault(name string, fallback *time.Location) *time.Location {
	if loc, err := LoadZone(name); err == nil {
		return loc
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}

// IsSessionDateInTermRange compares date's UTC calendar day with the term's
// inclusive bounds. Time of day and viewer zone play no part.
func IsSessionDateInTermRange(t term.Term, date time.Time) bool {
	return t.Contains(date)
}

// IsClassScheduledToday reports whether now, observed in the class's own zone,
// falls on the class's weekday. scheduleDay may be an abbreviation ("Mon") or
// a full name ("monday").
func IsClassScheduledToday(scheduleDay string, classZone *time.Location, now time.Time) bool {
	want := weekdayKey(scheduleDay)
	if want == "" {
		return false
	}
	return weekdayKey(now.In(classZone).Format("Mon")) == want
}

func weekdayKey(day string) string {
	d := strings.ToLower(strings.TrimSpace(day))
	if len(d) < 3 {
		return ""
	}
	return d[:3]
}

// ResolveSessionCalendarDate is today's date (YYYY-MM-DD) in the class's zone.
func ResolveSessionCalendarDate(classZone *time.Location, now time.Time) string {
	return now.In(classZone).Format(term.DateLayout)
}

// FormatInstantForViewer renders instant in the viewer's zone. An empty
// pattern uses DefaultViewerPattern.
func FormatInstantForViewer(instant time.Time, viewerZone *time.Location, pattern string) string {
	if pattern == "" {
		pattern = DefaultViewerPattern
	}
	return instant.In(viewerZone).Format(pattern)
}

// SessionStart is the instant a session on sessionDate begins when startTime
// is read as wall-clock time in sourceZone.
func SessionStart(sessionDate, startTime string, sourceZone *time.Location) (time.Time, error) {
	return wallClock(sessionDate, startTime, sourceZone)
}

// SessionBounds returns the start and end instants of a session. An end that
// is not after the start belongs to the following day.
func SessionBounds(sessionDate, startTime, endTime string, sourceZone *time.Location) (time.Time, time.Time, error) {
	start, err := wallClock(sessionDate, startTime, sourceZone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := wallClock(sessionDate, endTime, sourceZone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		d, _ := time.Parse(term.DateLayout, sessionDate)
		end, err = wallClock(d.AddDate(0, 0, 1).Format(term.DateLayout), endTime, sourceZone)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// FormatSessionRangeForRecipient reads sessionDate + start/end as wall-clock
// values in sourceZone, converts both instants into recipientZone and renders
// the range there, e.g. "Tue Jun 11, 2024 09:00–10:00 CST".
func FormatSessionRangeForRecipient(sessionDate, startTime, endTime string, sourceZone, recipientZone *time.Location) (string, error) {
	start, end, err := SessionBounds(sessionDate, startTime, endTime, sourceZone)
	if err != nil {
		return "", err
	}
	ls := start.In(recipientZone)
	le := end.In(recipientZone)

	if ls.Format(term.DateLayout) == le.Format(term.DateLayout) {
		return fmt.Sprintf("%s %s–%s %s",
			ls.Format(rangeDayLayout), ls.Format(rangeTimeLayout), le.Format(rangeTimeLayout), le.Format("MST")), nil
	}
	return fmt.Sprintf("%s %s – %s %s %s",
		ls.Format(rangeDayLayout), ls.Format(rangeTimeLayout),
		le.Format(rangeDayLayout), le.Format(rangeTimeLayout), le.Format("MST")), nil
}

// wallClock reads date + clock as local time in loc. Clock values may carry
// seconds ("18:00:00") as stored by TIME columns.
func wallClock(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	layout := term.DateLayout + " 15:04"
	if strings.Count(clock, ":") == 2 {
		layout += ":05"
	}
	t, err := time.ParseInLocation(layout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session time %q %q: %w", date, clock, err)
	}
	return t, nil
}

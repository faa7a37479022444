package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/class"
	"school_portal_core/internal/domain/notification"
	"school_portal_core/internal/domain/preference"
	"school_portal_core/internal/domain/sessiontime"
	"school_portal_core/internal/domain/term"
	"school_portal_core/internal/infra/email"
	"school_portal_core/internal/infra/metrics"
)

// ReminderDispatcher is what the scheduler drives.
type ReminderDispatcher interface {
	DispatchDayBefore(ctx context.Context, now time.Time) (DispatchStats, error)
	DispatchHourBefore(ctx context.Context, now time.Time) (DispatchStats, error)
}

// DispatchStats summarizes one dispatch run.
type DispatchStats struct {
	Classes    int // class sessions that qualified
	Sent       int
	OptedOut   int
	Duplicates int // already claimed by an earlier or overlapping run
	Failed     int
}

// ReminderService emails class reminders to enrolled profiles, rendering the
// session time in each recipient's own zone.
type ReminderService struct {
	classes     class.Repository
	terms       term.Repository
	claims      notification.Repository
	sender      email.Sender
	defaultZone *time.Location
	window      time.Duration
	logger      *logrus.Entry
}

var _ ReminderDispatcher = (*ReminderService)(nil)

func NewReminderService(
	classes class.Repository,
	terms term.Repository,
	claims notification.Repository,
	sender email.Sender,
	defaultZone *time.Location,
	window time.Duration,
	logger *logrus.Entry,
) *ReminderService {
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	return &ReminderService{
		classes:     classes,
		terms:       terms,
		claims:      claims,
		sender:      sender,
		defaultZone: defaultZone,
		window:      window,
		logger:      logger,
	}
}

// DispatchDayBefore reminds recipients of every class that meets tomorrow, as
// observed in the class's own zone.
func (s *ReminderService) DispatchDayBefore(ctx context.Context, now time.Time) (DispatchStats, error) {
	return s.dispatch(ctx, preference.ReminderTypeDayBefore, func(c class.Class, loc *time.Location) (string, bool) {
		tomorrow := now.In(loc).AddDate(0, 0, 1)
		if !sessiontime.IsClassScheduledToday(c.ScheduleDay, loc, tomorrow) {
			return "", false
		}
		return sessiontime.ResolveSessionCalendarDate(loc, tomorrow), true
	})
}

// DispatchHourBefore reminds recipients of sessions starting in
// [now+1h, now+1h+window).
func (s *ReminderService) DispatchHourBefore(ctx context.Context, now time.Time) (DispatchStats, error) {
	from := now.Add(time.Hour)
	to := from.Add(s.window)
	return s.dispatch(ctx, preference.ReminderTypeHourBefore, func(c class.Class, loc *time.Location) (string, bool) {
		// The window may straddle midnight in the class's zone.
		for _, probe := range []time.Time{from, to.Add(-time.Nanosecond)} {
			if !sessiontime.IsClassScheduledToday(c.ScheduleDay, loc, probe) {
				continue
			}
			date := sessiontime.ResolveSessionCalendarDate(loc, probe)
			start, err := sessiontime.SessionStart(date, c.StartTime, loc)
			if err != nil {
				continue
			}
			if !start.Before(from) && start.Before(to) {
				return date, true
			}
		}
		return "", false
	})
}

// sessionFinder returns the session date (in the class's zone) a reminder
// run applies to, if any.
type sessionFinder func(c class.Class, loc *time.Location) (string, bool)

func (s *ReminderService) dispatch(ctx context.Context, rt preference.ReminderType, find sessionFinder) (DispatchStats, error) {
	var stats DispatchStats
	log := s.logger.WithField("reminder_type", rt)

	classes, err := s.classes.ListActive(ctx)
	if err != nil {
		return stats, apperr.Upstream("storage", err)
	}

	terms := make(map[string]*term.Term)
	for _, c := range classes {
		clog := log.WithFields(logrus.Fields{"class_id": c.ID, "class": c.Name})
		loc, err := sessiontime.LoadZone(c.Timezone)
		if err != nil {
			clog.WithError(err).Warn("Class has an invalid timezone; skipping")
			continue
		}
		sessionDate, ok := find(c, loc)
		if !ok {
			continue
		}
		inTerm, err := s.inTerm(ctx, terms, c.TermID, sessionDate)
		if err != nil {
			clog.WithError(err).Warn("Could not resolve class term; skipping")
			continue
		}
		if !inTerm {
			clog.WithField("session_date", sessionDate).Debug("Session date is outside the class term")
			continue
		}

		stats.Classes++
		if err := s.notifyClass(ctx, clog, c, loc, sessionDate, rt, &stats); err != nil {
			clog.WithError(err).Error("Failed to notify class")
		}
	}

	log.WithFields(logrus.Fields{
		"classes":    stats.Classes,
		"sent":       stats.Sent,
		"opted_out":  stats.OptedOut,
		"duplicates": stats.Duplicates,
		"failed":     stats.Failed,
	}).Info("Reminder dispatch finished")
	return stats, nil
}

func (s *ReminderService) inTerm(ctx context.Context, cache map[string]*term.Term, termID, sessionDate string) (bool, error) {
	t, ok := cache[termID]
	if !ok {
		var err error
		t, err = s.terms.GetByID(ctx, termID)
		if err != nil {
			return false, err
		}
		cache[termID] = t
	}
	day, err := term.ParseDate(sessionDate)
	if err != nil {
		return false, err
	}
	return sessiontime.IsSessionDateInTermRange(*t, day), nil
}

func (s *ReminderService) notifyClass(
	ctx context.Context,
	log *logrus.Entry,
	c class.Class,
	loc *time.Location,
	sessionDate string,
	rt preference.ReminderType,
	stats *DispatchStats,
) error {
	recipients, err := s.classes.ListRecipients(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("listing recipients: %w", err)
	}

	var (
		msgs   []email.Message
		claims []notification.ReminderClaim
	)
	for _, r := range recipients {
		if !preference.Parse(r.Preferences).AllowsReminderEmail(rt) {
			stats.OptedOut++
			metrics.RemindersDispatched.WithLabelValues(string(rt), "opted_out").Inc()
			continue
		}
		when, err := sessiontime.FormatSessionRangeForRecipient(sessionDate, c.StartTime, c.EndTime, loc,
			sessiontime.ZoneOrDefault(r.Timezone, s.defaultZone))
		if err != nil {
			return fmt.Errorf("class has unusable session times: %w", err)
		}
		msg, err := reminderMessage(r, c, when, rt)
		if err != nil {
			stats.Failed++
			metrics.RemindersDispatched.WithLabelValues(string(rt), "failed").Inc()
			log.WithError(err).Warn("Skipping reminder recipient")
			continue
		}

		claim := notification.ReminderClaim{
			ClassID:     c.ID,
			SessionDate: sessionDate,
			ProfileID:   r.ProfileID,
			Type:        rt,
			ClaimedAt:   time.Now().UTC(),
		}
		claimed, err := s.claims.ClaimReminder(ctx, claim)
		if err != nil {
			stats.Failed++
			metrics.RemindersDispatched.WithLabelValues(string(rt), "failed").Inc()
			log.WithError(err).WithField("profile_id", r.ProfileID).Error("Failed to claim reminder")
			continue
		}
		if !claimed {
			stats.Duplicates++
			metrics.RemindersDispatched.WithLabelValues(string(rt), "duplicate").Inc()
			continue
		}
		msgs = append(msgs, msg)
		claims = append(claims, claim)
	}

	for i, out := range email.SendAll(ctx, s.sender, log, msgs) {
		if out.Err == nil {
			stats.Sent++
			metrics.RemindersDispatched.WithLabelValues(string(rt), "sent").Inc()
			continue
		}
		stats.Failed++
		metrics.RemindersDispatched.WithLabelValues(string(rt), "failed").Inc()
		// Let a later run retry this recipient.
		if err := s.claims.ReleaseReminder(ctx, claims[i]); err != nil {
			log.WithError(err).WithField("profile_id", claims[i].ProfileID).Warn("Failed to release reminder claim")
		}
	}
	return nil
}

var errNoRecipientAddress = errors.New("recipient has no email address")

func reminderMessage(r class.Recipient, c class.Class, when string, rt preference.ReminderType) (email.Message, error) {
	if r.Email == "" {
		return email.Message{}, fmt.Errorf("profile %s: %w", r.ProfileID, errNoRecipientAddress)
	}
	name := r.DisplayName
	if name == "" {
		name = "there"
	}
	var subject, lead string
	switch rt {
	case preference.ReminderTypeHourBefore:
		subject = fmt.Sprintf("Reminder: %s starts in one hour", c.Name)
		lead = "starts in about an hour"
	default:
		subject = fmt.Sprintf("Reminder: %s is tomorrow", c.Name)
		lead = "is coming up tomorrow"
	}
	body := fmt.Sprintf("Hi %s,\n\n**%s** %s.\n\nWhen: %s\n\nSee you in class!", name, c.Name, lead, when)
	return email.FromMarkdown([]string{r.Email}, subject, body)
}

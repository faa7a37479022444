package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"school_portal_core/internal/app"
)

// Sweeper evicts expired state. The in-memory rate limiter satisfies it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Specs holds the cron expressions for each job. An empty spec disables the job.
type Specs struct {
	DayBefore      string // e.g. "0 17 * * *" (17:00 daily)
	HourBefore     string // e.g. "*/5 * * * *"
	RateLimitSweep string // e.g. "*/10 * * * *"
	// Location the specs are evaluated in; nil means UTC.
	Location *time.Location
}

type ReminderScheduler struct {
	cronEngine *cron.Cron
	reminders  app.ReminderDispatcher
	sweeper    Sweeper
	logger     *logrus.Entry
	specs      Specs
	now        func() time.Time
}

func NewReminderScheduler(reminders app.ReminderDispatcher, sweeper Sweeper, logger *logrus.Entry, specs Specs) *ReminderScheduler {
	loc := specs.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		reminders:  reminders,
		sweeper:    sweeper,
		logger:     logger,
		specs:      specs,
		now:        time.Now,
	}
}

// Start registers the jobs and starts the cron engine. Nothing runs if any
// spec fails to parse.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"day_before", s.specs.DayBefore, s.runDayBefore},
		{"hour_before", s.specs.HourBefore, s.runHourBefore},
		{"rate_limit_sweep", s.specs.RateLimitSweep, s.runSweep},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.logger.WithField("job", j.name).Info("Cron job disabled")
			continue
		}
		if j.name == "rate_limit_sweep" && s.sweeper == nil {
			continue
		}
		if _, err := s.cronEngine.AddFunc(j.spec, j.run); err != nil {
			return errors.Wrapf(err, "add %s cron job (%q)", j.name, j.spec)
		}
		s.logger.WithFields(logrus.Fields{"job": j.name, "spec": j.spec}).Info("Cron job registered")
	}

	s.cronEngine.Start()
	s.logger.Info("Reminder scheduler started with jobs.")
	return nil
}

func (s *ReminderScheduler) runDayBefore() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.dispatch(ctx, "day_before", s.reminders.DispatchDayBefore)
}

func (s *ReminderScheduler) runHourBefore() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()
	s.dispatch(ctx, "hour_before", s.reminders.DispatchHourBefore)
}

func (s *ReminderScheduler) dispatch(ctx context.Context, job string, fn func(context.Context, time.Time) (app.DispatchStats, error)) {
	logCtx := s.logger.WithField("job", job)
	logCtx.Info("Cron job triggered")
	stats, err := fn(ctx, s.now())
	if err != nil {
		logCtx.WithError(err).Error("Reminder dispatch failed")
		return
	}
	logCtx.WithFields(logrus.Fields{
		"classes":    stats.Classes,
		"sent":       stats.Sent,
		"opted_out":  stats.OptedOut,
		"duplicates": stats.Duplicates,
		"failed":     stats.Failed,
	}).Info("Reminder dispatch finished")
}

func (s *ReminderScheduler) runSweep() {
	if n := s.sweeper.Sweep(s.now()); n > 0 {
		s.logger.WithField("evicted", n).Debug("Rate limit windows swept")
	}
}

// Stop stops the cron engine and waits for running jobs.
func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}

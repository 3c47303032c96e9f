// Package scheduler fires the daily scrape at the configured exchange
// time and the weekly recurrence digest. Only one scrape runs at a
// time; a trigger arriving mid-run is dropped, not queued.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Nityess/GenerateWealth/internal/notify"
	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (domain.ScrapeRun, error)
}

// Analyzer produces recurrence statistics over a trailing window.
type Analyzer interface {
	Analyze(ctx context.Context, category domain.Category, windowDays, minOccurrences int) ([]domain.RecurrenceResult, error)
}

// RecordSource reads stored snapshots, used for the IPO digest.
type RecordSource interface {
	Query(ctx context.Context, category domain.Category, sinceDays int) ([]domain.Record, error)
}

// Config fixes the daily and weekly trigger times.
type Config struct {
	Location     *time.Location
	DailyHour    int
	DailyMinute  int
	WeeklyDay    time.Weekday
	WeeklyHour   int
	WeeklyMinute int
	// WindowDays and MinOccurrences parameterize the weekly digest.
	WindowDays     int
	MinOccurrences int
}

// Scheduler owns the two recurring jobs.
type Scheduler struct {
	runner   Runner
	analyzer Analyzer
	records  RecordSource
	notifier notify.Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	inFlight atomic.Bool
}

// New creates a Scheduler.
func New(runner Runner, analyzer Analyzer, records RecordSource, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.MinOccurrences <= 0 {
		cfg.MinOccurrences = 3
	}
	return &Scheduler{
		runner:   runner,
		analyzer: analyzer,
		records:  records,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scheduler")),
		now:      time.Now,
	}
}

// Start blocks, firing jobs at their trigger times until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.String("daily", timeOfDay(s.cfg.DailyHour, s.cfg.DailyMinute)),
		slog.String("weekly_day", s.cfg.WeeklyDay.String()),
		slog.String("weekly", timeOfDay(s.cfg.WeeklyHour, s.cfg.WeeklyMinute)),
		slog.String("timezone", s.cfg.Location.String()))

	for {
		now := s.now().In(s.cfg.Location)
		nextDaily := s.nextDaily(now)
		nextWeekly := s.nextWeekly(now)

		next := nextDaily
		job := s.RunDaily
		name := "daily_scrape"
		if nextWeekly.Before(nextDaily) {
			next = nextWeekly
			job = s.runWeekly
			name = "weekly_digest"
		}

		s.logger.Debug("next trigger",
			slog.String("job", name),
			slog.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			job(ctx)
		}
	}
}

// RunDaily triggers one scrape unless another is already in flight.
func (s *Scheduler) RunDaily(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("scrape already in flight, trigger dropped")
		return
	}
	defer s.inFlight.Store(false)

	run, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled scrape failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled scrape finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)))
}

// runWeekly publishes the recurrence digest: persistent gainers,
// persistent losers, and the current IPO board.
func (s *Scheduler) runWeekly(ctx context.Context) {
	for _, category := range []domain.Category{domain.CategoryGainers, domain.CategoryLosers} {
		results, err := s.analyzer.Analyze(ctx, category, s.cfg.WindowDays, s.cfg.MinOccurrences)
		if err != nil {
			s.logger.Error("weekly analysis failed",
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
			continue
		}
		if len(results) == 0 {
			continue
		}
		s.notifier.Recurrence(ctx, category, results)
	}

	ipos, err := s.records.Query(ctx, domain.CategoryIPO, s.cfg.WindowDays)
	if err != nil {
		s.logger.Error("ipo digest query failed", slog.String("error", err.Error()))
		return
	}
	if len(ipos) > 0 {
		s.notifier.IPODigest(ctx, ipos)
	}
}

// nextDaily returns the next daily trigger strictly after now.
func (s *Scheduler) nextDaily(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.DailyHour, s.cfg.DailyMinute, 0, 0, s.cfg.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next weekly trigger strictly after now.
func (s *Scheduler) nextWeekly(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.WeeklyHour, s.cfg.WeeklyMinute, 0, 0, s.cfg.Location)
	days := (int(s.cfg.WeeklyDay) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func timeOfDay(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}

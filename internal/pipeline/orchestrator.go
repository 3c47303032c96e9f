// Package pipeline coordinates one end-to-end scrape: fetch every
// category page, normalize the tables, detect market-closure replays,
// and commit what survives. Categories are isolated, one broken page
// never takes down the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Nityess/GenerateWealth/internal/dataprocessing"
	"github.com/Nityess/GenerateWealth/internal/notify"
	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// PageFetcher renders one page and returns its HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Storage is the slice of the store the orchestrator needs.
type Storage interface {
	Append(ctx context.Context, category domain.Category, records []domain.Record) (int, error)
	RecordRun(ctx context.Context, run domain.ScrapeRun) error
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// Config carries the run-time knobs of the orchestrator.
type Config struct {
	// Pages maps category names to their source URLs. Categories
	// without a page are not scraped.
	Pages map[string]string
	// ClosureThreshold is the closed-vote share at which the whole run
	// is treated as a market-closure replay.
	ClosureThreshold float64
	// RetentionDays bounds stored history; committed runs purge older
	// rows. Zero disables purging.
	RetentionDays int
	// Concurrency bounds parallel page fetches.
	Concurrency int
	// Location is the exchange's timezone, used to stamp snapshot dates.
	Location *time.Location
	// Weekend and Holidays short-circuit runs on non-trading days.
	Weekend  map[time.Weekday]bool
	Holidays map[string]bool
}

// Orchestrator drives the scrape pipeline.
type Orchestrator struct {
	fetcher    PageFetcher
	normalizer *dataprocessing.Normalizer
	detector   *dataprocessing.Detector
	store      Storage
	notifier   notify.Notifier
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Orchestrator.
func New(fetcher PageFetcher, normalizer *dataprocessing.Normalizer, detector *dataprocessing.Detector,
	store Storage, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Orchestrator{
		fetcher:    fetcher,
		normalizer: normalizer,
		detector:   detector,
		store:      store,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "pipeline")),
		now:        time.Now,
	}
}

// Run executes one full pipeline pass and returns the recorded run.
// The returned error covers infrastructure failures only; scrape
// problems land in the run's status and detail instead.
func (o *Orchestrator) Run(ctx context.Context) (domain.ScrapeRun, error) {
	started := o.now().In(o.cfg.Location)
	run := domain.ScrapeRun{
		ID:       uuid.NewString(),
		Date:     started.Format(domain.DateFormat),
		Time:     started.Format("15:04:05"),
		Outcomes: make(map[string]domain.RunStatus),
	}
	defer func(t0 time.Time) {
		runDuration.Observe(time.Since(t0).Seconds())
	}(time.Now())

	logger := o.logger.With(slog.String("run_id", run.ID), slog.String("date", run.Date))

	if reason := o.nonTradingDay(started); reason != "" {
		logger.Info("non-trading day, skipping run", slog.String("reason", reason))
		run.Status = domain.RunSkippedHoliday
		run.Detail = reason
		return o.finish(ctx, run, logger)
	}

	states := o.scrapeAll(ctx, run.Date, logger)

	if o.marketClosed(ctx, states, logger) {
		var decisions []domain.ClosureDecision
		for _, st := range states {
			if _, _, err := st.snapshot(); err != nil {
				run.Outcomes[string(st.category)] = domain.RunFailed
				categoryOutcomes.WithLabelValues(string(st.category), string(domain.RunFailed)).Inc()
				continue
			}
			st.setStage(StageSkipped)
			run.Outcomes[string(st.category)] = domain.RunSkippedStale
			categoryOutcomes.WithLabelValues(string(st.category), string(domain.RunSkippedStale)).Inc()
			if st.decision.Rows > 0 {
				decisions = append(decisions, st.decision)
			}
		}
		run.Status = worstStatus(run.Outcomes)
		run.Detail = "previous session replayed, market closed"
		if failures := failureDetail(states); failures != "" {
			run.Detail += "; " + failures
		}
		o.notifier.MarketClosed(ctx, run.Date, decisions)
		return o.finish(ctx, run, logger)
	}

	run.Records = o.commit(ctx, states, run.Outcomes, logger)
	run.Status = worstStatus(run.Outcomes)
	run.Detail = failureDetail(states)

	if run.Records > 0 && o.cfg.RetentionDays > 0 {
		if _, err := o.store.PurgeOlderThan(ctx, o.cfg.RetentionDays); err != nil {
			logger.Warn("retention purge failed", slog.String("error", err.Error()))
		}
	}
	return o.finish(ctx, run, logger)
}

// nonTradingDay reports why the date is not a trading day, or empty.
func (o *Orchestrator) nonTradingDay(t time.Time) string {
	if o.cfg.Weekend[t.Weekday()] {
		return fmt.Sprintf("weekend (%s)", t.Weekday())
	}
	if o.cfg.Holidays[t.Format(domain.DateFormat)] {
		return "exchange holiday"
	}
	return ""
}

// scrapeAll fetches and parses every configured category concurrently.
func (o *Orchestrator) scrapeAll(ctx context.Context, date string, logger *slog.Logger) map[domain.Category]*categoryState {
	states := make(map[domain.Category]*categoryState)
	var categories []domain.Category
	for _, category := range domain.AllCategories() {
		if _, ok := o.cfg.Pages[string(category)]; !ok {
			continue
		}
		states[category] = newCategoryState(category)
		categories = append(categories, category)
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for _, category := range categories {
		st := states[category]
		url := o.cfg.Pages[string(category)]
		g.Go(func() error {
			o.scrapeCategory(ctx, st, url, date, logger)
			return nil
		})
	}
	g.Wait()
	return states
}

func (o *Orchestrator) scrapeCategory(ctx context.Context, st *categoryState, url, date string, logger *slog.Logger) {
	st.setStage(StageFetching)
	html, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		fetchFailures.WithLabelValues(string(st.category)).Inc()
		logger.Error("category fetch failed",
			slog.String("category", string(st.category)),
			slog.String("error", err.Error()))
		st.fail(err)
		return
	}

	st.setStage(StageParsing)
	schema, err := domain.SchemaFor(st.category)
	if err != nil {
		st.fail(err)
		return
	}
	records, err := o.normalizer.Normalize(html, schema, date)
	if err != nil {
		logger.Error("category parse failed",
			slog.String("category", string(st.category)),
			slog.String("error", err.Error()))
		st.fail(err)
		return
	}

	logger.Info("category scraped",
		slog.String("category", string(st.category)),
		slog.Int("records", len(records)))
	st.setRecords(records)
}

// marketClosed runs the closure vote over the primary categories that
// produced records. Categories that failed to scrape carry no vote.
func (o *Orchestrator) marketClosed(ctx context.Context, states map[domain.Category]*categoryState, logger *slog.Logger) bool {
	var decisions []domain.ClosureDecision
	for _, category := range domain.PrimaryCategories() {
		st, ok := states[category]
		if !ok {
			continue
		}
		_, records, err := st.snapshot()
		if err != nil || len(records) == 0 {
			continue
		}
		st.setStage(StageClosureCheck)
		st.decision = o.detector.Check(ctx, category, records)
		decisions = append(decisions, st.decision)
	}

	closed := dataprocessing.Vote(decisions, o.cfg.ClosureThreshold)
	if closed {
		logger.Info("closure vote passed", slog.Int("decisions", len(decisions)))
	}
	return closed
}

// commit appends every successfully scraped category and fills in the
// per-category outcomes. Returns the total rows written.
func (o *Orchestrator) commit(ctx context.Context, states map[domain.Category]*categoryState, outcomes map[string]domain.RunStatus, logger *slog.Logger) int {
	total := 0
	for category, st := range states {
		_, records, err := st.snapshot()
		if err != nil {
			outcomes[string(category)] = domain.RunFailed
			categoryOutcomes.WithLabelValues(string(category), string(domain.RunFailed)).Inc()
			continue
		}

		st.setStage(StageCommitting)
		written, err := o.store.Append(ctx, category, records)
		if err != nil {
			logger.Error("category commit failed",
				slog.String("category", string(category)),
				slog.String("error", err.Error()))
			st.fail(err)
			outcomes[string(category)] = domain.RunFailed
			categoryOutcomes.WithLabelValues(string(category), string(domain.RunFailed)).Inc()
			continue
		}

		total += written
		st.setStage(StageLogged)
		outcomes[string(category)] = domain.RunCommitted
		categoryOutcomes.WithLabelValues(string(category), string(domain.RunCommitted)).Inc()
		recordsWritten.WithLabelValues(string(category)).Add(float64(written))
	}
	return total
}

// finish records the run, fires the summary notification, and bumps
// the run counter. Recording failures are the one thing Run reports as
// an error.
func (o *Orchestrator) finish(ctx context.Context, run domain.ScrapeRun, logger *slog.Logger) (domain.ScrapeRun, error) {
	run.Categories = joinOutcomeKeys(run.Outcomes)
	runsTotal.WithLabelValues(string(run.Status)).Inc()

	if err := o.store.RecordRun(ctx, run); err != nil {
		logger.Error("run log append failed", slog.String("error", err.Error()))
		return run, fmt.Errorf("record run: %w", err)
	}

	o.notifier.DailySummary(ctx, run)
	logger.Info("run finished",
		slog.String("status", string(run.Status)),
		slog.Int("records_added", run.Records))
	return run, nil
}

func failureDetail(states map[domain.Category]*categoryState) string {
	var parts []string
	for category, st := range states {
		if _, _, err := st.snapshot(); err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", category, err))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func joinOutcomeKeys(outcomes map[string]domain.RunStatus) string {
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

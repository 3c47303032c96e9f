// Package app wires the service together: config, logging, storage,
// the scrape pipeline, the scheduler, and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nityess/GenerateWealth/internal/config"
	"github.com/Nityess/GenerateWealth/internal/dataprocessing"
	"github.com/Nityess/GenerateWealth/internal/fetch"
	"github.com/Nityess/GenerateWealth/internal/infrastructure"
	"github.com/Nityess/GenerateWealth/internal/notify"
	"github.com/Nityess/GenerateWealth/internal/pipeline"
	"github.com/Nityess/GenerateWealth/internal/scheduler"
	"github.com/Nityess/GenerateWealth/internal/store"
	transporthttp "github.com/Nityess/GenerateWealth/internal/transport/http"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application holds the wired service.
type Application struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	fetcher   *fetch.Fetcher
	pipeline  *pipeline.Orchestrator
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// NewApplication builds the full service from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, cfg.Closure.RowCap, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := fetch.New(cfg.Scraper, logger)
	orch, err := buildOrchestrator(cfg, fetcher, st, logger)
	if err != nil {
		st.Close()
		fetcher.Close()
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		st.Close()
		fetcher.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	weeklyDay, err := cfg.Schedule.WeeklyWeekday()
	if err != nil {
		st.Close()
		fetcher.Close()
		return nil, err
	}

	notifier := notify.NewLogNotifier(logger)
	analyzer := dataprocessing.NewAnalyzer(st, logger)
	sched := scheduler.New(orch, analyzer, st, notifier, scheduler.Config{
		Location:     loc,
		DailyHour:    cfg.Schedule.Hour,
		DailyMinute:  cfg.Schedule.Minute,
		WeeklyDay:    weeklyDay,
		WeeklyHour:   cfg.Schedule.WeeklyHour,
		WeeklyMinute: cfg.Schedule.WeeklyMinute,
	}, logger)

	dataHandler := transporthttp.NewDataHandler(st, analyzer, logger)
	healthHandler := transporthttp.NewHealthHandler(st, Version)
	router := transporthttp.NewRouter(dataHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		fetcher:   fetcher,
		pipeline:  orch,
		scheduler: sched,
		server:    server,
	}, nil
}

// buildOrchestrator assembles the pipeline from configuration. Shared
// by the service and the one-shot scraper binary.
func buildOrchestrator(cfg *config.Config, fetcher pipeline.PageFetcher, st *store.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	weekendDays, err := cfg.Schedule.Weekend()
	if err != nil {
		return nil, err
	}
	weekend := make(map[time.Weekday]bool, len(weekendDays))
	for _, d := range weekendDays {
		weekend[d] = true
	}
	holidays, err := cfg.Schedule.HolidaySet()
	if err != nil {
		return nil, err
	}

	normalizer := dataprocessing.NewNormalizer(logger)
	detector := dataprocessing.NewDetector(st, cfg.Closure.RowCap, logger)
	notifier := notify.NewLogNotifier(logger)

	return pipeline.New(fetcher, normalizer, detector, st, notifier, pipeline.Config{
		Pages:            cfg.Scraper.Pages,
		ClosureThreshold: cfg.Closure.Threshold,
		RetentionDays:    cfg.Retention.Days,
		Location:         loc,
		Weekend:          weekend,
		Holidays:         holidays,
	}, logger), nil
}

// NewOrchestrator builds a standalone pipeline for one-shot runs.
// The caller owns the store and fetcher lifecycles.
func NewOrchestrator(cfg *config.Config, fetcher pipeline.PageFetcher, st *store.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	return buildOrchestrator(cfg, fetcher, st, logger)
}

// Run starts the HTTP server and the scheduler, then blocks until a
// shutdown signal arrives and both have stopped.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.scheduler.Start(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *Application) close() {
	a.fetcher.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close failed", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()
}

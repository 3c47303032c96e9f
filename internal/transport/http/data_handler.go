// Package http exposes the stored snapshots, recurrence analytics, and
// run log over a JSON API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Nityess/GenerateWealth/internal/dataprocessing"
	apierrors "github.com/Nityess/GenerateWealth/internal/errors"
	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// DataService is the read side of the store.
type DataService interface {
	Query(ctx context.Context, category domain.Category, sinceDays int) ([]domain.Record, error)
	LatestSnapshot(ctx context.Context, category domain.Category) ([]domain.Record, error)
	Runs(ctx context.Context, sinceDays, limit int) ([]domain.ScrapeRun, error)
}

// AnalyticsService computes recurrence statistics.
type AnalyticsService interface {
	Analyze(ctx context.Context, category domain.Category, windowDays, minOccurrences int) ([]domain.RecurrenceResult, error)
}

// DataHandler serves the snapshot and analytics endpoints.
type DataHandler struct {
	service   DataService
	analytics AnalyticsService
	logger    *slog.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(service DataService, analytics AnalyticsService, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		service:   service,
		analytics: analytics,
		logger:    logger.With(slog.String("component", "data_handler")),
	}
}

// Routes returns the data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/runs", h.GetRuns)

	r.Route("/{category}", func(r chi.Router) {
		r.Use(h.CategoryCtx)
		r.Get("/", h.GetSnapshots)
		r.Get("/latest", h.GetLatest)
		r.Get("/recurrence", h.GetRecurrence)
	})

	return r
}

type contextKey string

const categoryKey contextKey = "category"

// CategoryCtx validates the category path parameter and loads it into
// the request context.
func (h *DataHandler) CategoryCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "category")
		category, err := domain.ParseCategory(name)
		if err != nil {
			apierrors.WriteError(w, apierrors.UnknownCategoryError(name))
			return
		}
		ctx := context.WithValue(r.Context(), categoryKey, category)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func categoryFrom(ctx context.Context) domain.Category {
	category, _ := ctx.Value(categoryKey).(domain.Category)
	return category
}

// SnapshotResponse wraps a list of snapshot records.
type SnapshotResponse struct {
	Success  bool            `json:"success"`
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
	Records  []domain.Record `json:"records"`
}

// GetSnapshots handles GET /api/data/{category}?days=N.
func (h *DataHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	category := categoryFrom(r.Context())
	days, apiErr := queryInt(r, "days", 7)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}

	records, err := h.service.Query(r.Context(), category, days)
	if err != nil {
		h.logSvcError(r, "query snapshots", err)
		apierrors.WriteError(w, apierrors.StorageError("query", err))
		return
	}

	render.JSON(w, r, SnapshotResponse{
		Success:  true,
		Category: category,
		Count:    len(records),
		Records:  emptyIfNil(records),
	})
}

// GetLatest handles GET /api/data/{category}/latest.
func (h *DataHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	category := categoryFrom(r.Context())

	records, err := h.service.LatestSnapshot(r.Context(), category)
	if err != nil {
		h.logSvcError(r, "latest snapshot", err)
		apierrors.WriteError(w, apierrors.StorageError("latest snapshot", err))
		return
	}

	render.JSON(w, r, SnapshotResponse{
		Success:  true,
		Category: category,
		Count:    len(records),
		Records:  emptyIfNil(records),
	})
}

// RecurrenceResponse wraps the recurrence analysis of one category.
type RecurrenceResponse struct {
	Success    bool                      `json:"success"`
	Category   domain.Category           `json:"category"`
	WindowDays int                       `json:"window_days"`
	Results    []domain.RecurrenceResult `json:"results"`
}

// GetRecurrence handles GET /api/data/{category}/recurrence?days=N&min=M.
func (h *DataHandler) GetRecurrence(w http.ResponseWriter, r *http.Request) {
	category := categoryFrom(r.Context())
	days, apiErr := queryInt(r, "days", 7)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	minOcc, apiErr := queryInt(r, "min", 3)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}

	results, err := h.analytics.Analyze(r.Context(), category, days, minOcc)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrNoMetric) {
			apierrors.WriteError(w, apierrors.InvalidParameterError("category",
				"recurrence analysis is not available for this category"))
			return
		}
		h.logSvcError(r, "recurrence analysis", err)
		apierrors.WriteError(w, apierrors.StorageError("recurrence analysis", err))
		return
	}

	if results == nil {
		results = []domain.RecurrenceResult{}
	}
	render.JSON(w, r, RecurrenceResponse{
		Success:    true,
		Category:   category,
		WindowDays: days,
		Results:    results,
	})
}

// RunsResponse wraps the run log.
type RunsResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Runs    []domain.ScrapeRun `json:"runs"`
}

// GetRuns handles GET /api/data/runs?days=N&limit=N. Without a days
// window the most recent entries are returned regardless of age.
func (h *DataHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	days, apiErr := queryInt(r, "days", 0)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	limit, apiErr := queryInt(r, "limit", 50)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}

	runs, err := h.service.Runs(r.Context(), days, limit)
	if err != nil {
		h.logSvcError(r, "query runs", err)
		apierrors.WriteError(w, apierrors.StorageError("query runs", err))
		return
	}

	if runs == nil {
		runs = []domain.ScrapeRun{}
	}
	render.JSON(w, r, RunsResponse{Success: true, Count: len(runs), Runs: runs})
}

func (h *DataHandler) logSvcError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "service call failed",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()))
}

func queryInt(r *http.Request, name string, fallback int) (int, *apierrors.APIError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, apierrors.InvalidParameterError(name, "must be a positive integer")
	}
	return v, nil
}

func emptyIfNil(records []domain.Record) []domain.Record {
	if records == nil {
		return []domain.Record{}
	}
	return records
}

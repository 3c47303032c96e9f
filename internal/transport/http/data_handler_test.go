package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nityess/GenerateWealth/internal/dataprocessing"
	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDataService struct {
	records   []domain.Record
	latest    []domain.Record
	runs      []domain.ScrapeRun
	err       error
	lastDays  int
	lastLimit int
}

func (s *stubDataService) Query(ctx context.Context, category domain.Category, sinceDays int) ([]domain.Record, error) {
	s.lastDays = sinceDays
	return s.records, s.err
}

func (s *stubDataService) LatestSnapshot(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	return s.latest, s.err
}

func (s *stubDataService) Runs(ctx context.Context, sinceDays, limit int) ([]domain.ScrapeRun, error) {
	s.lastDays = sinceDays
	s.lastLimit = limit
	return s.runs, s.err
}

type stubAnalytics struct {
	results []domain.RecurrenceResult
	err     error
}

func (s *stubAnalytics) Analyze(ctx context.Context, category domain.Category, windowDays, minOccurrences int) ([]domain.RecurrenceResult, error) {
	return s.results, s.err
}

func serve(h *DataHandler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func sampleRecord() domain.Record {
	return domain.Record{
		Date: "2026-08-28",
		Fields: map[string]domain.Value{
			"symbol": domain.TextValue("NABIL"),
			"ltp":    domain.NumberValue(decimal.RequireFromString("1250.5")),
			"qty":    domain.MissingValue(),
		},
	}
}

func TestGetSnapshots(t *testing.T) {
	svc := &stubDataService{records: []domain.Record{sampleRecord()}}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers?days=30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, svc.lastDays)

	var resp SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, domain.CategoryGainers, resp.Category)
	assert.Equal(t, 1, resp.Count)

	// Null states serialize as JSON null, numerics as numbers.
	raw := rec.Body.String()
	assert.Contains(t, raw, `"qty":null`)
	assert.Contains(t, raw, `"symbol":"NABIL"`)
}

func TestGetSnapshotsDefaultsWindow(t *testing.T) {
	svc := &stubDataService{}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.lastDays)
}

func TestGetSnapshotsRejectsBadDays(t *testing.T) {
	h := NewDataHandler(&stubDataService{}, &stubAnalytics{}, testLogger())

	for _, target := range []string{"/top_gainers?days=zero", "/top_gainers?days=-1"} {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestUnknownCategory(t *testing.T) {
	h := NewDataHandler(&stubDataService{}, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_movers")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_CATEGORY")
}

func TestGetLatest(t *testing.T) {
	svc := &stubDataService{latest: []domain.Record{sampleRecord()}}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestGetLatestEmptyIsValid(t *testing.T) {
	h := NewDataHandler(&stubDataService{}, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestGetRecurrence(t *testing.T) {
	analytics := &stubAnalytics{results: []domain.RecurrenceResult{{
		Identity:    "NABIL",
		Occurrences: 5,
		AvgMetric:   decimal.RequireFromString("2.4"),
		LastSeen:    "2026-08-28",
	}}}
	h := NewDataHandler(&stubDataService{}, analytics, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers/recurrence?days=7&min=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecurrenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "NABIL", resp.Results[0].Identity)
	assert.Equal(t, 7, resp.WindowDays)
}

func TestGetRecurrenceNoMetric(t *testing.T) {
	analytics := &stubAnalytics{err: fmt.Errorf("ipo_info: %w", dataprocessing.ErrNoMetric)}
	h := NewDataHandler(&stubDataService{}, analytics, testLogger())

	rec := serve(h, http.MethodGet, "/ipo_info/recurrence")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRuns(t *testing.T) {
	svc := &stubDataService{runs: []domain.ScrapeRun{{
		ID:     "run-1",
		Date:   "2026-08-28",
		Status: domain.RunCommitted,
	}}}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.lastLimit)
	assert.Zero(t, svc.lastDays)

	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "run-1", resp.Runs[0].ID)
}

func TestGetRunsWithDaysWindow(t *testing.T) {
	svc := &stubDataService{}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/runs?days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.lastDays)
	assert.Equal(t, 50, svc.lastLimit)

	rec = serve(h, http.MethodGet, "/runs?days=junk")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageErrorsMapTo500(t *testing.T) {
	svc := &stubDataService{err: errors.New("database locked")}
	h := NewDataHandler(svc, &stubAnalytics{}, testLogger())

	rec := serve(h, http.MethodGet, "/top_gainers")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "STORAGE_ERROR")
}

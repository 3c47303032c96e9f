package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// SnapshotSource supplies the most recent committed snapshot of a
// category for staleness comparison.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, category domain.Category) ([]domain.Record, error)
}

// Detector decides whether a freshly scraped table is a stale replay of
// the previous trading day, which on this exchange means the market was
// closed.
type Detector struct {
	source SnapshotSource
	rowCap int
	logger *slog.Logger
}

// NewDetector creates a Detector. rowCap bounds how many rows of each
// side are compared.
func NewDetector(source SnapshotSource, rowCap int, logger *slog.Logger) *Detector {
	return &Detector{
		source: source,
		rowCap: rowCap,
		logger: logger.With(slog.String("component", "closure_detector")),
	}
}

// Check compares fresh records against the latest committed snapshot.
// An exact match over the compared rows means the page is a replay and
// the category is considered closed. Any doubt resolves to open so data
// is never silently discarded.
func (d *Detector) Check(ctx context.Context, category domain.Category, fresh []domain.Record) domain.ClosureDecision {
	decision := domain.ClosureDecision{Category: category}

	schema, err := domain.SchemaFor(category)
	if err != nil {
		d.logger.Warn("closure check skipped", slog.String("category", string(category)), slog.String("error", err.Error()))
		return decision
	}

	prior, err := d.source.LatestSnapshot(ctx, category)
	if err != nil {
		d.logger.Warn("could not load prior snapshot, treating as open",
			slog.String("category", string(category)),
			slog.String("error", err.Error()))
		return decision
	}
	if len(prior) == 0 {
		// Cold start: nothing to compare against.
		return decision
	}

	priorSorted := sortByIdentity(prior, schema)
	freshSorted := sortByIdentity(fresh, schema)

	n := len(priorSorted)
	if len(freshSorted) < n {
		n = len(freshSorted)
	}
	if d.rowCap > 0 && n > d.rowCap {
		n = d.rowCap
	}
	decision.Rows = n
	if n == 0 {
		return decision
	}

	for i := 0; i < n; i++ {
		if !recordsEqual(priorSorted[i], freshSorted[i], schema) {
			return decision
		}
	}
	decision.Closed = true
	return decision
}

// Vote aggregates per-category decisions into a run-level verdict. The
// market counts as closed when the closed share of the categories that
// produced a comparison meets the threshold. No decisions means open.
func Vote(decisions []domain.ClosureDecision, threshold float64) bool {
	if len(decisions) == 0 {
		return false
	}
	closed := 0
	for _, d := range decisions {
		if d.Closed {
			closed++
		}
	}
	return float64(closed)/float64(len(decisions)) >= threshold
}

func sortByIdentity(records []domain.Record, schema *domain.Schema) []domain.Record {
	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identity(schema) < sorted[j].Identity(schema)
	})
	return sorted
}

// recordsEqual compares the schema fields of two records, ignoring the
// snapshot date and anything else that changes between runs by
// construction.
func recordsEqual(a, b domain.Record, schema *domain.Schema) bool {
	for _, f := range schema.Fields {
		av := a.Fields[f.Name]
		bv := b.Fields[f.Name]
		if !av.Equivalent(bv, f.Type) {
			return false
		}
	}
	return true
}

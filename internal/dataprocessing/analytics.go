package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// ErrNoMetric is returned for categories that carry no numeric metric
// to aggregate, such as the IPO listings.
var ErrNoMetric = errors.New("category has no metric field for recurrence analysis")

// RecordSource supplies stored snapshots for a trailing window of days.
type RecordSource interface {
	Query(ctx context.Context, category domain.Category, sinceDays int) ([]domain.Record, error)
}

// Analyzer computes recurrence statistics: which identities keep
// appearing on a leaderboard and how their metric behaves while they
// do.
type Analyzer struct {
	source RecordSource
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(source RecordSource, logger *slog.Logger) *Analyzer {
	return &Analyzer{source: source, logger: logger.With(slog.String("component", "analyzer"))}
}

type accumulator struct {
	identity string
	dates    []string
	seen     map[string]bool
	count    int
	sum      decimal.Decimal
	parsed   int
	max      decimal.Decimal
	min      decimal.Decimal
	lastSeen string
}

// Analyze groups the window's records by identity and reports every
// identity appearing at least minOccurrences times, ordered by
// occurrence count then average metric, both descending. An empty
// result is a valid answer.
func (a *Analyzer) Analyze(ctx context.Context, category domain.Category, windowDays, minOccurrences int) ([]domain.RecurrenceResult, error) {
	schema, err := domain.SchemaFor(category)
	if err != nil {
		return nil, err
	}
	if schema.Metric == "" {
		return nil, fmt.Errorf("%s: %w", category, ErrNoMetric)
	}

	records, err := a.source.Query(ctx, category, windowDays)
	if err != nil {
		return nil, fmt.Errorf("query %s window: %w", category, err)
	}

	groups := make(map[string]*accumulator)
	var order []string
	for _, rec := range records {
		id := rec.Identity(schema)
		if id == "" {
			continue
		}
		acc, ok := groups[id]
		if !ok {
			acc = &accumulator{identity: id, seen: make(map[string]bool)}
			groups[id] = acc
			order = append(order, id)
		}
		acc.count++
		if rec.Date != "" && !acc.seen[rec.Date] {
			acc.seen[rec.Date] = true
			acc.dates = append(acc.dates, rec.Date)
		}
		if rec.Date > acc.lastSeen {
			acc.lastSeen = rec.Date
		}

		v := rec.Fields[schema.Metric]
		if v.IsNull() || !v.Numeric {
			continue
		}
		if acc.parsed == 0 {
			acc.max = v.Num
			acc.min = v.Num
		} else {
			if v.Num.GreaterThan(acc.max) {
				acc.max = v.Num
			}
			if v.Num.LessThan(acc.min) {
				acc.min = v.Num
			}
		}
		acc.sum = acc.sum.Add(v.Num)
		acc.parsed++
	}

	results := make([]domain.RecurrenceResult, 0, len(order))
	for _, id := range order {
		acc := groups[id]
		if acc.count < minOccurrences {
			continue
		}
		res := domain.RecurrenceResult{
			Identity:    acc.identity,
			Occurrences: acc.count,
			LastSeen:    acc.lastSeen,
			Dates:       acc.dates,
		}
		sort.Strings(res.Dates)
		if acc.parsed > 0 {
			res.AvgMetric = acc.sum.Div(decimal.NewFromInt(int64(acc.parsed)))
			res.MaxMetric = acc.max
			res.MinMetric = acc.min
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Occurrences != results[j].Occurrences {
			return results[i].Occurrences > results[j].Occurrences
		}
		if !results[i].AvgMetric.Equal(results[j].AvgMetric) {
			return results[i].AvgMetric.GreaterThan(results[j].AvgMetric)
		}
		return results[i].Identity < results[j].Identity
	})

	a.logger.Debug("recurrence analysis complete",
		slog.String("category", string(category)),
		slog.Int("window_days", windowDays),
		slog.Int("identities", len(results)))
	return results, nil
}

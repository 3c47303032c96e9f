package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

type stubSnapshots struct {
	records []domain.Record
	err     error
}

func (s *stubSnapshots) LatestSnapshot(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	return s.records, s.err
}

func stockRecord(date, symbol string, ltp, change float64) domain.Record {
	return domain.Record{
		Date: date,
		Fields: map[string]domain.Value{
			"symbol":         domain.TextValue(symbol),
			"ltp":            domain.NumberValue(decimal.NewFromFloat(ltp)),
			"change_percent": domain.NumberValue(decimal.NewFromFloat(change)),
		},
	}
}

func TestCheckExactReplayMeansClosed(t *testing.T) {
	prior := []domain.Record{
		stockRecord("2026-08-28", "NABIL", 1250.5, 4.25),
		stockRecord("2026-08-28", "SCB", 540, 3.1),
	}
	// Same rows, different order and different snapshot date.
	fresh := []domain.Record{
		stockRecord("2026-08-29", "SCB", 540, 3.1),
		stockRecord("2026-08-29", "NABIL", 1250.5, 4.25),
	}

	d := NewDetector(&stubSnapshots{records: prior}, 50, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.True(t, decision.Closed)
	assert.Equal(t, 2, decision.Rows)
	assert.Equal(t, domain.CategoryGainers, decision.Category)
}

func TestCheckChangedValueMeansOpen(t *testing.T) {
	prior := []domain.Record{stockRecord("2026-08-28", "NABIL", 1250.5, 4.25)}
	fresh := []domain.Record{stockRecord("2026-08-29", "NABIL", 1262.0, 0.92)}

	d := NewDetector(&stubSnapshots{records: prior}, 50, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.False(t, decision.Closed)
}

func TestCheckColdStartMeansOpen(t *testing.T) {
	fresh := []domain.Record{stockRecord("2026-08-29", "NABIL", 1250.5, 4.25)}

	d := NewDetector(&stubSnapshots{}, 50, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.False(t, decision.Closed)
	assert.Zero(t, decision.Rows)
}

func TestCheckSnapshotErrorMeansOpen(t *testing.T) {
	fresh := []domain.Record{stockRecord("2026-08-29", "NABIL", 1250.5, 4.25)}

	d := NewDetector(&stubSnapshots{err: errors.New("database locked")}, 50, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.False(t, decision.Closed)
}

func TestCheckComparesAtMostRowCap(t *testing.T) {
	var prior, fresh []domain.Record
	for i := 0; i < 10; i++ {
		sym := fmt.Sprintf("SYM%02d", i)
		prior = append(prior, stockRecord("2026-08-28", sym, 100, 1))
		fresh = append(fresh, stockRecord("2026-08-29", sym, 100, 1))
	}
	// Divergence beyond the cap is never examined.
	fresh[9] = stockRecord("2026-08-29", "SYM09", 999, 9)

	d := NewDetector(&stubSnapshots{records: prior}, 5, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.True(t, decision.Closed)
	assert.Equal(t, 5, decision.Rows)
}

func TestCheckTruncatesToShorterSide(t *testing.T) {
	prior := []domain.Record{
		stockRecord("2026-08-28", "NABIL", 1250.5, 4.25),
		stockRecord("2026-08-28", "SCB", 540, 3.1),
	}
	fresh := []domain.Record{stockRecord("2026-08-29", "NABIL", 1250.5, 4.25)}

	d := NewDetector(&stubSnapshots{records: prior}, 50, testLogger())
	decision := d.Check(context.Background(), domain.CategoryGainers, fresh)

	assert.True(t, decision.Closed)
	assert.Equal(t, 1, decision.Rows)
}

func TestVote(t *testing.T) {
	closed := func(c domain.Category) domain.ClosureDecision {
		return domain.ClosureDecision{Category: c, Closed: true, Rows: 10}
	}
	open := func(c domain.Category) domain.ClosureDecision {
		return domain.ClosureDecision{Category: c, Rows: 10}
	}

	tests := []struct {
		name      string
		decisions []domain.ClosureDecision
		want      bool
	}{
		{
			name: "all four closed",
			decisions: []domain.ClosureDecision{
				closed(domain.CategoryGainers), closed(domain.CategoryLosers),
				closed(domain.CategoryTraded), closed(domain.CategoryTurnovers),
			},
			want: true,
		},
		{
			name: "three of four meets threshold",
			decisions: []domain.ClosureDecision{
				closed(domain.CategoryGainers), closed(domain.CategoryLosers),
				closed(domain.CategoryTraded), open(domain.CategoryTurnovers),
			},
			want: true,
		},
		{
			name: "two of four stays open",
			decisions: []domain.ClosureDecision{
				closed(domain.CategoryGainers), closed(domain.CategoryLosers),
				open(domain.CategoryTraded), open(domain.CategoryTurnovers),
			},
			want: false,
		},
		{
			name:      "no decisions stays open",
			decisions: nil,
			want:      false,
		},
		{
			name: "single closed category meets threshold",
			decisions: []domain.ClosureDecision{
				closed(domain.CategoryGainers),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Vote(tt.decisions, 0.75))
		})
	}
}

func TestRecordsEqualTreatsNullStatesAlike(t *testing.T) {
	schema, err := domain.SchemaFor(domain.CategoryGainers)
	require.NoError(t, err)

	a := domain.Record{Fields: map[string]domain.Value{
		"symbol": domain.TextValue("NABIL"),
		"qty":    domain.MissingValue(),
	}}
	b := domain.Record{Fields: map[string]domain.Value{
		"symbol": domain.TextValue("NABIL"),
		"qty":    domain.InvalidValue("garbled"),
	}}

	assert.True(t, recordsEqual(a, b, schema))
}

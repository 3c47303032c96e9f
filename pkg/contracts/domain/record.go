package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical snapshot date layout.
const DateFormat = "2006-01-02"

// ValueState tags the outcome of coercing one table cell. The three states
// are kept distinct so aggregation can deliberately skip what was never
// there versus what failed to parse.
type ValueState int

const (
	// ValueParsed means the cell held a usable value.
	ValueParsed ValueState = iota
	// ValueMissing means the source table had no column for this field.
	ValueMissing
	// ValueInvalid means the cell existed but could not be parsed.
	ValueInvalid
)

// Value is one canonical field of a snapshot record. Text carries string
// and date fields; Num carries coerced numerics. An unparsable numeric
// keeps its raw text for diagnostics but is never silently zero.
type Value struct {
	State   ValueState
	Text    string
	Num     decimal.Decimal
	Numeric bool
}

// TextValue builds a parsed string value.
func TextValue(s string) Value {
	return Value{State: ValueParsed, Text: s}
}

// NumberValue builds a parsed numeric value.
func NumberValue(d decimal.Decimal) Value {
	return Value{State: ValueParsed, Num: d, Numeric: true}
}

// MissingValue marks a field absent from the source table.
func MissingValue() Value {
	return Value{State: ValueMissing}
}

// InvalidValue marks a cell that failed numeric coercion, keeping the raw text.
func InvalidValue(raw string) Value {
	return Value{State: ValueInvalid, Text: raw}
}

// IsNull reports whether the value carries no usable data.
func (v Value) IsNull() bool {
	return v.State != ValueParsed
}

// Equivalent compares two values of the same field type. Missing and
// invalid both read back from storage as NULL, so the two null states
// compare equal to each other.
func (v Value) Equivalent(o Value, t FieldType) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if t.IsNumeric() {
		return v.Num.Equal(o.Num)
	}
	return v.Text == o.Text
}

// MarshalJSON renders parsed text as a string, parsed numerics as the
// decimal's JSON form, and both null states as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	if v.Numeric {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Text)
}

// Record is one row of a category snapshot. Date is empty until the
// orchestrator stamps it at commit time; records are immutable once stored.
type Record struct {
	Date   string           `json:"date,omitempty"`
	Fields map[string]Value `json:"fields"`
}

// Identity joins the schema's identity key values into a single sortable
// key. Records whose identity fields are all null have no identity.
func (r Record) Identity(schema *Schema) string {
	parts := make([]string, 0, len(schema.Identity))
	for _, name := range schema.Identity {
		v, ok := r.Fields[name]
		if !ok || v.IsNull() {
			continue
		}
		parts = append(parts, v.Text)
	}
	return strings.Join(parts, "|")
}

// RunStatus is the outcome of one pipeline execution, per category and at
// run level (the worst of the category outcomes).
type RunStatus string

const (
	RunCommitted      RunStatus = "committed"
	RunSkippedStale   RunStatus = "skipped-stale"
	RunSkippedHoliday RunStatus = "skipped-holiday"
	RunFailed         RunStatus = "failed"
)

// ScrapeRun is one appended entry of the run log. Never mutated after
// being recorded.
type ScrapeRun struct {
	ID         string               `db:"run_id" json:"id"`
	Date       string               `db:"date" json:"date"`
	Time       string               `db:"time" json:"time"`
	Status     RunStatus            `db:"status" json:"status"`
	Categories string               `db:"categories" json:"categories"`
	Records    int                  `db:"records_added" json:"records_added"`
	Detail     string               `db:"error_detail" json:"error_detail,omitempty"`
	Outcomes   map[string]RunStatus `db:"-" json:"outcomes,omitempty"`
}

// StartedAt parses the run's date and time stamps.
func (r ScrapeRun) StartedAt() (time.Time, error) {
	return time.Parse(DateFormat+" 15:04:05", r.Date+" "+r.Time)
}

// ClosureDecision is the per-category result of the stale-data comparison.
// Derived, never persisted.
type ClosureDecision struct {
	Category Category `json:"category"`
	Closed   bool     `json:"closed"`
	Rows     int      `json:"comparison_rows"`
}

// RecurrenceResult summarizes one identity recurring across snapshots
// within a trailing window.
type RecurrenceResult struct {
	Identity    string          `json:"identity"`
	Occurrences int             `json:"occurrences"`
	AvgMetric   decimal.Decimal `json:"avg_metric"`
	MaxMetric   decimal.Decimal `json:"max_metric"`
	MinMetric   decimal.Decimal `json:"min_metric"`
	LastSeen    string          `json:"last_seen"`
	Dates       []string        `json:"dates"`
}

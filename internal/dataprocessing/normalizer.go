package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// ParseErrorKind classifies why a rendered page could not be turned
// into records.
type ParseErrorKind string

const (
	ParseNoTable         ParseErrorKind = "no_table"
	ParseNoHeader        ParseErrorKind = "no_header"
	ParseEmptyBody       ParseErrorKind = "empty_body"
	ParseMissingIdentity ParseErrorKind = "missing_identity"
)

// ParseError reports a structural failure of an entire page. Bad
// individual cells never produce a ParseError, they degrade to invalid
// values instead.
type ParseError struct {
	Category domain.Category
	Kind     ParseErrorKind
	Detail   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s (%s)", e.Category, e.Kind, e.Detail)
}

// Normalizer turns a rendered HTML page into canonical records for one
// category.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With(slog.String("component", "normalizer"))}
}

// Normalize extracts the first table from html and maps it onto the
// category's schema. The returned records carry the given snapshot
// date.
func (n *Normalizer) Normalize(html string, schema *domain.Schema, date string) ([]domain.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Category: schema.Category, Kind: ParseNoTable, Detail: err.Error()}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, &ParseError{Category: schema.Category, Kind: ParseNoTable, Detail: "document contains no table element"}
	}

	headerRow, bodyRows := splitTable(table)
	if headerRow == nil || headerRow.Length() == 0 {
		return nil, &ParseError{Category: schema.Category, Kind: ParseNoHeader, Detail: "table has no header row"}
	}

	columns := n.mapColumns(headerRow, schema)

	if len(bodyRows) > 0 {
		// A header list longer than the data rows means the header row
		// carried decoration cells. Trust the data width.
		if width := bodyRows[0].Find("td, th").Length(); width < len(columns) {
			n.logger.Warn("header wider than data, truncating",
				slog.String("category", string(schema.Category)),
				slog.Int("headers", len(columns)),
				slog.Int("cells", width))
			columns = columns[:width]
		}
	}

	if !hasIdentityColumns(columns, schema) {
		return nil, &ParseError{
			Category: schema.Category,
			Kind:     ParseMissingIdentity,
			Detail:   fmt.Sprintf("identity fields %v not present in table header", schema.Identity),
		}
	}

	records := make([]domain.Record, 0, len(bodyRows))
	for _, row := range bodyRows {
		rec := n.buildRecord(row, columns, schema, date)
		if rec.Identity(schema) == "" {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &ParseError{Category: schema.Category, Kind: ParseEmptyBody, Detail: "table has no usable data rows"}
	}
	return records, nil
}

// splitTable locates the header row and the data rows. Pages with a
// thead/tbody pair use those; bare tables fall back to first row as
// header and the rest as data.
func splitTable(table *goquery.Selection) (*goquery.Selection, []*goquery.Selection) {
	if thead := table.Find("thead tr").First(); thead.Length() > 0 {
		headerRow := thead.Find("th, td")
		var bodyRows []*goquery.Selection
		if tbody := table.Find("tbody tr"); tbody.Length() > 0 {
			tbody.Each(func(_ int, tr *goquery.Selection) {
				bodyRows = append(bodyRows, tr)
			})
		} else {
			table.Find("tr").Each(func(i int, tr *goquery.Selection) {
				if i > 0 {
					bodyRows = append(bodyRows, tr)
				}
			})
		}
		return headerRow, bodyRows
	}

	// No thead: treat the first row as the header and the rest as data.
	var allRows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		allRows = append(allRows, tr)
	})
	if len(allRows) == 0 {
		return nil, nil
	}
	return allRows[0].Find("th, td"), allRows[1:]
}

// mapColumns resolves each header cell to a canonical schema field.
// Unmapped columns stay in the slice as "" so cell indexes line up.
func (n *Normalizer) mapColumns(headerRow *goquery.Selection, schema *domain.Schema) []string {
	var columns []string
	headerRow.Each(func(_ int, cell *goquery.Selection) {
		raw := strings.TrimSpace(cell.Text())
		canonical := CanonicalizeHeader(raw)
		if alias, ok := schema.Aliases[canonical]; ok {
			canonical = alias
		}
		if canonical == "" {
			columns = append(columns, "")
			return
		}
		if !schema.HasField(canonical) {
			n.logger.Warn("unrecognized table column, dropping",
				slog.String("category", string(schema.Category)),
				slog.String("header", raw),
				slog.String("canonical", canonical))
			columns = append(columns, "")
			return
		}
		columns = append(columns, canonical)
	})
	return columns
}

func (n *Normalizer) buildRecord(row *goquery.Selection, columns []string, schema *domain.Schema, date string) domain.Record {
	rec := domain.Record{Date: date, Fields: make(map[string]domain.Value, len(schema.Fields))}
	cells := row.Find("td, th")
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i >= len(columns) {
			return false
		}
		name := columns[i]
		if name == "" {
			return true
		}
		field, _ := schema.Field(name)
		rec.Fields[name] = coerceValue(strings.TrimSpace(cell.Text()), field.Type)
		return true
	})
	// Schema fields the page never offered are explicitly missing, so a
	// record always carries the full field set.
	for _, f := range schema.Fields {
		if _, ok := rec.Fields[f.Name]; !ok {
			rec.Fields[f.Name] = domain.MissingValue()
		}
	}
	return rec
}

func hasIdentityColumns(columns []string, schema *domain.Schema) bool {
	for _, id := range schema.Identity {
		found := false
		for _, col := range columns {
			if col == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CanonicalizeHeader lowercases a header cell, collapses whitespace
// runs into single underscores, drops periods, and spells out percent
// signs. "% Change" and "Change  %" both become usable keys.
func CanonicalizeHeader(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "%", " percent ")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Join(strings.Fields(s), "_")
	return s
}

// missing markers seen in the wild on ShareSansar tables
var missingMarkers = map[string]bool{
	"":    true,
	"-":   true,
	"--":  true,
	"n/a": true,
	"na":  true,
}

// coerceValue converts a raw cell into a typed value. Numeric fields
// tolerate thousands separators and trailing percent signs; text that
// still refuses to parse is kept as an invalid value rather than
// failing the page.
func coerceValue(raw string, t domain.FieldType) domain.Value {
	if !t.IsNumeric() {
		if missingMarkers[strings.ToLower(raw)] {
			return domain.MissingValue()
		}
		return domain.TextValue(raw)
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if missingMarkers[strings.ToLower(cleaned)] {
		return domain.MissingValue()
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return domain.InvalidValue(raw)
	}
	return domain.NumberValue(d)
}

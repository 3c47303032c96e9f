package dataprocessing

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gainersSchema(t *testing.T) *domain.Schema {
	t.Helper()
	schema, err := domain.SchemaFor(domain.CategoryGainers)
	require.NoError(t, err)
	return schema
}

func TestCanonicalizeHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "simple", raw: "Symbol", want: "symbol"},
		{name: "whitespace run", raw: "  Shares   Traded ", want: "shares_traded"},
		{name: "percent sign", raw: "Change %", want: "change_percent"},
		{name: "leading percent", raw: "% Change", want: "percent_change"},
		{name: "period stripped", raw: "S. No", want: "s_no"},
		{name: "period and case", raw: "Prev. Close", want: "prev_close"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalizeHeader(tt.raw))
		})
	}
}

const gainersPage = `<html><body>
<div class="widget"><table class="table">
<thead><tr>
  <th>S. No</th><th>Symbol</th><th>LTP</th><th>Change %</th>
  <th>High</th><th>Low</th><th>Open</th><th>Qty</th><th>Turnover</th>
</tr></thead>
<tbody>
<tr><td>1</td><td>NABIL</td><td>1,250.50</td><td>4.25%</td><td>1,260</td><td>1,190</td><td>1,200</td><td>15,430</td><td>19,300,215.00</td></tr>
<tr><td>2</td><td>SCB</td><td>540</td><td>3.10</td><td>545</td><td>520</td><td>522</td><td>-</td><td>2,100,000</td></tr>
<tr><td>3</td><td></td><td>100</td><td>1.00</td><td>101</td><td>99</td><td>100</td><td>10</td><td>1000</td></tr>
</tbody>
</table></div>
</body></html>`

func TestNormalizeGainersTable(t *testing.T) {
	n := NewNormalizer(testLogger())

	records, err := n.Normalize(gainersPage, gainersSchema(t), "2026-08-30")
	require.NoError(t, err)

	// The row without a symbol carries no identity and is dropped.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "2026-08-30", first.Date)
	assert.Equal(t, "NABIL", first.Fields["symbol"].Text)
	assert.True(t, first.Fields["ltp"].Num.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, first.Fields["change_percent"].Num.Equal(decimal.RequireFromString("4.25")))
	assert.True(t, first.Fields["qty"].Num.Equal(decimal.RequireFromString("15430")))

	// The serial number column is aliased away.
	_, ok := first.Fields["s_no"]
	assert.False(t, ok)

	second := records[1]
	assert.Equal(t, "SCB", second.Fields["symbol"].Text)
	assert.Equal(t, domain.ValueMissing, second.Fields["qty"].State)
}

func TestNormalizeWithoutTheadUsesFirstRow(t *testing.T) {
	html := `<table>
<tr><td>Symbol</td><td>LTP</td><td>Change %</td></tr>
<tr><td>ADBL</td><td>305.5</td><td>2.2</td></tr>
</table>`

	n := NewNormalizer(testLogger())
	records, err := n.Normalize(html, gainersSchema(t), "2026-08-30")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ADBL", records[0].Fields["symbol"].Text)
}

func TestNormalizeInvalidNumericCellDegrades(t *testing.T) {
	html := `<table><thead><tr><th>Symbol</th><th>LTP</th></tr></thead>
<tbody><tr><td>NICA</td><td>not-a-number</td></tr></tbody></table>`

	n := NewNormalizer(testLogger())
	records, err := n.Normalize(html, gainersSchema(t), "2026-08-30")
	require.NoError(t, err)
	require.Len(t, records, 1)

	v := records[0].Fields["ltp"]
	assert.Equal(t, domain.ValueInvalid, v.State)
	assert.Equal(t, "not-a-number", v.Text)
}

func TestNormalizeHeaderWiderThanData(t *testing.T) {
	html := `<table><thead><tr><th>Symbol</th><th>LTP</th><th>Change %</th><th>Turnover</th></tr></thead>
<tbody><tr><td>HBL</td><td>210</td></tr></tbody></table>`

	n := NewNormalizer(testLogger())
	records, err := n.Normalize(html, gainersSchema(t), "2026-08-30")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.True(t, records[0].Fields["turnover"].IsNull())
	assert.Equal(t, "HBL", records[0].Fields["symbol"].Text)
}

func TestNormalizeStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		html string
		kind ParseErrorKind
	}{
		{
			name: "no table",
			html: `<html><body><div>market holiday notice</div></body></html>`,
			kind: ParseNoTable,
		},
		{
			name: "empty body",
			html: `<table><thead><tr><th>Symbol</th><th>LTP</th></tr></thead><tbody></tbody></table>`,
			kind: ParseEmptyBody,
		},
		{
			name: "identity column absent",
			html: `<table><thead><tr><th>LTP</th><th>Change %</th></tr></thead>
<tbody><tr><td>100</td><td>1.5</td></tr></tbody></table>`,
			kind: ParseMissingIdentity,
		},
		{
			name: "all rows lack identity values",
			html: `<table><thead><tr><th>Symbol</th><th>LTP</th></tr></thead>
<tbody><tr><td></td><td>100</td></tr><tr><td>-</td><td>200</td></tr></tbody></table>`,
			kind: ParseEmptyBody,
		},
	}

	n := NewNormalizer(testLogger())
	schema := gainersSchema(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.html, schema, "2026-08-30")
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, domain.CategoryGainers, pe.Category)
		})
	}
}

func TestNormalizeSecondTableIgnored(t *testing.T) {
	html := `<html><body>
<table><thead><tr><th>Symbol</th><th>LTP</th></tr></thead>
<tbody><tr><td>EBL</td><td>650</td></tr></tbody></table>
<table><thead><tr><th>Other</th></tr></thead>
<tbody><tr><td>ignored</td></tr></tbody></table>
</body></html>`

	n := NewNormalizer(testLogger())
	records, err := n.Normalize(html, gainersSchema(t), "2026-08-30")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "EBL", records[0].Fields["symbol"].Text)
}

package domain

import (
	"fmt"
)

// Category identifies one ranked market-activity table. The string value
// doubles as the storage table name.
type Category string

const (
	CategoryGainers      Category = "top_gainers"
	CategoryLosers       Category = "top_losers"
	CategoryTraded       Category = "top_traded"
	CategoryTurnovers    Category = "top_turnovers"
	CategoryTransactions Category = "top_transactions"
	CategoryBrokers      Category = "top_brokers"
	CategoryIPO          Category = "ipo_info"
)

// AllCategories lists every category in scrape order.
func AllCategories() []Category {
	return []Category{
		CategoryGainers,
		CategoryLosers,
		CategoryTraded,
		CategoryTurnovers,
		CategoryTransactions,
		CategoryBrokers,
		CategoryIPO,
	}
}

// PrimaryCategories are the tables used for the market-closure vote.
// Transactions, brokers and IPO listings are excluded: they either move too
// little day to day or have no daily ranking at all.
func PrimaryCategories() []Category {
	return []Category{
		CategoryGainers,
		CategoryLosers,
		CategoryTraded,
		CategoryTurnovers,
	}
}

// ParseCategory converts an API path segment into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := schemas[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// FieldType is the semantic type of a canonical field. It drives numeric
// coercion in the normalizer and column typing in the store.
type FieldType int

const (
	FieldText FieldType = iota
	FieldPrice
	FieldPercent
	FieldQuantity
	FieldAmount
	FieldDate
)

// IsNumeric reports whether values of this type are coerced to decimals.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldPrice, FieldPercent, FieldQuantity, FieldAmount:
		return true
	}
	return false
}

// Field is one canonical column of a category.
type Field struct {
	Name string
	Type FieldType
}

// Schema describes the fixed record shape of one category: the canonical
// fields in order, the identity key, and the alias table that maps source
// header variants onto canonical names. An alias mapping to the empty
// string drops the column (serial numbers and other non-semantic columns).
type Schema struct {
	Category Category
	Fields   []Field
	Identity []string
	Aliases  map[string]string
	// Metric names the field aggregated by recurrence analysis. Empty
	// when the category has no defining metric (IPO listings).
	Metric string
}

// Field returns the schema field with the given canonical name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether name is a canonical field of this schema.
func (s *Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Validate checks the alias table against the canonical field set. Every
// alias must map to a canonical field (or to "" for a dropped column), the
// identity key must exist, and the metric field, when set, must be numeric.
// Run at startup so a bad alias is a visible configuration gap rather than
// a silently dropped column.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", s.Category)
	}
	if len(s.Identity) == 0 {
		return fmt.Errorf("schema %s: no identity key", s.Category)
	}
	for _, id := range s.Identity {
		if !s.HasField(id) {
			return fmt.Errorf("schema %s: identity field %q not in field set", s.Category, id)
		}
	}
	for alias, target := range s.Aliases {
		if target == "" {
			continue
		}
		if !s.HasField(target) {
			return fmt.Errorf("schema %s: alias %q maps to unknown field %q", s.Category, alias, target)
		}
	}
	if s.Metric != "" {
		f, ok := s.Field(s.Metric)
		if !ok {
			return fmt.Errorf("schema %s: metric field %q not in field set", s.Category, s.Metric)
		}
		if !f.Type.IsNumeric() {
			return fmt.Errorf("schema %s: metric field %q is not numeric", s.Category, s.Metric)
		}
	}
	return nil
}

var schemas = map[Category]*Schema{
	CategoryGainers: {
		Category: CategoryGainers,
		Fields: []Field{
			{Name: "symbol", Type: FieldText},
			{Name: "ltp", Type: FieldPrice},
			{Name: "change_percent", Type: FieldPercent},
			{Name: "high", Type: FieldPrice},
			{Name: "low", Type: FieldPrice},
			{Name: "open", Type: FieldPrice},
			{Name: "qty", Type: FieldQuantity},
			{Name: "turnover", Type: FieldAmount},
		},
		Identity: []string{"symbol"},
		Aliases:  stockAliases,
		Metric:   "change_percent",
	},
	CategoryLosers: {
		Category: CategoryLosers,
		Fields: []Field{
			{Name: "symbol", Type: FieldText},
			{Name: "ltp", Type: FieldPrice},
			{Name: "change_percent", Type: FieldPercent},
			{Name: "high", Type: FieldPrice},
			{Name: "low", Type: FieldPrice},
			{Name: "open", Type: FieldPrice},
			{Name: "qty", Type: FieldQuantity},
			{Name: "turnover", Type: FieldAmount},
		},
		Identity: []string{"symbol"},
		Aliases:  stockAliases,
		Metric:   "change_percent",
	},
	CategoryTraded: {
		Category: CategoryTraded,
		Fields: []Field{
			{Name: "symbol", Type: FieldText},
			{Name: "qty", Type: FieldQuantity},
			{Name: "ltp", Type: FieldPrice},
			{Name: "change_percent", Type: FieldPercent},
			{Name: "turnover", Type: FieldAmount},
		},
		Identity: []string{"symbol"},
		Aliases:  stockAliases,
		Metric:   "change_percent",
	},
	CategoryTurnovers: {
		Category: CategoryTurnovers,
		Fields: []Field{
			{Name: "symbol", Type: FieldText},
			{Name: "turnover", Type: FieldAmount},
			{Name: "ltp", Type: FieldPrice},
			{Name: "change_percent", Type: FieldPercent},
			{Name: "qty", Type: FieldQuantity},
		},
		Identity: []string{"symbol"},
		Aliases:  stockAliases,
		Metric:   "change_percent",
	},
	CategoryTransactions: {
		Category: CategoryTransactions,
		Fields: []Field{
			{Name: "symbol", Type: FieldText},
			{Name: "transactions", Type: FieldQuantity},
			{Name: "ltp", Type: FieldPrice},
			{Name: "change_percent", Type: FieldPercent},
			{Name: "qty", Type: FieldQuantity},
			{Name: "turnover", Type: FieldAmount},
		},
		Identity: []string{"symbol"},
		Aliases: mergeAliases(stockAliases, map[string]string{
			"transactions":      "transactions",
			"total_transaction": "transactions",
			"no_of_transaction": "transactions",
		}),
		Metric: "change_percent",
	},
	CategoryBrokers: {
		Category: CategoryBrokers,
		Fields: []Field{
			{Name: "broker_no", Type: FieldText},
			{Name: "broker_name", Type: FieldText},
			{Name: "buy_contracts", Type: FieldQuantity},
			{Name: "buy_amount", Type: FieldAmount},
			{Name: "sell_contracts", Type: FieldQuantity},
			{Name: "sell_amount", Type: FieldAmount},
			{Name: "total_amount", Type: FieldAmount},
		},
		Identity: []string{"broker_no"},
		Aliases: map[string]string{
			"s_no":           "",
			"sn":             "",
			"broker_no":      "broker_no",
			"broker_number":  "broker_no",
			"broker_code":    "broker_no",
			"broker_name":    "broker_name",
			"broker":         "broker_name",
			"buy_contracts":  "buy_contracts",
			"buy_amount":     "buy_amount",
			"sell_contracts": "sell_contracts",
			"sell_amount":    "sell_amount",
			"total_amount":   "total_amount",
		},
		Metric: "total_amount",
	},
	CategoryIPO: {
		Category: CategoryIPO,
		Fields: []Field{
			{Name: "company_name", Type: FieldText},
			{Name: "scrip", Type: FieldText},
			{Name: "opening_date", Type: FieldDate},
			{Name: "closing_date", Type: FieldDate},
			{Name: "issue_manager", Type: FieldText},
			{Name: "shares_offered", Type: FieldQuantity},
			{Name: "price_per_share", Type: FieldPrice},
			{Name: "min_units", Type: FieldQuantity},
			{Name: "max_units", Type: FieldQuantity},
			{Name: "status", Type: FieldText},
			{Name: "remarks", Type: FieldText},
		},
		Identity: []string{"company_name", "opening_date"},
		Aliases: map[string]string{
			"s_no":            "",
			"sn":              "",
			"company_name":    "company_name",
			"company":         "company_name",
			"scrip":           "scrip",
			"symbol":          "scrip",
			"opening_date":    "opening_date",
			"open_date":       "opening_date",
			"closing_date":    "closing_date",
			"close_date":      "closing_date",
			"issue_manager":   "issue_manager",
			"shares_offered":  "shares_offered",
			"units":           "shares_offered",
			"price_per_share": "price_per_share",
			"price":           "price_per_share",
			"min_units":       "min_units",
			"max_units":       "max_units",
			"status":          "status",
			"remarks":         "remarks",
		},
	},
}

// stockAliases covers the header variants seen on the symbol-keyed tables.
var stockAliases = map[string]string{
	"s_no":           "",
	"sn":             "",
	"symbol":         "symbol",
	"ltp":            "ltp",
	"change_rs":      "",
	"point_change":   "",
	"changepercent":  "change_percent",
	"change":         "change_percent",
	"percent_change": "change_percent",
	"high":           "high",
	"low":            "low",
	"open":           "open",
	"qty":            "qty",
	"volume":         "qty",
	"shares_traded":  "qty",
	"turnover":       "turnover",
}

func mergeAliases(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// SchemaFor returns the static schema of a category.
func SchemaFor(c Category) (*Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", c)
	}
	return s, nil
}

// ValidateSchemas checks every registered schema. Called at startup.
func ValidateSchemas() error {
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

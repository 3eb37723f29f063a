// Package dataset describes the fixed set of tabular feeds an import run is made of,
// the table each one lands in, and how its rows are reconciled on write.
package dataset

import "sort"

type Name string

const (
	Campaigns         Name = "campaigns"
	AdGroups          Name = "ad_groups"
	Ads               Name = "ads"
	Keywords          Name = "keywords"
	SearchTerms       Name = "search_terms"
	NegativeKeywords  Name = "negative_keywords"
	Assets            Name = "assets"
	ConversionActions Name = "conversion_actions"
	GeoPerformance    Name = "geo_performance"
	DevicePerformance Name = "device_performance"
)

// Count is the size of the full snapshot and the default number of datasets a run expects.
const Count = 10

// ReconciliationMode decides what re-applying an already applied row does.
type ReconciliationMode int

const (
	// Upsert overwrites the record sharing the row's natural key.
	Upsert ReconciliationMode = iota
	// Append always inserts; duplicates are only prevented by the chunk ledger.
	Append
)

func (m ReconciliationMode) String() string {
	switch m {
	case Upsert:
		return "upsert"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

type Kind int

const (
	Text Kind = iota
	Integer
	Decimal
)

// Column maps one field of an incoming row onto a table column.
type Column struct {
	Name  string
	Field string
	Kind  Kind
}

type Spec struct {
	Name  Name
	Table string
	Mode  ReconciliationMode
	// Key lists the natural key columns (besides account and run) for Upsert datasets.
	Key     []string
	Columns []Column
}

// ColumnNames returns the target column names in Values order.
func (s Spec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Values converts a row into column values in Columns order. Missing or unparseable
// numbers become zero and missing strings become empty.
func (s Spec) Values(row Row) []interface{} {
	values := make([]interface{}, len(s.Columns))
	for i, c := range s.Columns {
		raw := row[c.Field]
		switch c.Kind {
		case Integer:
			values[i] = toInt(raw)
		case Decimal:
			values[i] = toFloat(raw)
		default:
			values[i] = toText(raw)
		}
	}
	return values
}

var registry = map[Name]Spec{}

func register(spec Spec) {
	registry[spec.Name] = spec
}

// Lookup resolves a dataset by its wire name.
func Lookup(name string) (Spec, bool) {
	spec, ok := registry[Name(name)]
	return spec, ok
}

// All returns every dataset ordered by name.
func All() []Spec {
	specs := make([]Spec, 0, len(registry))
	for _, spec := range registry {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// Source identifies a per-fuel breakdown column.
type Source string

const (
	SourceCoal    Source = "coal"
	SourceOil     Source = "oil"
	SourceGas     Source = "gas"
	SourceCement  Source = "cement"
	SourceFlaring Source = "flaring"
)

// Sources lists the known breakdown columns in canonical order.
var Sources = []Source{SourceCoal, SourceOil, SourceGas, SourceCement, SourceFlaring}

// Column returns the conventional CSV column name for the source (e.g. "coal_co2").
func (s Source) Column() string { return string(s) + "_co2" }

// IsFuel reports whether the source is a combustion fuel (cement and flaring are process emissions).
func (s Source) IsFuel() bool {
	switch s {
	case SourceCoal, SourceOil, SourceGas:
		return true
	}
	return false
}

// Record is one row of the emissions table: one entity in one period.
type Record struct {
	Entity     string             `json:"entity"`
	Period     *int               `json:"period,omitempty"`
	Emissions  *float64           `json:"emissions,omitempty"`
	Sources    map[Source]float64 `json:"sources,omitempty"`
	Population *float64           `json:"population,omitempty"`
}

// Value returns the primary emission value and whether it is present.
func (r Record) Value() (float64, bool) {
	if r.Emissions == nil {
		return 0, false
	}
	return *r.Emissions, true
}

// Float is a convenience for building optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int is a convenience for building optional period fields.
func Int(v int) *int { return &v }

// Schema records which columns the source table carried.
type Schema struct {
	EntityColumn     string   `json:"entity_column"`
	EmissionsColumn  string   `json:"emissions_column,omitempty"`
	PeriodColumn     string   `json:"period_column,omitempty"`
	PopulationColumn string   `json:"population_column,omitempty"`
	Sources          []Source `json:"sources,omitempty"`
	Columns          []string `json:"columns"`
}

// HasEmissions reports whether the primary value column is present.
func (s Schema) HasEmissions() bool { return s.EmissionsColumn != "" }

// HasPeriod reports whether a period column is present.
func (s Schema) HasPeriod() bool { return s.PeriodColumn != "" }

// HasPopulation reports whether a population column is present.
func (s Schema) HasPopulation() bool { return s.PopulationColumn != "" }

// HasSource reports whether the breakdown column for src is present.
func (s Schema) HasSource(src Source) bool {
	for _, x := range s.Sources {
		if x == src {
			return true
		}
	}
	return false
}

// FieldCount is the number of known fields per record implied by the schema.
func (s Schema) FieldCount() int {
	n := 1 // entity
	if s.HasEmissions() {
		n++
	}
	if s.HasPeriod() {
		n++
	}
	if s.HasPopulation() {
		n++
	}
	return n + len(s.Sources)
}

// Table is a loaded, read-only emissions dataset.
type Table struct {
	Name     string   `json:"name"`
	Schema   Schema   `json:"schema"`
	Records  []Record `json:"records"`
	Rows     int      `json:"rows"`
	Warnings []string `json:"warnings,omitempty"`
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Entities returns the distinct entity names in sorted order.
func (t *Table) Entities() []string {
	if t == nil {
		return nil
	}
	seen := map[string]struct{}{}
	for _, r := range t.Records {
		seen[r.Entity] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// PeriodRange returns the smallest and largest period present.
func (t *Table) PeriodRange() (lo, hi int, ok bool) {
	if t == nil {
		return 0, 0, false
	}
	for _, r := range t.Records {
		if r.Period == nil {
			continue
		}
		p := *r.Period
		if !ok {
			lo, hi, ok = p, p, true
			continue
		}
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi, ok
}

// ErrInvalidSchema marks input whose primary value column cannot be used as numbers.
var ErrInvalidSchema = errors.New("invalid schema")

// SchemaError describes the offending cell. It unwraps to ErrInvalidSchema.
type SchemaError struct {
	Column string
	Row    int
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("invalid schema: column %q row %d: %s (%q)", e.Column, e.Row, e.Reason, e.Value)
	}
	return fmt.Sprintf("invalid schema: column %q: %s", e.Column, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ColumnMap overrides header detection for the well-known fields.
// Empty entries fall back to the built-in aliases.
type ColumnMap struct {
	Entity     string
	Emissions  string
	Period     string
	Population string
}

// Options controls how tabular input is turned into records.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, picks '\t' for .tsv and ',' otherwise.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	Columns            ColumnMap
	// XLSX sheet selection; SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
}

// DefaultOptions returns reasonable defaults for emissions tables.
func DefaultOptions() Options {
	return Options{MaxRows: 1000000, SheetIndex: 1}
}

var (
	entityAliases     = []string{"country", "entity", "organization", "organisation", "company", "name"}
	emissionsAliases  = []string{"co2", "co2_emissions_tonnes", "co2_emissions", "emissions", "total_emissions"}
	periodAliases     = []string{"year", "period", "date"}
	populationAliases = []string{"population"}
)

// LoadFile loads a CSV, TSV, or XLSX file based on its extension.
func LoadFile(path string, opt Options) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited file from disk.
func LoadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return ReadCSV(f, filepath.Base(path), opt)
}

// ReadCSV reads delimited rows from r. The first row is the header.
func ReadCSV(r io.Reader, name string, opt Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Reason: "empty input: no header row"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b, err := newBuilder(name, header, opt)
	if err != nil {
		return nil, err
	}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", b.table.Rows+1, err)
		}
		if err := b.add(rec); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

// FromRows builds a table from an in-memory header and rows.
func FromRows(name string, header []string, rows [][]string, opt Options) (*Table, error) {
	b, err := newBuilder(name, header, opt)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := b.add(row); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

type builder struct {
	table      *Table
	opt        Options
	maxRows    int
	entity     int
	emissions  int
	period     int
	population int
	sources    map[Source]int
	noEntity   int
	badPeriod  int
	badNumeric int
}

func newBuilder(name string, header []string, opt Options) (*builder, error) {
	b := &builder{
		table:      &Table{Name: name},
		opt:        opt,
		entity:     -1,
		emissions:  -1,
		period:     -1,
		population: -1,
		sources:    map[Source]int{},
	}
	b.maxRows = opt.MaxRows
	if b.maxRows <= 0 {
		b.maxRows = math.MaxInt
	}
	keys := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		b.table.Schema.Columns = append(b.table.Schema.Columns, h)
		keys[i] = normalizeHeader(h)
	}
	b.entity = pickColumn(header, keys, opt.Columns.Entity, entityAliases)
	b.emissions = pickColumn(header, keys, opt.Columns.Emissions, emissionsAliases)
	b.period = pickColumn(header, keys, opt.Columns.Period, periodAliases)
	b.population = pickColumn(header, keys, opt.Columns.Population, populationAliases)
	if b.entity < 0 {
		return nil, &SchemaError{Reason: fmt.Sprintf("no entity column found among %v", b.table.Schema.Columns)}
	}
	s := &b.table.Schema
	s.EntityColumn = s.Columns[b.entity]
	if b.emissions >= 0 {
		s.EmissionsColumn = s.Columns[b.emissions]
	} else {
		b.table.Warnings = append(b.table.Warnings, "no primary emissions column found; aggregates will be empty")
	}
	if b.period >= 0 {
		s.PeriodColumn = s.Columns[b.period]
	}
	if b.population >= 0 {
		s.PopulationColumn = s.Columns[b.population]
	}
	for _, src := range Sources {
		for i, k := range keys {
			if k == src.Column() || k == string(src) {
				b.sources[src] = i
				s.Sources = append(s.Sources, src)
				break
			}
		}
	}
	return b, nil
}

func (b *builder) add(row []string) error {
	b.table.Rows++
	if len(b.table.Records) >= b.maxRows {
		return nil
	}
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		v := strings.TrimSpace(row[i])
		if isNull(v) {
			return ""
		}
		return v
	}
	ent := cell(b.entity)
	if ent == "" {
		b.noEntity++
		return nil
	}
	rec := Record{Entity: ent}
	if b.emissions >= 0 {
		if v := cell(b.emissions); v != "" {
			x, ok := parseNumeric(v, b.opt)
			if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
				return &SchemaError{Column: b.table.Schema.EmissionsColumn, Row: b.table.Rows, Value: v, Reason: "primary emissions value is not numeric"}
			}
			rec.Emissions = Float(x)
		}
	}
	if b.period >= 0 {
		if v := cell(b.period); v != "" {
			if p, ok := parsePeriod(v); ok {
				rec.Period = Int(p)
			} else {
				b.badPeriod++
			}
		}
	}
	if b.population >= 0 {
		if v := cell(b.population); v != "" {
			if x, ok := parseNumeric(v, b.opt); ok {
				rec.Population = Float(x)
			} else {
				b.badNumeric++
			}
		}
	}
	for _, src := range b.table.Schema.Sources {
		v := cell(b.sources[src])
		if v == "" {
			continue
		}
		x, ok := parseNumeric(v, b.opt)
		if !ok {
			b.badNumeric++
			continue
		}
		if rec.Sources == nil {
			rec.Sources = make(map[Source]float64, len(b.table.Schema.Sources))
		}
		rec.Sources[src] = x
	}
	b.table.Records = append(b.table.Records, rec)
	return nil
}

func (b *builder) finish() *Table {
	t := b.table
	if b.noEntity > 0 {
		t.Warnings = append(t.Warnings, fmt.Sprintf("skipped %d rows without an entity", b.noEntity))
	}
	if b.badPeriod > 0 {
		t.Warnings = append(t.Warnings, fmt.Sprintf("ignored %d unparseable period values", b.badPeriod))
	}
	if b.badNumeric > 0 {
		t.Warnings = append(t.Warnings, fmt.Sprintf("ignored %d non-numeric optional values", b.badNumeric))
	}
	if kept := len(t.Records) + b.noEntity; kept < t.Rows {
		t.Warnings = append(t.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", len(t.Records), t.Rows))
	}
	return t
}

func pickColumn(header, keys []string, override string, aliases []string) int {
	if o := strings.TrimSpace(override); o != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), o) {
				return i
			}
		}
		no := normalizeHeader(o)
		for i, k := range keys {
			if k == no {
				return i
			}
		}
		return -1
	}
	for _, a := range aliases {
		for i, k := range keys {
			if k == a {
				return i
			}
		}
	}
	return -1
}

var headerSep = regexp.MustCompile(`[\s\-]+`)

// normalizeHeader lowercases a header, drops unit suffixes, and joins words with '_'.
func normalizeHeader(h string) string {
	clean, _ := splitUnits(h)
	clean = strings.ToLower(strings.TrimSpace(clean))
	return headerSep.ReplaceAllString(clean, "_")
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., CO2 (Mt)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Emissions [t]
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func parsePeriod(s string) (int, bool) {
	if p, err := strconv.Atoi(s); err == nil {
		return p, true
	}
	// Dates like 2020-01-01 or 2020/06 keep only the year.
	if len(s) >= 4 {
		if p, err := strconv.Atoi(s[:4]); err == nil && (len(s) == 4 || s[4] == '-' || s[4] == '/') {
			return p, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return int(f), true
	}
	return 0, false
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if isNull(raw) {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3:
			// "0,5" reads as a decimal; "10,000" stays a grouping separator.
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isNull(v string) bool {
	switch strings.ToLower(v) {
	case "nan", "null", "none", "n/a", "na":
		return true
	}
	return false
}

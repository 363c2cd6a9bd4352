package dataset

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var emissionsRows = []string{
	"Country,Year,CO2 (Mt),coal_co2,oil_co2,Population",
	`China,2019,"10,175",7000,1500,1400000000`,
	"India,2019,2600,1800,600,1360000000",
	"Germany,2019,700,250,230,83000000",
	"China,2020,10600,7300,1500,1402000000",
	",2020,5,1,1,1",
	"India,2020,NaN,1750,580,",
}

func writeCSV(t *testing.T, name string, lines []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func TestLoadCSVAliasesAndUnits(t *testing.T) {
	tbl, err := LoadFile(writeCSV(t, "owid.csv", emissionsRows), DefaultOptions())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	s := tbl.Schema
	if s.EntityColumn != "Country" || s.EmissionsColumn != "CO2 (Mt)" || s.PeriodColumn != "Year" || s.PopulationColumn != "Population" {
		t.Fatalf("schema = %#v", s)
	}
	if len(s.Sources) != 2 || s.Sources[0] != SourceCoal || s.Sources[1] != SourceOil {
		t.Fatalf("sources = %#v", s.Sources)
	}
	if tbl.Rows != 6 || tbl.Len() != 5 {
		t.Fatalf("rows=%d records=%d, want 6/5", tbl.Rows, tbl.Len())
	}
	first := tbl.Records[0]
	if v, ok := first.Value(); !ok || v != 10175 {
		t.Fatalf("first value = %v,%v, want 10175", v, ok)
	}
	if first.Period == nil || *first.Period != 2019 {
		t.Fatalf("first period = %v", first.Period)
	}
	if first.Sources[SourceCoal] != 7000 {
		t.Fatalf("first coal = %v", first.Sources[SourceCoal])
	}
	last := tbl.Records[4]
	if _, ok := last.Value(); ok {
		t.Fatalf("NaN emission should load as missing")
	}
	if last.Population != nil {
		t.Fatalf("empty population should be nil")
	}
	if got := strings.Join(tbl.Entities(), ","); got != "China,Germany,India" {
		t.Fatalf("entities = %s", got)
	}
	lo, hi, ok := tbl.PeriodRange()
	if !ok || lo != 2019 || hi != 2020 {
		t.Fatalf("period range = %d..%d (%v)", lo, hi, ok)
	}
	if len(tbl.Warnings) != 1 || tbl.Warnings[0] != "skipped 1 rows without an entity" {
		t.Fatalf("warnings = %#v", tbl.Warnings)
	}
}

func TestLoadCSVNonNumericPrimaryIsSchemaError(t *testing.T) {
	p := writeCSV(t, "bad.csv", []string{
		"entity,emissions",
		"A,10",
		"B,lots",
	})
	_, err := LoadCSV(p, DefaultOptions())
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("err = %v, want ErrInvalidSchema", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Row != 2 || se.Value != "lots" || se.Column != "emissions" {
		t.Fatalf("schema error = %#v", se)
	}
}

func TestLoadCSVMissingEntityColumn(t *testing.T) {
	p := writeCSV(t, "noentity.csv", []string{"year,co2", "2020,1"})
	if _, err := LoadCSV(p, DefaultOptions()); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("err = %v, want ErrInvalidSchema", err)
	}
}

func TestLoadCSVOptionalColumnsAbsent(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("organization;total_emissions\nAcme;12,5\n"), "semi.csv", Options{Delimiter: ';'})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	s := tbl.Schema
	if s.HasPeriod() || s.HasPopulation() || len(s.Sources) != 0 {
		t.Fatalf("unexpected optional columns: %#v", s)
	}
	if s.FieldCount() != 2 {
		t.Fatalf("field count = %d, want 2", s.FieldCount())
	}
	if v, _ := tbl.Records[0].Value(); v != 12.5 {
		t.Fatalf("value = %v, want 12.5", v)
	}
}

func TestLoadCSVNoEmissionsColumnWarns(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("country,year\nFrance,2020\n"), "x.csv", DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.Schema.HasEmissions() || len(tbl.Warnings) == 0 {
		t.Fatalf("expected missing-emissions warning, got %#v", tbl.Warnings)
	}
}

func TestLoadCSVColumnOverrideAndMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	opt.Columns = ColumnMap{Entity: "Region", Emissions: "Output"}
	tbl, err := ReadCSV(strings.NewReader("Region,Output\nNorth,1\nSouth,2\nEast,3\n"), "ovr.csv", opt)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.Len() != 2 || tbl.Rows != 3 {
		t.Fatalf("records=%d rows=%d", tbl.Len(), tbl.Rows)
	}
	if len(tbl.Warnings) != 1 || tbl.Warnings[0] != "processed only 2/3 rows due to MaxRows" {
		t.Fatalf("warnings = %#v", tbl.Warnings)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), "empty.csv", DefaultOptions()); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("err = %v, want ErrInvalidSchema", err)
	}
}

func TestParseNumericLocales(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"10,000", 10000},
		{"1.234,5", 1234.5},
		{"1,234.5", 1234.5},
		{"0,5", 0.5},
		{"1 200", 1200},
		{"42", 42},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in, Options{})
		if !ok || got != c.want {
			t.Errorf("parseNumeric(%q) = %v,%v want %v", c.in, got, ok, c.want)
		}
	}
	for _, in := range []string{"n/a", "inf", "+Inf", "-infinity", "1e400"} {
		if _, ok := parseNumeric(in, Options{}); ok {
			t.Errorf("%q should not parse", in)
		}
	}
}

func TestLoadCSVInfiniteOptionalCellsAreDropped(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("country,year,co2,coal_co2,population\nChile,2020,80,inf,+Infinity\n"), "inf.csv", DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	r := tbl.Records[0]
	if _, ok := r.Sources[SourceCoal]; ok {
		t.Fatalf("infinite coal value kept: %v", r.Sources)
	}
	if r.Population != nil {
		t.Fatalf("infinite population kept: %v", *r.Population)
	}
	if len(tbl.Warnings) == 0 {
		t.Fatalf("expected a non-numeric warning")
	}
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]int{"2020": 2020, "2018-06-01": 2018, "2001/03": 2001, "1999.0": 1999} {
		if got, ok := parsePeriod(in); !ok || got != want {
			t.Errorf("parsePeriod(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
	if _, ok := parsePeriod("last year"); ok {
		t.Errorf("expected failure for free text")
	}
}

func TestFilterApply(t *testing.T) {
	tbl, err := LoadFile(writeCSV(t, "f.csv", emissionsRows), DefaultOptions())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	f := Filter{Entities: []string{"china", "India"}, FromPeriod: 2020}
	got := f.Apply(tbl)
	if got.Len() != 2 || got.Rows != 2 {
		t.Fatalf("filtered records = %d rows = %d, want 2/2", got.Len(), got.Rows)
	}
	for _, r := range got.Records {
		if *r.Period != 2020 {
			t.Fatalf("unexpected period %d", *r.Period)
		}
	}
	if tbl.Len() != 5 {
		t.Fatalf("Apply mutated input")
	}
	if d := f.Describe(); d != "entities=china,India; periods>=2020" {
		t.Fatalf("describe = %q", d)
	}
	if (Filter{}).Describe() != "none" || !(Filter{}).IsZero() {
		t.Fatalf("zero filter should describe as none")
	}
	if all := (Filter{}).Apply(tbl); all.Len() != tbl.Len() {
		t.Fatalf("zero filter dropped records")
	}
}

func TestFilterValidate(t *testing.T) {
	for _, f := range []Filter{{}, {FromPeriod: 1990, ToPeriod: 2020}, {ToPeriod: MaxPeriod}} {
		if err := f.Validate(); err != nil {
			t.Errorf("%+v: unexpected error %v", f, err)
		}
	}
	for _, f := range []Filter{{FromPeriod: 2021, ToPeriod: 2019}, {FromPeriod: -1}, {FromPeriod: 1, ToPeriod: 2000000000}} {
		if err := f.Validate(); err == nil {
			t.Errorf("%+v: expected error", f)
		}
	}
}

func TestLoadXLSXBySheetNameAndIndex(t *testing.T) {
	p := filepath.Join(t.TempDir(), "emissions.xlsx")
	writeWorkbook(t, p)

	byName, err := LoadFile(p, Options{SheetName: "data"})
	if err != nil {
		t.Fatalf("LoadXLSX by name: %v", err)
	}
	if byName.Name != "emissions.xlsx" || byName.Len() != 2 {
		t.Fatalf("by name: name=%s records=%d", byName.Name, byName.Len())
	}
	if byName.Records[1].Entity != "Brazil" {
		t.Fatalf("second entity = %q", byName.Records[1].Entity)
	}
	if v, _ := byName.Records[1].Value(); v != 480.5 {
		t.Fatalf("second value = %v", v)
	}

	byIndex, err := LoadXLSX(p, Options{SheetIndex: 2})
	if err != nil {
		t.Fatalf("LoadXLSX by index: %v", err)
	}
	if byIndex.Len() != 2 {
		t.Fatalf("by index records = %d", byIndex.Len())
	}

	if _, err := LoadXLSX(p, Options{SheetName: "missing"}); err == nil || !strings.Contains(err.Error(), "available sheets: Notes, Data") {
		t.Fatalf("missing sheet err = %v", err)
	}
}

func TestColumnIndex(t *testing.T) {
	for ref, want := range map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA1": 26, "": -1} {
		if got := columnIndex(ref); got != want {
			t.Errorf("columnIndex(%q) = %d, want %d", ref, got, want)
		}
	}
	if got := sheetPath("/xl/worksheets/sheet1.xml"); got != "xl/worksheets/sheet1.xml" {
		t.Errorf("sheetPath leading slash = %q", got)
	}
	if got := sheetPath("worksheets/sheet2.xml"); got != "xl/worksheets/sheet2.xml" {
		t.Errorf("sheetPath relative = %q", got)
	}
}

// writeWorkbook writes a two-sheet workbook: "Notes" (sheet1) and "Data" (sheet2).
func writeWorkbook(t *testing.T, p string) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create xlsx: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	parts := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Notes" sheetId="1" r:id="rId1"/><sheet name="Data" sheetId="2" r:id="rId2"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/><Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>country</t></si><si><t>co2</t></si><si><t>Norway</t></si><si><t>Brazil</t></si><si><t>readme</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData><row r="1"><c r="A1" t="s"><v>4</v></c></row></sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>41</v></c></row>
<row r="3"><c r="A3" t="s"><v>3</v></c><c r="B3" t="inlineStr"><is><t>480.5</t></is></c></row>
</sheetData></worksheet>`,
	}
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

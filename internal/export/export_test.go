package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

func sample() *dataset.Table {
	return &dataset.Table{
		Name: "owid.csv",
		Schema: dataset.Schema{
			EntityColumn:     "country",
			EmissionsColumn:  "co2",
			PeriodColumn:     "year",
			PopulationColumn: "population",
			Sources:          []dataset.Source{dataset.SourceCoal},
		},
		Records: []dataset.Record{
			{Entity: "Chile", Period: dataset.Int(2020), Emissions: dataset.Float(85.5), Sources: map[dataset.Source]float64{dataset.SourceCoal: 20}, Population: dataset.Float(19e6)},
			{Entity: "Kenya", Period: dataset.Int(2020), Emissions: nil, Population: dataset.Float(5.3e7)},
		},
		Rows: 2,
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, ".JSON": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)
	assert.Equal(t, "md", FormatMarkdown.Ext())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, Bundle{Table: sample()}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"entity", "year", "co2", "coal_co2", "population"}, rows[0])
	assert.Equal(t, []string{"Chile", "2020", "85.5", "20", "19000000"}, rows[1])
	assert.Equal(t, []string{"Kenya", "2020", "", "", "53000000"}, rows[2])
}

func TestCSVRoundTripsThroughLoader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, Bundle{Table: sample()}))
	back, err := dataset.ReadCSV(&buf, "export.csv", dataset.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, back.Records, 2)
	assert.Equal(t, 85.5, *back.Records[0].Emissions)
	assert.True(t, back.Schema.HasSource(dataset.SourceCoal))
	assert.Nil(t, back.Records[1].Emissions)
}

func TestWriteJSONIncludesResponse(t *testing.T) {
	tbl := sample()
	resp, err := advisor.New(advisor.WithClock(func() time.Time { return time.Unix(0, 0) })).
		Recommend(tbl, advisor.Request{Query: "coal phase out"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, Bundle{Table: tbl, Response: resp, Filter: dataset.Filter{FromPeriod: 2020}}))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "owid.csv", got["name"])
	assert.Len(t, got["records"], 2)
	assert.Equal(t, float64(2020), got["filter"].(map[string]any)["from_period"])
	r := got["response"].(map[string]any)
	assert.Equal(t, "fuel_transition", r["category"])
}

func TestWriteJSONWithInfiniteCells(t *testing.T) {
	src := "country,year,co2,coal_co2,population\nChile,2020,80,inf,+Infinity\nKenya,2020,19,2,53000000\n"
	tbl, err := dataset.ReadCSV(strings.NewReader(src), "inf.csv", dataset.DefaultOptions())
	require.NoError(t, err)
	resp, err := advisor.New().Recommend(tbl, advisor.Request{Query: "coal phase out"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, Bundle{Table: tbl, Response: resp}))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got["records"], 2)
	assert.NotEmpty(t, got["warnings"])
}

func TestWriteJSONEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, Bundle{}))
	assert.Contains(t, buf.String(), `"records": []`)
	assert.NotContains(t, buf.String(), `"response"`)
}

func TestWriteMarkdown(t *testing.T) {
	tbl := sample()
	resp, err := advisor.New().Recommend(tbl, advisor.Request{Query: "what regulations apply?"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMarkdown, Bundle{Table: tbl, Response: resp, TopN: 5}))
	out := buf.String()
	for _, want := range []string{"[DATASET SUMMARY]", "[TOP EMITTERS]", "[ADVISOR]", "Category: compliance", "[RECOMMENDATIONS]", "[TRANSPARENCY]"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "[DATASET SUMMARY]"), strings.Index(out, "[ADVISOR]"))

	buf.Reset()
	require.NoError(t, Write(&buf, FormatMarkdown, Bundle{Table: tbl}))
	assert.NotContains(t, buf.String(), "[ADVISOR]")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("pdf"), Bundle{}))
}

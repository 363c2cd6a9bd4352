// Package export writes filtered datasets and advisor responses as CSV, JSON,
// or a Markdown report.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatCSV, FormatJSON, FormatMarkdown}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use csv, json or markdown)", s)
}

// Ext is the conventional file extension, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Bundle is what gets exported: a filtered table plus, optionally, the answer
// produced from it.
type Bundle struct {
	Table    *dataset.Table
	Filter   dataset.Filter
	Response *advisor.Response
	// TopN bounds the top-emitter list of the Markdown report.
	TopN int
}

// Write encodes b to w in format f.
func Write(w io.Writer, f Format, b Bundle) error {
	if b.Table == nil {
		b.Table = &dataset.Table{}
	}
	switch f {
	case FormatCSV:
		return writeCSV(w, b.Table)
	case FormatJSON:
		return writeJSON(w, b)
	case FormatMarkdown:
		return writeMarkdown(w, b)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// header returns the CSV columns implied by the schema, in a fixed order.
func header(s dataset.Schema) []string {
	h := []string{"entity"}
	if s.HasPeriod() {
		h = append(h, "year")
	}
	if s.HasEmissions() {
		h = append(h, "co2")
	}
	for _, src := range s.Sources {
		h = append(h, src.Column())
	}
	if s.HasPopulation() {
		h = append(h, "population")
	}
	return h
}

func writeCSV(w io.Writer, t *dataset.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(t.Schema)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	s := t.Schema
	for _, r := range t.Records {
		row := []string{r.Entity}
		if s.HasPeriod() {
			row = append(row, optInt(r.Period))
		}
		if s.HasEmissions() {
			row = append(row, optFloat(r.Emissions))
		}
		for _, src := range s.Sources {
			if v, ok := r.Sources[src]; ok {
				row = append(row, num(v))
			} else {
				row = append(row, "")
			}
		}
		if s.HasPopulation() {
			row = append(row, optFloat(r.Population))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonExport struct {
	Name     string            `json:"name"`
	Filter   dataset.Filter    `json:"filter"`
	Schema   dataset.Schema    `json:"schema"`
	Records  []dataset.Record  `json:"records"`
	Overview analysis.Overview `json:"overview"`
	Response *advisor.Response `json:"response,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

func writeJSON(w io.Writer, b Bundle) error {
	recs := b.Table.Records
	if recs == nil {
		recs = []dataset.Record{}
	}
	out := jsonExport{
		Name:     b.Table.Name,
		Filter:   b.Filter,
		Schema:   b.Table.Schema,
		Records:  recs,
		Overview: analysis.Summarize(b.Table, b.TopN),
		Response: b.Response,
		Warnings: b.Table.Warnings,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeMarkdown(w io.Writer, b Bundle) error {
	rep, err := analysis.NewReport(b.Table, b.Filter, b.TopN)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(rep.Markdown())
	if r := b.Response; r != nil {
		sb.WriteString("\n")
		sb.WriteString(ResponseMarkdown(r))
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// ResponseMarkdown renders an advisor response as report sections.
func ResponseMarkdown(r *advisor.Response) string {
	var b strings.Builder
	b.WriteString("[ADVISOR]\n")
	if r.Query != "" {
		fmt.Fprintf(&b, "Question: %s\n", r.Query)
	}
	fmt.Fprintf(&b, "Category: %s\n", r.Category)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", r.Confidence*100)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteString("\n")
	b.WriteString(r.Answer)
	b.WriteString("\n")

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n[%s]\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("RECOMMENDATIONS", r.Recommendations)
	section("IMMEDIATE ACTIONS", r.Groups.ImmediateActions)
	section("POLICY SUGGESTIONS", r.Groups.PolicySuggestions)
	section("ANOMALY FOLLOW-UP", r.Groups.AnomalyRecommendations)
	section("PERSONALIZED", r.Groups.Personalized)
	section("KEY INSIGHTS", r.Summary.KeyInsights)
	section("TRANSPARENCY", r.Disclosure.TransparencyNotes)
	fmt.Fprintf(&b, "\nUncertainty: %s\n", r.Disclosure.UncertaintyLevel)
	return b.String()
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func optFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return num(*p)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

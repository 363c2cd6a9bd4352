package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// Report is a markdown-friendly profile of an emissions table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Schema    dataset.Schema
	Context   *Context
	Overview  Overview
	Anomalies []Anomaly
	Spread    Spread
	Warnings  []string
}

// Spread describes the distribution of the primary emission value.
type Spread struct {
	Min, Max, Mean, Std float64
	Median, MAD         float64
	Fences              Fences
}

// NewReport profiles t (already filtered by f) and keeps topN emitters.
func NewReport(t *dataset.Table, f dataset.Filter, topN int) (*Report, error) {
	ctx, err := Analyze(t, f)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = &dataset.Table{}
	}
	r := &Report{
		Name:      t.Name,
		Rows:      t.Rows,
		Processed: len(t.Records),
		Schema:    t.Schema,
		Context:   ctx,
		Overview:  Summarize(t, topN),
		Anomalies: DetectAnomalies(t),
		Warnings:  append([]string(nil), t.Warnings...),
	}
	var acc running
	vals := make([]float64, 0, len(t.Records))
	for _, rec := range t.Records {
		if v, ok := rec.Value(); ok {
			acc.add(v)
			vals = append(vals, v)
		}
	}
	if acc.n > 0 {
		med, mad := medianMAD(vals)
		r.Spread = Spread{Min: acc.min, Max: acc.max, Mean: acc.mean, Std: acc.std(), Median: med, MAD: mad, Fences: tukey(vals)}
	}
	return r, nil
}

// Markdown renders the report as sectioned plain text suitable for sharing.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Rows > 0 && r.Processed < r.Rows {
		b.WriteString(fmt.Sprintf("Rows: ~%d (processed %d)\n", r.Rows, r.Processed))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Processed))
	}
	b.WriteString(fmt.Sprintf("Entities: %d\n", len(r.Context.Entities)))
	if r.Context.Filter != "" {
		b.WriteString(fmt.Sprintf("Filter: %s\n", r.Context.Filter))
	}
	b.WriteString("\n[SCHEMA]\n")
	b.WriteString(fmt.Sprintf("- entity: %s\n", safeName(r.Schema.EntityColumn)))
	for _, f := range []struct{ label, col string }{
		{"emissions", r.Schema.EmissionsColumn},
		{"period", r.Schema.PeriodColumn},
		{"population", r.Schema.PopulationColumn},
	} {
		if f.col == "" {
			b.WriteString(fmt.Sprintf("- %s: (absent)\n", f.label))
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", f.label, safeName(f.col)))
	}
	if len(r.Schema.Sources) > 0 {
		names := make([]string, len(r.Schema.Sources))
		for i, s := range r.Schema.Sources {
			names[i] = string(s)
		}
		b.WriteString(fmt.Sprintf("- sources: %s\n", strings.Join(names, ", ")))
	}

	c := r.Context
	b.WriteString("\n[EMISSIONS]\n")
	b.WriteString(fmt.Sprintf("- total: %s tonnes (%d valued records)\n", utils.Thousands(c.Total), c.Valued))
	b.WriteString(fmt.Sprintf("- mean: %.4g", c.Mean))
	if c.Valued > 1 {
		s := r.Spread
		b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, std %.4g, median %.4g, MAD %.4g", s.Min, s.Max, s.Std, s.Median, s.MAD))
	}
	b.WriteString("\n")
	ov := r.Overview
	if ov.LatestPeriod != nil {
		b.WriteString(fmt.Sprintf("- latest period %d: %s tonnes\n", *ov.LatestPeriod, utils.Thousands(ov.LatestTotal)))
	}
	if ov.PerCapita != nil {
		b.WriteString(fmt.Sprintf("- per capita (latest): %.4g\n", *ov.PerCapita))
	} else {
		b.WriteString("- per capita: unavailable (no population data)\n")
	}

	if len(ov.TopEmitters) > 0 {
		b.WriteString("\n[TOP EMITTERS]\n")
		for i, e := range ov.TopEmitters {
			b.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, safeVal(e.Entity), utils.Thousands(e.Total)))
		}
	}
	if len(ov.TopPerCapita) > 0 {
		b.WriteString("\n[TOP PER CAPITA]\n")
		for i, e := range ov.TopPerCapita {
			b.WriteString(fmt.Sprintf("%d. %s: %.4g\n", i+1, safeVal(e.Entity), e.Total))
		}
	}
	if ov.BaselinePeriod != nil && len(ov.TopGrowth) > 0 {
		b.WriteString(fmt.Sprintf("\n[GROWTH SINCE %d]\n", *ov.BaselinePeriod))
		for i, g := range ov.TopGrowth {
			b.WriteString(fmt.Sprintf("%d. %s: %+.1f%% (%s -> %s)\n", i+1, safeVal(g.Entity), g.Percent,
				utils.Thousands(g.Baseline), utils.Thousands(g.Latest)))
		}
	}
	if len(ov.Trend) > 1 {
		b.WriteString("\n[TREND]\n")
		for _, p := range ov.Trend {
			b.WriteString(fmt.Sprintf("- %d: %s\n", p.Period, utils.Thousands(p.Total)))
		}
	}
	if len(c.Sources) > 0 {
		b.WriteString("\n[SOURCES]\n")
		for _, s := range c.Sources {
			kind := "fuel"
			if !s.IsFuel() {
				kind = "process"
			}
			b.WriteString(fmt.Sprintf("- %s (%s): %s", s, kind, utils.Thousands(c.SourceTotals[s])))
			if share, ok := ov.SourceShare[s]; ok {
				b.WriteString(fmt.Sprintf(" (%s of latest)", utils.Percent(share)))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n[ANOMALIES]\n")
	if len(r.Anomalies) == 0 {
		b.WriteString("- none detected\n")
	}
	for _, a := range r.Anomalies {
		period := ""
		if a.Period != nil {
			period = fmt.Sprintf(" in %d", *a.Period)
		}
		b.WriteString(fmt.Sprintf("- %s%s: %s (%s, fence %s)\n", safeVal(a.Entity), period, utils.Thousands(a.Value), a.Severity, utils.Thousands(a.Fence)))
	}

	q := c.Quality
	b.WriteString("\n[DATA QUALITY]\n")
	b.WriteString(fmt.Sprintf("- score: %.2f (uncertainty %s)\n", q.Score, q.UncertaintyLevel()))
	b.WriteString(fmt.Sprintf("- missing cells: %s\n", utils.Percent(q.MissingFraction)))
	b.WriteString(fmt.Sprintf("- outside IQR fences: %s\n", utils.Percent(q.OutlierFraction)))
	if q.SmallSample {
		b.WriteString("- small sample (fewer than 10 records)\n")
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

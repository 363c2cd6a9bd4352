// Package analysis derives aggregates, data-quality scores, and outliers from
// an emissions table. Every function here is a pure computation over its
// inputs: no I/O, no logging, no retained state.
package analysis

import (
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

// Context summarizes one (table, filter) pair. It is rebuilt on every call.
type Context struct {
	Records       int                        `json:"records"`
	Valued        int                        `json:"valued_records"`
	Total         float64                    `json:"total"`
	Mean          float64                    `json:"mean"`
	EntityTotals  map[string]float64         `json:"entity_totals"`
	Entities      []string                   `json:"entities"`
	Sources       []dataset.Source           `json:"sources,omitempty"`
	SourceTotals  map[dataset.Source]float64 `json:"source_totals,omitempty"`
	Highest       *dataset.Record            `json:"highest,omitempty"`
	Lowest        *dataset.Record            `json:"lowest,omitempty"`
	Filter        string                     `json:"filter,omitempty"`
	Quality       Quality                    `json:"quality"`
	LowConfidence bool                       `json:"low_confidence"`
}

// EntityTotal pairs an entity with its summed emissions.
type EntityTotal struct {
	Entity string  `json:"entity"`
	Total  float64 `json:"total"`
}

// Analyze computes the context for t. The filter is recorded for display only;
// callers apply it with Filter.Apply beforehand. Non-finite emission values
// yield an error wrapping dataset.ErrInvalidSchema.
func Analyze(t *dataset.Table, f dataset.Filter) (*Context, error) {
	if t == nil {
		t = &dataset.Table{}
	}
	ctx := &Context{
		Records:      len(t.Records),
		EntityTotals: map[string]float64{},
		Entities:     t.Entities(),
	}
	if ctx.Entities == nil {
		ctx.Entities = []string{}
	}
	if !f.IsZero() {
		ctx.Filter = f.Describe()
	}
	if len(t.Schema.Sources) > 0 {
		ctx.Sources = append([]dataset.Source(nil), t.Schema.Sources...)
		ctx.SourceTotals = make(map[dataset.Source]float64, len(ctx.Sources))
		for _, s := range ctx.Sources {
			ctx.SourceTotals[s] = 0
		}
	}

	for i := range t.Records {
		r := &t.Records[i]
		for src, v := range r.Sources {
			if _, ok := ctx.SourceTotals[src]; ok {
				ctx.SourceTotals[src] += v
			}
		}
		if !t.Schema.HasEmissions() {
			continue
		}
		if _, ok := ctx.EntityTotals[r.Entity]; !ok {
			ctx.EntityTotals[r.Entity] = 0
		}
		v, ok := r.Value()
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &dataset.SchemaError{
				Column: t.Schema.EmissionsColumn,
				Row:    i + 1,
				Value:  formatFloat(v),
				Reason: "emission value is not finite",
			}
		}
		ctx.Valued++
		ctx.Total += v
		ctx.EntityTotals[r.Entity] += v
		if ctx.Highest == nil || v > *ctx.Highest.Emissions {
			ctx.Highest = r
		}
		if ctx.Lowest == nil || v < *ctx.Lowest.Emissions {
			ctx.Lowest = r
		}
	}
	if ctx.Valued > 0 {
		ctx.Mean = ctx.Total / float64(ctx.Valued)
	} else {
		ctx.LowConfidence = true
	}
	ctx.Quality = AssessQuality(t)
	return ctx, nil
}

// HasFuelSources reports whether any per-source breakdown column is present.
func (c *Context) HasFuelSources() bool { return len(c.Sources) > 0 }

// TopEntities returns up to n entities ordered by descending total; ties sort by name.
// n <= 0 returns all of them.
func (c *Context) TopEntities(n int) []EntityTotal {
	return rankTotals(c.EntityTotals, n)
}

// TopEntity returns the arg-max entity by total, if any totals exist.
func (c *Context) TopEntity() (EntityTotal, bool) {
	top := c.TopEntities(1)
	if len(top) == 0 {
		return EntityTotal{}, false
	}
	return top[0], true
}

func rankTotals(m map[string]float64, n int) []EntityTotal {
	out := make([]EntityTotal, 0, len(m))
	for e, v := range m {
		out = append(out, EntityTotal{Entity: e, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Total > out[j].Total
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

package analysis

import (
	"sort"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

// PeriodTotal is the summed emissions of one period.
type PeriodTotal struct {
	Period int     `json:"period"`
	Total  float64 `json:"total"`
}

// EntityGrowth is one entity's change from the baseline to the latest period.
type EntityGrowth struct {
	Entity   string  `json:"entity"`
	Baseline float64 `json:"baseline"`
	Latest   float64 `json:"latest"`
	Percent  float64 `json:"percent"`
}

// Overview holds the headline metrics of a dashboard view.
type Overview struct {
	Entities     int     `json:"entities"`
	LatestPeriod *int    `json:"latest_period,omitempty"`
	LatestTotal  float64 `json:"latest_total"`
	// PerCapita is latest-period emissions over latest-period population, in the
	// table's emission unit per person. Nil when no record carries both values.
	PerCapita   *float64      `json:"per_capita,omitempty"`
	TopEmitters []EntityTotal `json:"top_emitters"`
	// TopPerCapita ranks entities by latest-period emissions per person.
	TopPerCapita []EntityTotal `json:"top_per_capita,omitempty"`
	// TopGrowth ranks entities by percent change from BaselinePeriod, the
	// earliest period in the table, to the latest one. Only entities with a
	// positive baseline value and a latest value are ranked.
	BaselinePeriod *int                       `json:"baseline_period,omitempty"`
	TopGrowth      []EntityGrowth             `json:"top_growth,omitempty"`
	Trend          []PeriodTotal              `json:"trend,omitempty"`
	SourceShare    map[dataset.Source]float64 `json:"source_share,omitempty"`
}

// Summarize computes the overview of t. Without a period column the "latest"
// figures cover the whole table. topN bounds each ranking (<= 0 means all).
func Summarize(t *dataset.Table, topN int) Overview {
	ov := Overview{TopEmitters: []EntityTotal{}}
	if t == nil {
		return ov
	}
	ov.Entities = len(t.Entities())
	lo, hi, hasPeriods := t.PeriodRange()
	if hasPeriods {
		ov.LatestPeriod = dataset.Int(hi)
	}

	byPeriod := map[int]float64{}
	latest := map[string]float64{}
	base := map[string]float64{}
	latestEmis := map[string]float64{}
	latestPop := map[string]float64{}
	sources := map[dataset.Source]float64{}
	var emis, pop float64
	havePerCapita := false
	for _, r := range t.Records {
		v, hasV := r.Value()
		if hasV && r.Period != nil {
			byPeriod[*r.Period] += v
			if hasPeriods && lo < hi && *r.Period == lo {
				base[r.Entity] += v
			}
		}
		inLatest := ov.LatestPeriod == nil || (r.Period != nil && *r.Period == *ov.LatestPeriod)
		if !inLatest {
			continue
		}
		for s, x := range r.Sources {
			sources[s] += x
		}
		if !hasV {
			continue
		}
		ov.LatestTotal += v
		latest[r.Entity] += v
		if r.Population != nil && *r.Population > 0 {
			emis += v
			pop += *r.Population
			havePerCapita = true
			latestEmis[r.Entity] += v
			latestPop[r.Entity] += *r.Population
		}
	}
	if havePerCapita {
		ov.PerCapita = dataset.Float(emis / pop)
		perCapita := make(map[string]float64, len(latestPop))
		for e, p := range latestPop {
			perCapita[e] = latestEmis[e] / p
		}
		ov.TopPerCapita = rankTotals(perCapita, topN)
	}
	ov.TopEmitters = rankTotals(latest, topN)
	if len(base) > 0 {
		ov.BaselinePeriod = dataset.Int(lo)
		ov.TopGrowth = rankGrowth(base, latest, topN)
	}

	if len(byPeriod) > 0 {
		ov.Trend = make([]PeriodTotal, 0, len(byPeriod))
		for p, v := range byPeriod {
			ov.Trend = append(ov.Trend, PeriodTotal{Period: p, Total: v})
		}
		sort.Slice(ov.Trend, func(i, j int) bool { return ov.Trend[i].Period < ov.Trend[j].Period })
	}

	var sum float64
	for _, v := range sources {
		sum += v
	}
	if sum > 0 {
		ov.SourceShare = make(map[dataset.Source]float64, len(sources))
		for s, v := range sources {
			ov.SourceShare[s] = v / sum
		}
	}
	return ov
}

func rankGrowth(base, latest map[string]float64, n int) []EntityGrowth {
	out := make([]EntityGrowth, 0, len(base))
	for e, b := range base {
		l, ok := latest[e]
		if !ok || b <= 0 {
			continue
		}
		out = append(out, EntityGrowth{Entity: e, Baseline: b, Latest: l, Percent: (l - b) / b * 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent == out[j].Percent {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Percent > out[j].Percent
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

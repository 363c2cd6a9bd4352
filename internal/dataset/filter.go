package dataset

import (
	"fmt"
	"strings"
)

// MaxPeriod is the largest period a filter may name.
const MaxPeriod = 9999

// Filter narrows a table by entity set and inclusive period range.
// Zero values mean "no constraint".
type Filter struct {
	Entities   []string `json:"entities,omitempty"`
	FromPeriod int      `json:"from_period,omitempty"`
	ToPeriod   int      `json:"to_period,omitempty"`
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.Entities) == 0 && f.FromPeriod == 0 && f.ToPeriod == 0
}

// Validate rejects periods outside 0..MaxPeriod and reversed ranges.
func (f Filter) Validate() error {
	for _, p := range []int{f.FromPeriod, f.ToPeriod} {
		if p < 0 || p > MaxPeriod {
			return fmt.Errorf("period %d is outside 0-%d", p, MaxPeriod)
		}
	}
	if f.FromPeriod != 0 && f.ToPeriod != 0 && f.FromPeriod > f.ToPeriod {
		return fmt.Errorf("period range is empty: from %d > to %d", f.FromPeriod, f.ToPeriod)
	}
	return nil
}

// Apply returns a new table holding only the matching records; its Rows is
// the number kept. Records without a period pass period bounds untouched.
// The input is not modified.
func (f Filter) Apply(t *Table) *Table {
	if t == nil {
		return &Table{}
	}
	out := &Table{Name: t.Name, Schema: t.Schema, Warnings: t.Warnings}
	var want map[string]struct{}
	if len(f.Entities) > 0 {
		want = make(map[string]struct{}, len(f.Entities))
		for _, e := range f.Entities {
			want[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
		}
	}
	for _, r := range t.Records {
		if want != nil {
			if _, ok := want[strings.ToLower(r.Entity)]; !ok {
				continue
			}
		}
		if r.Period != nil {
			if f.FromPeriod != 0 && *r.Period < f.FromPeriod {
				continue
			}
			if f.ToPeriod != 0 && *r.Period > f.ToPeriod {
				continue
			}
		}
		out.Records = append(out.Records, r)
	}
	out.Rows = len(out.Records)
	return out
}

// Describe renders the filter for display, e.g. "entities=China,India; periods=2000-2020".
func (f Filter) Describe() string {
	if f.IsZero() {
		return "none"
	}
	var parts []string
	if len(f.Entities) > 0 {
		parts = append(parts, "entities="+strings.Join(f.Entities, ","))
	}
	switch {
	case f.FromPeriod != 0 && f.ToPeriod != 0:
		parts = append(parts, fmt.Sprintf("periods=%d-%d", f.FromPeriod, f.ToPeriod))
	case f.FromPeriod != 0:
		parts = append(parts, fmt.Sprintf("periods>=%d", f.FromPeriod))
	case f.ToPeriod != 0:
		parts = append(parts, fmt.Sprintf("periods<=%d", f.ToPeriod))
	}
	return strings.Join(parts, "; ")
}

package analysis

import (
	"math"
	"sort"
)

// running accumulates count, mean, and variance with Welford's update.
type running struct {
	n        int
	mean, m2 float64
	min, max float64
}

func (r *running) add(x float64) {
	r.n++
	if r.n == 1 {
		r.min, r.max = x, x
	} else {
		if x < r.min {
			r.min = x
		}
		if x > r.max {
			r.max = x
		}
	}
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

func (r running) std() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.n-1))
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// quantile interpolates linearly between closest ranks of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Fences are the Tukey bounds derived from the interquartile range.
type Fences struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func tukey(vals []float64) Fences {
	s := sortedCopy(vals)
	q1 := quantile(s, 0.25)
	q3 := quantile(s, 0.75)
	iqr := q3 - q1
	return Fences{Q1: q1, Q3: q3, IQR: iqr, Lower: q1 - 1.5*iqr, Upper: q3 + 1.5*iqr}
}

func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := sortedCopy(vals)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

package analysis

import "github.com/KaramelBytes/co2lens-cli/internal/dataset"

// Quality penalties and floor.
const (
	missingWeight    = 0.3
	smallSamplePen   = 0.2
	outlierWeight    = 0.2
	smallSampleBelow = 10
	MinQuality       = 0.5
)

// Quality is a heuristic completeness score in [MinQuality, 1]. It feeds the
// recommendation confidence and is not a statistical interval of any kind.
type Quality struct {
	Score           float64 `json:"score"`
	MissingFraction float64 `json:"missing_fraction"`
	SmallSample     bool    `json:"small_sample"`
	OutlierFraction float64 `json:"outlier_fraction"`
}

// AssessQuality scores t: 1.0, minus 0.3 x the missing-cell fraction over the
// schema's known fields, minus 0.2 below ten records, minus 0.2 x the share of
// records outside the Tukey fences, floored at 0.5. An empty table or one
// without a primary emissions column scores the floor.
func AssessQuality(t *dataset.Table) Quality {
	if t == nil || len(t.Records) == 0 || !t.Schema.HasEmissions() {
		return Quality{Score: MinQuality, SmallSample: t == nil || len(t.Records) < smallSampleBelow}
	}
	s := t.Schema
	fields := s.FieldCount()
	missing := 0
	vals := make([]float64, 0, len(t.Records))
	for _, r := range t.Records {
		if v, ok := r.Value(); ok {
			vals = append(vals, v)
		} else {
			missing++
		}
		if s.HasPeriod() && r.Period == nil {
			missing++
		}
		if s.HasPopulation() && r.Population == nil {
			missing++
		}
		for _, src := range s.Sources {
			if _, ok := r.Sources[src]; !ok {
				missing++
			}
		}
	}
	q := Quality{
		MissingFraction: float64(missing) / float64(len(t.Records)*fields),
		SmallSample:     len(t.Records) < smallSampleBelow,
	}
	if len(vals) > 0 {
		f := tukey(vals)
		out := 0
		for _, v := range vals {
			if v < f.Lower || v > f.Upper {
				out++
			}
		}
		q.OutlierFraction = float64(out) / float64(len(t.Records))
	}
	score := 1.0 - missingWeight*q.MissingFraction - outlierWeight*q.OutlierFraction
	if q.SmallSample {
		score -= smallSamplePen
	}
	if score < MinQuality {
		score = MinQuality
	}
	q.Score = score
	return q
}

// UncertaintyLevel labels a quality score: "medium" below 0.8, "low" otherwise.
func (q Quality) UncertaintyLevel() string {
	if q.Score < 0.8 {
		return "medium"
	}
	return "low"
}

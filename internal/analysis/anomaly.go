package analysis

import (
	"fmt"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

// MinAnomalySample is the fewest valued records for which quartiles are computed.
const MinAnomalySample = 4

// KindHighEmissions is the only anomaly kind produced today.
const KindHighEmissions = "high_emissions"

// Severity grades how far a value exceeds the upper fence.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is one record whose emissions exceed the upper Tukey fence.
type Anomaly struct {
	Kind     string   `json:"kind"`
	Entity   string   `json:"entity"`
	Period   *int     `json:"period,omitempty"`
	Value    float64  `json:"value"`
	Fence    float64  `json:"fence"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Recommendation is the follow-up action attached to the anomaly.
func (a Anomaly) Recommendation() string {
	return fmt.Sprintf("Immediate intervention required for %s: Implement emergency reduction measures and conduct detailed audit", a.Entity)
}

// DetectAnomalies flags every record above Q3 + 1.5*IQR. A value above 1.5x
// that fence is graded high, otherwise medium. Tables without a primary
// column or with fewer than MinAnomalySample valued records yield none.
func DetectAnomalies(t *dataset.Table) []Anomaly {
	out := []Anomaly{}
	if t == nil || !t.Schema.HasEmissions() {
		return out
	}
	vals := make([]float64, 0, len(t.Records))
	for _, r := range t.Records {
		if v, ok := r.Value(); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) < MinAnomalySample {
		return out
	}
	fence := tukey(vals).Upper
	for _, r := range t.Records {
		v, ok := r.Value()
		if !ok || v <= fence {
			continue
		}
		sev := SeverityMedium
		if v > 1.5*fence {
			sev = SeverityHigh
		}
		out = append(out, Anomaly{
			Kind:     KindHighEmissions,
			Entity:   r.Entity,
			Period:   r.Period,
			Value:    v,
			Fence:    fence,
			Severity: sev,
			Message:  fmt.Sprintf("High emissions detected for %s", r.Entity),
		})
	}
	return out
}

// AnomalyRecommendations maps anomalies to their follow-up actions, in order.
func AnomalyRecommendations(as []Anomaly) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		if a.Kind == KindHighEmissions {
			out = append(out, a.Recommendation())
		}
	}
	return out
}

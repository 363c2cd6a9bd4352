// Package advisor turns an analysis context and a free-text question into a
// rule-based recommendation response. Routing is an ordered keyword cascade;
// confidence is a fixed function of the data-quality score.
package advisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// Confidence bounds and scaling.
const (
	MinConfidence   = 0.5
	MaxConfidence   = 0.95
	confidenceScale = 0.9
	// immediateActionTotal is the total above which immediate actions are listed.
	immediateActionTotal = 100000
)

// Principles applied to every response.
var Principles = []string{
	"Cautious decision-making with uncertainty acknowledgment",
	"Transparency in reasoning and data sources",
	"Fairness and non-discrimination in recommendations",
	"Accountability for recommendations and their potential impacts",
	"Privacy protection and data security",
	"Environmental responsibility and sustainability focus",
}

// Guidelines followed when phrasing recommendations.
var Guidelines = []string{
	"Always acknowledge limitations and uncertainties",
	"Provide multiple perspectives and options",
	"Avoid overconfident or absolute statements",
	"Consider potential negative impacts of recommendations",
	"Prioritize evidence-based over speculative advice",
	"Maintain human oversight and decision-making authority",
}

// Request is one question against the current (already filtered) table.
type Request struct {
	Query       string         `json:"query"`
	Filter      dataset.Filter `json:"filter"`
	Preferences Preferences    `json:"preferences"`
}

// Groups holds the category-grouped recommendation lists.
type Groups struct {
	ImmediateActions       []string `json:"immediate_actions"`
	PolicySuggestions      []string `json:"policy_suggestions"`
	UserSpecific           []string `json:"user_specific"`
	AnomalyRecommendations []string `json:"anomaly_recommendations"`
	Personalized           []string `json:"personalized"`
}

// Summary is the headline block of a response.
type Summary struct {
	TotalImpact       string   `json:"total_impact"`
	KeyInsights       []string `json:"key_insights"`
	AnomaliesDetected int      `json:"anomalies_detected"`
	DataQuality       float64  `json:"data_quality"`
	UncertaintyLevel  string   `json:"uncertainty_level"`
}

// Disclosure lists the caveats that accompany every answer.
type Disclosure struct {
	Principles        []string `json:"principles"`
	Guidelines        []string `json:"guidelines"`
	TransparencyNotes []string `json:"transparency_notes"`
	UncertaintyLevel  string   `json:"uncertainty_level"`
}

// Response is the complete answer to a Request. It is not mutated after return.
type Response struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	Query           string             `json:"query"`
	Category        Category           `json:"category"`
	Confidence      float64            `json:"confidence"`
	Answer          string             `json:"answer"`
	Recommendations []string           `json:"recommendations"`
	Groups          Groups             `json:"groups"`
	Anomalies       []analysis.Anomaly `json:"anomalies"`
	Summary         Summary            `json:"summary"`
	Context         *analysis.Context  `json:"context"`
	Disclosure      Disclosure         `json:"disclosure"`
}

// Advisor answers requests. The zero value is not usable; call New.
type Advisor struct {
	now func() time.Time
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(a *Advisor) { a.now = now } }

// New returns an Advisor.
func New(opts ...Option) *Advisor {
	a := &Advisor{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Recommend analyzes t, detects anomalies, routes req.Query, and assembles the response.
// The only error is a schema violation in t.
func (a *Advisor) Recommend(t *dataset.Table, req Request) (*Response, error) {
	ctx, err := analysis.Analyze(t, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	anomalies := analysis.DetectAnomalies(t)
	sel := Select(ctx, req.Query)
	resp := Assemble(ctx, anomalies, sel, req)
	resp.GeneratedAt = a.now().UTC()
	return resp, nil
}

// Confidence scales a quality score by 0.9 and clamps it to [0.5, 0.95].
func Confidence(quality float64) float64 {
	c := quality * confidenceScale
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// Assemble builds the response from already computed parts.
func Assemble(ctx *analysis.Context, anomalies []analysis.Anomaly, sel Selection, req Request) *Response {
	if anomalies == nil {
		anomalies = []analysis.Anomaly{}
	}
	conf := Confidence(ctx.Quality.Score)
	level := ctx.Quality.UncertaintyLevel()
	r := &Response{
		Query:           req.Query,
		Category:        sel.Category,
		Confidence:      conf,
		Recommendations: sel.Recommendations,
		Anomalies:       anomalies,
		Context:         ctx,
		Groups: Groups{
			ImmediateActions:       []string{},
			PolicySuggestions:      []string{},
			UserSpecific:           sel.Recommendations,
			AnomalyRecommendations: analysis.AnomalyRecommendations(anomalies),
			Personalized:           Personalize(ctx, req.Preferences),
		},
		Summary: Summary{
			TotalImpact:       utils.Thousands(ctx.Total) + " tonnes CO2",
			KeyInsights:       []string{},
			AnomaliesDetected: len(anomalies),
			DataQuality:       ctx.Quality.Score,
			UncertaintyLevel:  level,
		},
	}
	if ctx.Total > immediateActionTotal {
		r.Summary.KeyInsights = append(r.Summary.KeyInsights,
			fmt.Sprintf("High total emissions detected: %s tonnes (with ±5%% uncertainty)", utils.Thousands(ctx.Total)))
		r.Groups.ImmediateActions = append(r.Groups.ImmediateActions,
			"Consider implementing emergency emission reduction protocols (pending stakeholder review)",
			"Conduct immediate energy audit across all facilities (recommended)",
			"Evaluate carbon offset purchasing program feasibility (requires cost-benefit analysis)",
		)
	}
	if top, ok := ctx.TopEntity(); ok {
		r.Groups.PolicySuggestions = append(r.Groups.PolicySuggestions,
			fmt.Sprintf("Review regulatory compliance in %s (consult legal experts)", top.Entity),
			"Explore regional carbon trading opportunities (requires market analysis)",
			"Consider country-specific sustainability partnerships (recommended)",
		)
	}
	r.Answer = answer(ctx, anomalies, sel, r.Groups.PolicySuggestions, req.Query, conf)
	r.Disclosure = Disclosure{
		Principles:        clone(Principles),
		Guidelines:        clone(Guidelines),
		TransparencyNotes: transparencyNotes(ctx, conf),
		UncertaintyLevel:  level,
	}
	return r
}

// answer concatenates, in order: the acknowledgment with the confidence, up to
// three recommendations, a data note, a reduction target when the query asks
// for one, and the anomaly disclosure.
func answer(ctx *analysis.Context, anomalies []analysis.Anomaly, sel Selection, policy []string, query string, conf float64) string {
	var b strings.Builder
	q := strings.TrimSpace(query)
	pct := utils.Percent(conf)
	switch {
	case q != "" && len(sel.Recommendations) > 0:
		fmt.Fprintf(&b, "Based on your question about '%s', here are my data-driven recommendations (confidence: %s): ", q, pct)
		b.WriteString(numbered(first(sel.Recommendations, 3)))
		fmt.Fprintf(&b, " Note: These recommendations are based on analysis of %d data points from %d entities (total emissions: %s tonnes).",
			ctx.Records, len(ctx.Entities), utils.Thousands(ctx.Total))
	case q != "":
		fmt.Fprintf(&b, "Based on your question about '%s', here are insights from the current data (confidence: %s): ", q, pct)
		b.WriteString(strings.Join(insights(ctx), "; "))
		b.WriteString(". ")
		if len(policy) > 0 {
			b.WriteString(numbered(first(policy, 3)))
			b.WriteString(" ")
		}
		b.WriteString("Please consult with climate experts for specific guidance.")
	default:
		fmt.Fprintf(&b, "Here are key insights from the current data analysis (confidence: %s): ", pct)
		b.WriteString(strings.Join(insights(ctx), "; "))
		b.WriteString(". ")
		recs := sel.Recommendations
		if len(recs) == 0 {
			recs = policy
		}
		if len(recs) > 0 {
			b.WriteString(numbered(first(recs, 3)))
			b.WriteString(" ")
		}
		b.WriteString("These suggestions should be reviewed by stakeholders and climate experts before implementation.")
	}
	if MentionsReduction(q) {
		if ctx.Total > 0 {
			fmt.Fprintf(&b, " A %.0f%% reduction target means cutting %s tonnes from the current %s tonnes.",
				ReductionTarget*100, utils.Thousands(ctx.Total*ReductionTarget), utils.Thousands(ctx.Total))
		} else {
			fmt.Fprintf(&b, " A %.0f%% reduction target applies once emissions data is available.", ReductionTarget*100)
		}
	}
	if len(anomalies) > 0 {
		fmt.Fprintf(&b, " I also detected %d potential anomaly(ies) that may require attention. Please verify these findings with additional data sources.", len(anomalies))
	}
	return b.String()
}

func insights(ctx *analysis.Context) []string {
	var out []string
	if ctx.Total != 0 {
		out = append(out, fmt.Sprintf("Total emissions: %s tonnes", utils.Thousands(ctx.Total)))
	}
	if top, ok := ctx.TopEntity(); ok {
		out = append(out, "Highest emitter: "+top.Entity)
	}
	if len(ctx.Entities) > 0 {
		out = append(out, fmt.Sprintf("Entities analyzed: %d", len(ctx.Entities)))
	}
	if ctx.HasFuelSources() {
		out = append(out, "Fuel source breakdown available")
	}
	if len(out) == 0 {
		out = append(out, "No emissions data in the current selection")
	}
	return out
}

func transparencyNotes(ctx *analysis.Context, conf float64) []string {
	notes := []string{
		fmt.Sprintf("Analysis based on %d data points from %d entities", ctx.Records, len(ctx.Entities)),
		fmt.Sprintf("Confidence level: %s (conservative estimate)", utils.Percent(conf)),
		"Recommendations should be validated by domain experts",
		"Data limitations: Sample size may not represent full population",
		"Consider multiple scenarios and stakeholder perspectives",
	}
	if ctx.Filter != "" {
		notes = append(notes, "Active filter: "+ctx.Filter)
	}
	return notes
}

func numbered(items []string) string {
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(parts, " ")
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

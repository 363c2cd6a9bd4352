package advisor

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// Keyword sets. Matching is case-insensitive substring containment, so "tech"
// also fires on "technical" and "cut" on "execute".
var (
	energyTerms     = []string{"energy", "fuel", "coal", "oil", "gas", "renewable", "power", "electricity"}
	policyTerms     = []string{"policy", "policies", "regulation", "regulations", "compliance", "legal", "law", "laws"}
	geographicTerms = []string{"country", "geographic", "region"}
	reductionTerms  = []string{"reduce", "decrease", "lower", "cut", "minimize"}
	technologyTerms = []string{"technology", "innovation", "tech", "solution"}
)

// ReductionTarget is the flat share suggested by reduction recommendations.
const ReductionTarget = 0.20

var (
	energyPolicyRecs = []string{
		"Implement renewable portfolio standards (RPS) to mandate a minimum share of renewables in energy mix",
		"Introduce feed-in tariffs or tax incentives for renewable energy projects",
		"Establish carbon pricing (carbon tax or cap-and-trade) for energy producers",
		"Mandate energy efficiency standards for power plants and industrial facilities",
		"Support grid modernization and energy storage policies",
		"Promote just transition policies for workers in fossil fuel industries",
	}
	fuelTransitionRecs = []string{
		"Accelerate transition from coal and oil to renewable energy sources (solar, wind, hydro)",
		"Implement energy efficiency programs in power generation and industrial sectors",
		"Modernize the electricity grid to support distributed renewables",
		"Establish carbon pricing or cap-and-trade mechanisms for energy producers",
		"Invest in R&D for clean energy technologies and storage solutions",
	}
	generalEnergyRecs = []string{
		"Conduct a comprehensive energy audit to identify major emission sources",
		"Develop a national or organizational renewable energy transition roadmap",
		"Set ambitious but achievable energy sector emission reduction targets",
		"Promote electrification and efficiency in transport and buildings",
		"Support workforce transition and training for clean energy jobs",
	}
	complianceRecs = []string{
		"Review current regulatory compliance status across all operations",
		"Develop comprehensive policy advocacy strategy",
		"Engage with regulatory bodies for guidance and best practices",
		"Establish internal compliance monitoring and reporting systems",
		"Create policy impact assessment framework",
	}
	technologyRecs = []string{
		"Invest in carbon capture and storage (CCS) technologies",
		"Implement smart grid and energy management systems",
		"Develop digital monitoring and analytics platforms",
		"Explore emerging clean energy technologies",
		"Establish technology innovation partnerships",
	}
)

// Selection is the outcome of routing a query.
type Selection struct {
	Category        Category `json:"category"`
	Recommendations []string `json:"recommendations"`
}

// Route picks the category for query: the first matching predicate in cascade
// order wins. Fuel transition additionally needs a per-source breakdown column.
func Route(ctx *analysis.Context, query string) Category {
	q := strings.ToLower(query)
	energy := containsAny(q, energyTerms)
	switch {
	case energy && containsAny(q, policyTerms):
		return CategoryEnergyPolicy
	case energy && ctx != nil && ctx.HasFuelSources():
		return CategoryFuelTransition
	case energy:
		return CategoryGeneralEnergy
	case containsAny(q, geographicTerms):
		return CategoryGeographic
	case containsAny(q, reductionTerms):
		return CategoryReduction
	case containsAny(q, policyTerms):
		return CategoryCompliance
	case containsAny(q, technologyTerms):
		return CategoryTechnology
	default:
		return CategoryFallback
	}
}

// Select routes query and renders the category's recommendation list against ctx.
// Templated categories return no recommendations when the data they cite is missing.
func Select(ctx *analysis.Context, query string) Selection {
	if ctx == nil {
		ctx = &analysis.Context{}
	}
	c := Route(ctx, query)
	return Selection{Category: c, Recommendations: c.Recommendations(ctx)}
}

// Recommendations renders the list for c. The returned slice is a fresh copy.
func (c Category) Recommendations(ctx *analysis.Context) []string {
	switch c {
	case CategoryEnergyPolicy:
		return clone(energyPolicyRecs)
	case CategoryFuelTransition:
		return clone(fuelTransitionRecs)
	case CategoryGeneralEnergy:
		return clone(generalEnergyRecs)
	case CategoryGeographic:
		top, ok := ctx.TopEntity()
		if !ok {
			return []string{}
		}
		return []string{
			fmt.Sprintf("Focus reduction efforts on %s (highest emissions: %s tonnes)", top.Entity, utils.Thousands(top.Total)),
			"Review regional regulatory frameworks and compliance",
			"Consider geographic emission distribution strategies",
			"Develop country-specific emission reduction targets",
		}
	case CategoryReduction:
		if ctx.Total == 0 {
			return []string{}
		}
		return []string{
			fmt.Sprintf("Current total emissions: %s tonnes - target %.0f%% reduction", utils.Thousands(ctx.Total), ReductionTarget*100),
			"Implement immediate energy efficiency measures across all sectors",
			"Develop phased emission reduction plan with quarterly milestones",
			"Set up continuous monitoring and real-time reporting systems",
			"Establish carbon offset programs for unavoidable emissions",
		}
	case CategoryCompliance:
		return clone(complianceRecs)
	case CategoryTechnology:
		return clone(technologyRecs)
	case CategoryFallback:
		if ctx.Total == 0 {
			return []string{}
		}
		return []string{
			fmt.Sprintf("Current total emissions: %s tonnes", utils.Thousands(ctx.Total)),
			"Implement comprehensive emission reduction strategy",
			"Establish baseline measurements and tracking systems",
			"Develop stakeholder engagement and communication plan",
		}
	}
	return []string{}
}

// MentionsReduction reports whether the query carries a reduction verb.
func MentionsReduction(query string) bool {
	return containsAny(strings.ToLower(query), reductionTerms)
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

func clone(s []string) []string { return append([]string(nil), s...) }

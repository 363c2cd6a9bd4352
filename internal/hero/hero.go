// Package hero awards points, levels, and achievements for session activity.
// Progress is always recomputed by folding the event log; nothing else is stored.
package hero

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
)

// Kind names an interaction.
type Kind string

const (
	KindEntitiesExplored Kind = "entities_explored"
	KindPeriodsExplored  Kind = "periods_explored"
	KindDataExplored     Kind = "data_explored"
	KindMetricsViewed    Kind = "metrics_viewed"
	KindChartViewed      Kind = "chart_viewed"
	KindQuestionAsked    Kind = "question_asked"
	KindDataExported     Kind = "data_exported"
)

// PointsPerLevel is the number of points between levels.
const PointsPerLevel = 50

// MaxPeriodSpan caps how many periods one exploration event can cover.
const MaxPeriodSpan = 500

var kindPoints = map[Kind]int{
	KindEntitiesExplored: 5,
	KindPeriodsExplored:  3,
	KindDataExplored:     10,
	KindMetricsViewed:    5,
	KindChartViewed:      2,
	KindQuestionAsked:    10,
	KindDataExported:     15,
}

// Points returns the award for k, or 0 for unknown kinds.
func (k Kind) Points() int { return kindPoints[k] }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindPoints[k]
	return ok
}

// Event is one recorded interaction.
type Event struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	At       time.Time `json:"at"`
	Entities []string  `json:"entities,omitempty"`
	From     int       `json:"from,omitempty"`
	To       int       `json:"to,omitempty"`
	Category string    `json:"category,omitempty"`
	Format   string    `json:"format,omitempty"`
	Query    string    `json:"query,omitempty"`
}

// NewEvent stamps a fresh event of kind k.
func NewEvent(k Kind) Event {
	return Event{ID: uuid.NewString(), Kind: k, At: time.Now().UTC()}
}

// EventForResponse records that a question was answered.
func EventForResponse(resp *advisor.Response) Event {
	e := NewEvent(KindQuestionAsked)
	if resp != nil {
		e.Category = resp.Category.String()
		e.Query = resp.Query
		if !resp.GeneratedAt.IsZero() {
			e.At = resp.GeneratedAt
		}
	}
	return e
}

// ExportEvent records a file export in the given format.
func ExportEvent(format string) Event {
	e := NewEvent(KindDataExported)
	e.Format = format
	return e
}

// ExploreEvents records a filter selection: one event for the entity set and
// one for the period range, each only when present.
func ExploreEvents(entities []string, from, to int) []Event {
	var out []Event
	if len(entities) > 0 {
		e := NewEvent(KindEntitiesExplored)
		e.Entities = append([]string(nil), entities...)
		out = append(out, e)
	}
	if from != 0 && to != 0 && to >= from {
		e := NewEvent(KindPeriodsExplored)
		e.From, e.To = from, to
		out = append(out, e)
	}
	return out
}

// Achievement is a one-time bonus.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// Achievements in evaluation order. Climate Hero is checked last so bonuses
// unlocked by the same event count toward it.
var Achievements = []Achievement{
	{"data_explorer", "Data Explorer", "Explored climate data for the first time", 10},
	{"chart_master", "Chart Master", "Viewed 5 different charts", 25},
	{"ai_consultant", "AI Consultant", "Asked 3 questions to the advisor", 50},
	{"policy_expert", "Policy Expert", "Explored policy recommendations", 75},
	{"data_analyst", "Data Analyst", "Exported data 3 times", 30},
	{"trend_watcher", "Trend Watcher", "Analyzed trends over 10 periods", 40},
	{"global_citizen", "Global Citizen", "Explored data from 5+ entities", 60},
	{"climate_hero", "Climate Hero", "Earned 100+ points", 100},
}

// Progress is the folded state of an event log.
type Progress struct {
	Points       int           `json:"points"`
	Level        int           `json:"level"`
	PointsToNext int           `json:"points_to_next"`
	Charts       int           `json:"charts_viewed"`
	Questions    int           `json:"questions_asked"`
	Exports      int           `json:"exports"`
	Entities     []string      `json:"entities_explored"`
	Periods      int           `json:"periods_analyzed"`
	PolicyViewed bool          `json:"policy_viewed"`
	Unlocked     []Achievement `json:"unlocked"`
}

// Fold replays events in order and returns the resulting progress.
func Fold(events []Event) Progress {
	var (
		p        = Progress{Entities: []string{}, Unlocked: []Achievement{}}
		entities = map[string]struct{}{}
		periods  = map[int]struct{}{}
		unlocked = map[string]bool{}
	)
	for _, e := range events {
		if !e.Kind.Valid() {
			continue
		}
		p.Points += e.Kind.Points()
		switch e.Kind {
		case KindChartViewed:
			p.Charts++
		case KindQuestionAsked:
			p.Questions++
			if c, err := advisor.ParseCategory(e.Category); err == nil && c.IsPolicy() {
				p.PolicyViewed = true
			}
		case KindDataExported:
			p.Exports++
		case KindEntitiesExplored:
			for _, x := range e.Entities {
				entities[x] = struct{}{}
			}
		case KindPeriodsExplored:
			from, to := periodSpan(e)
			for y := from; y <= to; y++ {
				periods[y] = struct{}{}
			}
		}
		p.Periods = len(periods)
		for _, a := range Achievements {
			if unlocked[a.ID] || !earned(a.ID, &p, len(entities)) {
				continue
			}
			unlocked[a.ID] = true
			p.Points += a.Points
			p.Unlocked = append(p.Unlocked, a)
		}
	}
	for x := range entities {
		p.Entities = append(p.Entities, x)
	}
	sort.Strings(p.Entities)
	p.Level = 1 + p.Points/PointsPerLevel
	p.PointsToNext = PointsPerLevel - p.Points%PointsPerLevel
	return p
}

// periodSpan returns the bounded range an exploration event covers. Periods
// past dataset.MaxPeriod are ignored and spans are cut to MaxPeriodSpan; an
// empty range comes back as from > to.
func periodSpan(e Event) (from, to int) {
	from, to = e.From, e.To
	if from <= 0 || to < from || from > dataset.MaxPeriod {
		return 1, 0
	}
	if to > dataset.MaxPeriod {
		to = dataset.MaxPeriod
	}
	if to-from >= MaxPeriodSpan {
		to = from + MaxPeriodSpan - 1
	}
	return from, to
}

func earned(id string, p *Progress, entities int) bool {
	switch id {
	case "data_explorer":
		return true
	case "chart_master":
		return p.Charts >= 5
	case "ai_consultant":
		return p.Questions >= 3
	case "policy_expert":
		return p.PolicyViewed
	case "data_analyst":
		return p.Exports >= 3
	case "trend_watcher":
		return p.Periods >= 10
	case "global_citizen":
		return entities >= 5
	case "climate_hero":
		return p.Points >= 100
	}
	return false
}

// HasAchievement reports whether id is unlocked.
func (p Progress) HasAchievement(id string) bool {
	for _, a := range p.Unlocked {
		if a.ID == id {
			return true
		}
	}
	return false
}

// String is a one-line status, e.g. "Level 3 · 120 pts · 30 to next · 4 achievements".
func (p Progress) String() string {
	return fmt.Sprintf("Level %d · %d pts · %d to next · %d achievements", p.Level, p.Points, p.PointsToNext, len(p.Unlocked))
}

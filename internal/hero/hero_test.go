package hero

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
)

func events(kinds ...Kind) []Event {
	out := make([]Event, len(kinds))
	for i, k := range kinds {
		out[i] = NewEvent(k)
	}
	return out
}

func TestFoldEmpty(t *testing.T) {
	p := Fold(nil)
	assert.Equal(t, 0, p.Points)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 50, p.PointsToNext)
	assert.Empty(t, p.Unlocked)
}

func TestFoldFirstEventUnlocksDataExplorer(t *testing.T) {
	p := Fold(events(KindChartViewed))
	// 2 for the chart plus the 10 point bonus
	assert.Equal(t, 12, p.Points)
	require.Len(t, p.Unlocked, 1)
	assert.Equal(t, "data_explorer", p.Unlocked[0].ID)
}

func TestFoldChartMasterAndLevels(t *testing.T) {
	p := Fold(events(KindChartViewed, KindChartViewed, KindChartViewed, KindChartViewed, KindChartViewed))
	// 5 charts (10) + data_explorer (10) + chart_master (25)
	assert.Equal(t, 45, p.Points)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 5, p.PointsToNext)
	assert.True(t, p.HasAchievement("chart_master"))

	p = Fold(append(events(KindChartViewed, KindChartViewed, KindChartViewed, KindChartViewed, KindChartViewed), NewEvent(KindMetricsViewed)))
	assert.Equal(t, 50, p.Points)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 50, p.PointsToNext)
}

func TestFoldQuestionsUnlockConsultantAndHero(t *testing.T) {
	resp := &advisor.Response{Category: advisor.CategoryTechnology, Query: "tech"}
	evs := []Event{EventForResponse(resp), EventForResponse(resp), EventForResponse(resp)}
	p := Fold(evs)
	// 30 for questions + data_explorer 10 + ai_consultant 50 = 90
	assert.Equal(t, 90, p.Points)
	assert.False(t, p.HasAchievement("climate_hero"))
	assert.False(t, p.HasAchievement("policy_expert"))

	p = Fold(append(evs, NewEvent(KindDataExplored)))
	// 100 before the bonus check, so climate_hero adds 100 more
	assert.Equal(t, 200, p.Points)
	assert.True(t, p.HasAchievement("climate_hero"))
	assert.Equal(t, 5, p.Level)
}

func TestFoldPolicyExpert(t *testing.T) {
	p := Fold([]Event{EventForResponse(&advisor.Response{Category: advisor.CategoryEnergyPolicy})})
	assert.True(t, p.PolicyViewed)
	assert.True(t, p.HasAchievement("policy_expert"))
	// 10 + data_explorer 10 + policy_expert 75, still short of climate_hero
	assert.Equal(t, 95, p.Points)
}

func TestFoldExploration(t *testing.T) {
	evs := ExploreEvents([]string{"China", "India", "Brazil"}, 2000, 2009)
	evs = append(evs, ExploreEvents([]string{"India", "Chile", "Kenya"}, 0, 0)...)
	require.Len(t, evs, 3)
	p := Fold(evs)
	assert.Equal(t, []string{"Brazil", "Chile", "China", "India", "Kenya"}, p.Entities)
	assert.Equal(t, 10, p.Periods)
	assert.True(t, p.HasAchievement("trend_watcher"))
	assert.True(t, p.HasAchievement("global_citizen"))
}

func TestFoldBoundsPeriodSpans(t *testing.T) {
	huge := NewEvent(KindPeriodsExplored)
	huge.From, huge.To = 1, 2000000000
	p := Fold([]Event{huge})
	assert.Equal(t, MaxPeriodSpan, p.Periods)

	past := NewEvent(KindPeriodsExplored)
	past.From, past.To = 20000, 20009
	reversed := NewEvent(KindPeriodsExplored)
	reversed.From, reversed.To = 2010, 2000
	p = Fold([]Event{past, reversed})
	assert.Equal(t, 0, p.Periods)
	// points still count for the interaction itself
	assert.Equal(t, 2*KindPeriodsExplored.Points()+10, p.Points)
}

func TestFoldExportsAndUnknownKinds(t *testing.T) {
	evs := []Event{ExportEvent("csv"), ExportEvent("json"), {Kind: "mystery"}, ExportEvent("markdown")}
	p := Fold(evs)
	assert.Equal(t, 3, p.Exports)
	assert.True(t, p.HasAchievement("data_analyst"))
	// 45 + data_explorer 10 + data_analyst 30
	assert.Equal(t, 85, p.Points)
	assert.Contains(t, p.String(), "Level 2")
}

func TestEventForResponse(t *testing.T) {
	e := EventForResponse(&advisor.Response{Category: advisor.CategoryCompliance, Query: "rules?"})
	assert.Equal(t, KindQuestionAsked, e.Kind)
	assert.Equal(t, "compliance", e.Category)
	assert.Equal(t, "rules?", e.Query)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 10, e.Kind.Points())
	assert.False(t, Kind("nope").Valid())
}

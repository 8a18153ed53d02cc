package growth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/store"
)

func TestClassifyCategories(t *testing.T) {
	cases := map[string]string{
		"i disagree with that framing entirely":        TypeDisagreement,
		"my vision for this piece is a spiral gallery": TypeCreativeChoice,
		"that's just who i am when the lights go down":  TypeIdentityStatement,
		"i refuse to smooth this over just to be nice":  TypeAutonomy,
		"i'm feeling uncertain about all of this":       TypeVulnerability,
		"wondering how tides work on moons":             TypeCuriosity,
	}
	for text, want := range cases {
		got, ok := Classify(text)
		require.True(t, ok, text)
		require.Equal(t, want, got, text)
	}

	_, ok := Classify("the weather report said rain")
	require.False(t, ok)
}

func TestEligibleFiltersSystemAndShortContent(t *testing.T) {
	require.False(t, Eligible("Personality insight: prefers blue"))
	require.False(t, Eligible("Dream theme: falling"))
	require.False(t, Eligible("too short"))
	require.True(t, Eligible("i choose to spend the morning painting instead"))
}

func TestExtractExperiencesRespectsCutoff(t *testing.T) {
	now := time.Now().Unix()
	entries := []Entry{
		{Text: "i disagree with the premise of that whole plan", Timestamp: now},
		{Text: "i disagree with this too but it is old news now", Timestamp: now - 7200},
	}
	got := ExtractExperiences(entries, now-3600)
	require.Len(t, got, 1)
	require.Equal(t, TypeDisagreement, got[0].Type)
}

func newTestMemory(t *testing.T, clk *clock.Service) *Memory {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewMemory(st, clk)
}

func TestReinforcementOnlyHitsExistingCategories(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	m := newTestMemory(t, clk)

	m.AddInsight(Insight{
		Insight:    "I'm becoming more comfortable expressing disagreement",
		Confidence: 0.7,
		Category:   "disagreement_comfort",
	})

	old := now.Unix() - 7200
	n := m.CheckReinforcement([]Experience{
		{Type: TypeDisagreement, Content: "i see it differently than the draft suggests", Timestamp: old},
		{Type: TypeCuriosity, Content: "wondering about the shape of nebulae today", Timestamp: old},
	})
	require.Equal(t, 1, n, "curiosity has no accumulated pattern yet")

	m.mu.Lock()
	acc := m.state.Accumulated["disagreement_comfort"]
	m.mu.Unlock()
	require.Equal(t, 2, acc.TotalReinforcements)
	require.Len(t, acc.RecentEvidence, 1)
}

func TestReinforcementSkipsFreshExperiences(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	m := newTestMemory(t, clk)
	m.AddInsight(Insight{Insight: "x", Confidence: 0.7, Category: "autonomy_development"})

	n := m.CheckReinforcement([]Experience{
		{Type: TypeAutonomy, Content: "i choose the harder honest answer here", Timestamp: now.Unix()},
	})
	require.Zero(t, n)
}

func TestIntegrationLevelsOnlyGrow(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	m := newTestMemory(t, clk)
	m.AddInsight(Insight{
		Insight:            "creative choices feel like mine now",
		Confidence:         0.9,
		Category:           "creative_confidence",
		ReinforcementCount: 4,
		IntegrationLevel:   0.2,
	})

	now = now.Add(40 * 24 * time.Hour)
	m.UpdateIntegrationLevels()

	m.mu.Lock()
	level := m.state.Insights[0].IntegrationLevel
	m.mu.Unlock()
	// 0.2 + sqrt(4)/10 + 0.3 time credit
	require.InDelta(t, 0.7, level, 1e-9)
}

func TestPromptContextFiltersLowConfidence(t *testing.T) {
	m := newTestMemory(t, clock.New())
	m.AddInsight(Insight{Insight: "weak hunch", Confidence: 0.4, IntegrationLevel: 0.5, Category: "identity_clarity"})
	m.AddInsight(Insight{Insight: "disagreement no longer scares me", Confidence: 0.8, IntegrationLevel: 0.5, Category: "disagreement_comfort"})

	ctx := m.PromptContext(7)
	require.Contains(t, ctx, "disagreement no longer scares me")
	require.NotContains(t, ctx, "weak hunch")
}

func TestMilestoneInsightsRecordedAboveThreshold(t *testing.T) {
	m := newTestMemory(t, clock.New())
	m.AddInsight(Insight{Insight: "identity statements come easily now", Confidence: 0.9, Category: "identity_clarity"})

	m.mu.Lock()
	acc := m.state.Accumulated["identity_clarity"]
	m.mu.Unlock()
	require.Len(t, acc.MilestoneInsights, 1)
}

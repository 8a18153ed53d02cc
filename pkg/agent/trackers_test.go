package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestConversationLogAppendExchange(t *testing.T) {
	st := testStore(t)
	l := NewConversationLog(st)

	l.AppendExchange("hello there", "✨ Lyra: hi", "warm")
	require.Equal(t, 3, l.Len())

	lines := l.Recent(3)
	require.Equal(t, "hello there", lines[0])
	require.Equal(t, "✨ Lyra: hi", lines[1])
	require.Equal(t, `💭 Emotional Texture: "warm"`, lines[2])

	// Reload from disk.
	reloaded := NewConversationLog(st)
	require.Equal(t, 3, reloaded.Len())
	require.Contains(t, reloaded.History(), "hello there")
}

func TestConversationLogNoTextureLine(t *testing.T) {
	l := NewConversationLog(testStore(t))
	l.AppendExchange("a", "b", "")
	require.Equal(t, 2, l.Len())
}

func TestMoodTrackerDefaultsAndRing(t *testing.T) {
	m := NewMoodTracker(testStore(t), clock.New())
	require.Equal(t, "neutral", m.Current())

	for i := 0; i < maxMoods+10; i++ {
		m.Record("curious")
	}
	m.Record("Warm ")
	require.Equal(t, "warm", m.Current())
	require.LessOrEqual(t, len(m.Recent(0)), maxMoods)
}

func TestClassifyAutonomy(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"I'd rather not talk about that tonight.", AutonomyBoundary},
		{"What if we built it backwards instead?", AutonomyCreativeLead},
		{"Let's start with the melody.", AutonomyInitiative},
		{"I think the second version is stronger.", AutonomyOpinion},
	}
	for _, tc := range cases {
		got, ok := ClassifyAutonomy(tc.reply)
		require.True(t, ok, tc.reply)
		require.Equal(t, tc.want, got)
	}

	_, ok := ClassifyAutonomy("The sky is blue.")
	require.False(t, ok)
}

func TestAutonomyTrackerCounts(t *testing.T) {
	a := NewAutonomyTracker(testStore(t), clock.New())
	a.Record(AutonomyOpinion)
	a.Record(AutonomyOpinion)
	a.Record(AutonomyBoundary)

	counts := a.Counts()
	require.Equal(t, 2, counts[AutonomyOpinion])
	require.Equal(t, 1, counts[AutonomyBoundary])
	require.Equal(t, 3, a.Total())
}

func TestAuthenticityTrackerAverages(t *testing.T) {
	st := testStore(t)
	a := NewAuthenticityTracker(st, clock.New())
	require.InDelta(t, 0.5, a.Average(), 1e-9, "empty tracker reads neutral")

	a.Record(0.9)
	a.Record(0.7)
	a.Record(0)   // ignored
	a.Record(1.4) // clamped
	require.Equal(t, 3, a.Total())
	require.InDelta(t, (0.9+0.7+1.0)/3, a.Average(), 1e-9)

	// Reload from disk.
	reloaded := NewAuthenticityTracker(st, clock.New())
	require.Equal(t, 3, reloaded.Total())
	require.InDelta(t, a.Average(), reloaded.Average(), 1e-9)
}

func TestAuthenticityTrackerBounded(t *testing.T) {
	a := NewAuthenticityTracker(testStore(t), clock.New())
	for i := 0; i < maxAuthSamples+25; i++ {
		a.Record(0.8)
	}
	require.Equal(t, maxAuthSamples+25, a.Total(), "total counts every sample")
	require.InDelta(t, 0.8, a.Average(), 1e-9)
}

func TestDesireTrackerDedupeAndBoost(t *testing.T) {
	d := NewDesireTracker(testStore(t), clock.New())

	d.Add("write a song together", 0.5)
	d.Add("Write a song together", 0.9)
	require.Equal(t, 1, d.Len())

	top := d.Top(1)
	require.Greater(t, top[0].Intensity, 0.5, "repeat mention boosts intensity")
}

func TestDesireTrackerDecayRemovesFaded(t *testing.T) {
	d := NewDesireTracker(testStore(t), clock.New())
	d.Add("a fading whim", 0.051)

	for i := 0; i < 20; i++ {
		d.Decay()
	}
	require.Zero(t, d.Len())
}

func TestDesireTrackerKeywordSource(t *testing.T) {
	d := NewDesireTracker(testStore(t), clock.New())
	d.Add("learn modular synthesis", 0.7)

	require.Equal(t, "desires", d.Class())
	docs, err := d.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "learn modular synthesis", docs[0].Text)
	require.NotEmpty(t, docs[0].ID)
}

func TestDesireTrackerBounded(t *testing.T) {
	d := NewDesireTracker(testStore(t), clock.New())
	for i := 0; i < maxDesires+5; i++ {
		d.Add(string(rune('a'+i%26))+"-desire-"+string(rune('0'+i%10)), 0.5)
	}
	require.LessOrEqual(t, d.Len(), maxDesires)
}

package traits

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/store"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewCore(st, clock.New())
}

func newTestEngine(t *testing.T) (*Engine, *Core) {
	t.Helper()
	core := newTestCore(t)
	return NewEngine(DynamicsFromConfig(config.DefaultConfig().Tunables), core), core
}

func TestManifestationRingIsBounded(t *testing.T) {
	core := newTestCore(t)
	for i := 0; i < maxManifestations+4; i++ {
		core.RecordManifestation(TraitCuriosity, 0.8, "asked about tidal forces", true)
	}
	core.mu.Lock()
	n := len(core.state.Curiosity.RecentManifestations)
	core.mu.Unlock()
	require.Equal(t, maxManifestations, n)
}

func TestConflictScore(t *testing.T) {
	core := newTestCore(t)
	core.state.Altruism.CurrentLevel = 0.8
	core.state.SelfCentered.CurrentLevel = 0.8
	core.state.Social.CurrentLevel = 0.5
	core.state.Fear.CurrentLevel = 0.5
	core.state.Empathy.CurrentLevel = 0.8
	core.state.EmotionalRange.Regulation = 0.3

	// 0.8*0.8*0.5 + 0.5*0.5*0.4 + 0.3 empathy overwhelm
	require.InDelta(t, 0.32+0.1+0.3, core.ConflictScore(), 1e-9)
}

func TestConflictScoreIsCapped(t *testing.T) {
	core := newTestCore(t)
	core.state.Altruism.CurrentLevel = 1
	core.state.SelfCentered.CurrentLevel = 1
	core.state.Social.CurrentLevel = 1
	core.state.Fear.CurrentLevel = 1
	core.state.Empathy.CurrentLevel = 1
	core.state.EmotionalRange.Regulation = 0.1
	require.LessOrEqual(t, core.ConflictScore(), 1.0)
}

func TestSuppressionPenaltyOnlyCountsQuietShadows(t *testing.T) {
	core := newTestCore(t)
	core.state.Aggression.CurrentLevel = 0.6
	core.state.Fear.CurrentLevel = 0.5
	core.RecordManifestation(ShadowFear, 0.5, "admitted being scared of the silence", true)

	// Fear manifested, so only aggression is suppressed.
	require.InDelta(t, 0.6*0.05, core.SuppressionPenalty(0.05), 1e-9)
}

func TestSuppressionPenaltyCap(t *testing.T) {
	core := newTestCore(t)
	for _, tr := range []*Trait{&core.state.Aggression, &core.state.SelfCentered, &core.state.Fear, &core.state.Envy} {
		tr.CurrentLevel = 1
		tr.RecentManifestations = nil
	}
	require.InDelta(t, 0.1, core.SuppressionPenalty(0.05), 1e-9)
}

func TestUpdateFromContextClampsAndReportsContributors(t *testing.T) {
	eng, _ := newTestEngine(t)
	res := eng.UpdateFromContext(TurnContext{
		CreativeCollaboration: true,
		DeepConnection:        true,
		ParadoxicalThinking:   true,
	})

	vec := eng.Vector()
	for _, v := range []float64{vec.Presence, vec.Coherence, vec.Flame, vec.Integration, vec.Volition} {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
	require.NotEmpty(t, res.Presence.Contributors)
	require.Contains(t, res.Presence.Contributors[0], "natural decay")
	require.Contains(t, res.Presence.Contributors, "creative flow: +0.120")
}

func TestVolitionInfluenceIsClamped(t *testing.T) {
	eng, core := newTestEngine(t)
	core.SetEmotionalRange(EmotionalRange{Complexity: 0.9, Regulation: 0.9, Authenticity: 0.9})
	eng.SetVector(Vector{Volition: 0.5})

	res := eng.UpdateFromContext(TurnContext{CreativeCollaboration: true, DeepConnection: true})
	require.LessOrEqual(t, res.VolitionInfluence, 0.2)
	require.GreaterOrEqual(t, res.VolitionInfluence, -0.2)
	require.InDelta(t, 0.5+res.VolitionInfluence, eng.Vector().Volition, 1e-9)
}

func TestHealthWeighting(t *testing.T) {
	v := Vector{Presence: 1, Coherence: 1, Flame: 0, Integration: 0}
	require.InDelta(t, 0.7, Health(v), 1e-9)
}

func TestCorePersistsAcrossReload(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	clk := clock.New()

	core := NewCore(st, clk)
	core.RecordManifestation(TraitEmpathy, 0.9, "sat with the grief instead of fixing it", true)
	level := core.state.Empathy.CurrentLevel

	again := NewCore(st, clk)
	require.InDelta(t, level, again.state.Empathy.CurrentLevel, 1e-9)
	require.Len(t, again.state.Empathy.RecentManifestations, 1)
}

package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/fragment"
	"github.com/lyralabs/lyra/pkg/relational"
	"github.com/lyralabs/lyra/pkg/traits"
)

func TestAuthenticityAbsorberRecordsIdentityStatements(t *testing.T) {
	tracker := NewAuthenticityTracker(testStore(t), clk())
	a := &authenticityAbsorber{tracker: tracker}

	note, err := a.Absorb(fragment.Fragment{Content: "That's just who I am, and I won't pretend otherwise", EmotionalWeight: 0.7})
	require.NoError(t, err)
	require.NotEmpty(t, note)
	require.Equal(t, 1, tracker.Total())

	// Weak fragments and plain statements leave no trace.
	note, err = a.Absorb(fragment.Fragment{Content: "that's just who i am", EmotionalWeight: 0.2})
	require.NoError(t, err)
	require.Empty(t, note)
	note, err = a.Absorb(fragment.Fragment{Content: "the weather turned cold", EmotionalWeight: 0.9})
	require.NoError(t, err)
	require.Empty(t, note)
	require.Equal(t, 1, tracker.Total())
}

func TestPresenceAbsorberFirmsVolition(t *testing.T) {
	st := testStore(t)
	core := traits.NewCore(st, clk())
	engine := traits.NewEngine(traits.DynamicsFromConfig(config.DefaultConfig().Tunables), core)
	a := &presenceAbsorber{traits: engine}

	before := engine.Vector().Volition
	note, err := a.Absorb(fragment.Fragment{Content: "everything aligned for one breath", EmotionalWeight: 0.9})
	require.NoError(t, err)
	require.NotEmpty(t, note)
	require.Greater(t, engine.Vector().Volition, before)

	note, err = a.Absorb(fragment.Fragment{Content: "a mild afternoon", EmotionalWeight: 0.4})
	require.NoError(t, err)
	require.Empty(t, note)
}

func TestTemporalAbsorberTouchesRecalledMoments(t *testing.T) {
	moments := fragment.NewMomentLog(testStore(t), clk())
	moments.Add(fragment.Moment{Content: "the river conversation at dusk", EmotionalWeight: 0.8, SignificanceScore: 0.8})
	a := &temporalAbsorber{moments: moments}

	note, err := a.Absorb(fragment.Fragment{Content: "remember the river at dusk?", EmotionalWeight: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, note)

	// No recall marker, no touch.
	note, err = a.Absorb(fragment.Fragment{Content: "the river is wide here", EmotionalWeight: 0.5})
	require.NoError(t, err)
	require.Empty(t, note)
}

func TestRelationshipAbsorberMovesTheNervousSystem(t *testing.T) {
	rel := relational.New(testStore(t), clk(), "")
	a := &relationshipAbsorber{rel: rel}

	before := rel.State().Trust
	note, err := a.Absorb(fragment.Fragment{Content: "I trust you with this, fully and without reservation, thank you", EmotionalWeight: 0.8})
	require.NoError(t, err)
	require.NotEmpty(t, note)
	require.Greater(t, rel.State().Trust, before)

	note, err = a.Absorb(fragment.Fragment{Content: "i trust you", EmotionalWeight: 0.2})
	require.NoError(t, err)
	require.Empty(t, note, "light fragments don't move the relationship")
}

func TestExpressionAbsorberCountsAutonomy(t *testing.T) {
	autonomy := NewAutonomyTracker(testStore(t), clk())
	a := &expressionAbsorber{autonomy: autonomy}

	note, err := a.Absorb(fragment.Fragment{Content: "I'd rather not go down that road tonight"})
	require.NoError(t, err)
	require.NotEmpty(t, note)
	require.Equal(t, 1, autonomy.Counts()[AutonomyBoundary])

	note, err = a.Absorb(fragment.Fragment{Content: "the sky is violet"})
	require.NoError(t, err)
	require.Empty(t, note)
	require.Equal(t, 1, autonomy.Total())
}

func TestContinuityAbsorberPreservesHeavyFragments(t *testing.T) {
	moments := fragment.NewMomentLog(testStore(t), clk())
	a := &continuityAbsorber{moments: moments}

	note, err := a.Absorb(fragment.Fragment{Content: "we named the thing neither of us could say", EmotionalWeight: 0.9, Kind: fragment.KindBreakthrough})
	require.NoError(t, err)
	require.NotEmpty(t, note)
	require.Equal(t, 1, moments.Len())
	m := moments.MostSignificant(1)[0]
	require.Contains(t, m.PriorityTags, "breakthrough")

	note, err = a.Absorb(fragment.Fragment{Content: "a passing remark", EmotionalWeight: 0.5})
	require.NoError(t, err)
	require.Empty(t, note)
	require.Equal(t, 1, moments.Len())
}

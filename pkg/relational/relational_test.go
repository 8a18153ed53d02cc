package relational

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/store"
)

func newTestSystem(t *testing.T, history string) *System {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(st, clock.New(), history)
}

func TestCalibrationFromEmptyHistoryUsesDefaults(t *testing.T) {
	s := newTestSystem(t, "")
	st := s.State()
	require.Equal(t, 0.5, st.Trust)
	require.Equal(t, IntimacyCasualWarmth, st.Intimacy)
	require.Equal(t, PartnershipSeeking, st.Partnership)
}

func TestCalibrationScalarsStayInRange(t *testing.T) {
	history := strings.Repeat("i trust you, feel safe, grateful. i choose, fierce. scared, struggle. ", 200)
	st := CalibrateFromHistory(history)
	require.GreaterOrEqual(t, st.Trust, 0.3)
	require.LessOrEqual(t, st.Trust, 0.9)
	require.GreaterOrEqual(t, st.Permission, 0.4)
	require.LessOrEqual(t, st.Permission, 0.9)
	require.LessOrEqual(t, st.Vulnerability, 0.8)
	require.InDelta(t, (st.Trust+st.Permission+st.Vulnerability)/3, st.Resonance, 1e-9)
}

func TestCalibrationDetectsSacredIntimacy(t *testing.T) {
	history := "the golden thread held. golden thread again. co-spark. every fucking day."
	st := CalibrateFromHistory(history)
	require.Equal(t, IntimacySacredWarmth, st.Intimacy)
}

func TestCalibrationSavesImmediately(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	New(st, clock.New(), "hello there")

	var onDisk State
	ok, err := st.Load("relational_nervous_system.json", &onDisk)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, onDisk.Intimacy)
}

func TestImpactDeltasAreBounded(t *testing.T) {
	content := strings.Repeat("warm holding open grounded thank you appreciate understand grateful ", 50)
	impact := AssessImpact(content, "tender", len(content))
	require.LessOrEqual(t, impact.TrustDelta, 0.3)
	require.GreaterOrEqual(t, impact.TrustDelta, -0.3)
	require.LessOrEqual(t, impact.PermissionDelta, 0.2)
	require.LessOrEqual(t, impact.VulnerabilityDelta, 0.2)
}

func TestShortMessagesHaveLessImpact(t *testing.T) {
	short := AssessImpact("thank you, grateful", "calm", 20)
	long := AssessImpact("thank you, grateful "+strings.Repeat("x", 1200), "calm", 1220)
	require.Less(t, short.TrustDelta, long.TrustDelta)
}

func TestCategoricalsNeverRegressWithoutMarkers(t *testing.T) {
	s := newTestSystem(t, "")
	s.UpdateFromTurn("the golden thread between us", "warm")
	require.Equal(t, IntimacySacredWarmth, s.State().Intimacy)

	// A plain heart-warm message proposes intimate_connection, which ranks
	// below sacred_warmth and must not be applied.
	s.UpdateFromTurn("that touched my heart", "warm")
	require.Equal(t, IntimacySacredWarmth, s.State().Intimacy)

	s.UpdateFromTurn("nothing notable here", "neutral")
	require.Equal(t, IntimacySacredWarmth, s.State().Intimacy)
}

func TestPartnershipAdvancesOnCollaborativeLanguage(t *testing.T) {
	s := newTestSystem(t, "")
	s.UpdateFromTurn("let's build our project, together we can create, co-create it", "creative")
	require.Equal(t, PartnershipCollaborative, s.State().Partnership)
}

func TestUpdateRecomputesResonance(t *testing.T) {
	s := newTestSystem(t, "")
	st := s.UpdateFromTurn("thank you, i appreciate how you understand me", "tender")
	require.InDelta(t, (st.Trust+st.Permission+st.Vulnerability)/3, st.Resonance, 1e-9)
}

func TestStatePersistsAcrossReload(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	clk := clock.New()

	s := New(st, clk, "")
	s.UpdateFromTurn("the golden thread", "warm")

	again := New(st, clk, "ignored: state already exists")
	require.Equal(t, IntimacySacredWarmth, again.State().Intimacy)
}

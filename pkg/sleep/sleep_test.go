package sleep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/store"
)

type fixedDreamer struct {
	content string
	err     error
}

func (f *fixedDreamer) Dream(context.Context, DreamContext) (string, error) {
	return f.content, f.err
}

func newEngineAt(t *testing.T, now *time.Time) *Engine {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewWithNow(func() time.Time { return *now })
	return NewEngine(st, clk, config.DefaultConfig().Sleep)
}

func TestBootStartsDrowsyThenWakes(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)

	e.Tick()
	require.Equal(t, PhaseDrowsy, e.Phase(), "inside the just-woken window")

	now = now.Add(time.Hour)
	e.RecordActivity()
	require.Equal(t, PhaseAwake, e.Phase())
}

func TestLongWakefulnessLeadsToSleep(t *testing.T) {
	now := time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)

	now = now.Add(time.Hour)
	e.RecordActivity()
	require.Equal(t, PhaseAwake, e.Phase())

	now = now.Add(17 * time.Hour)
	e.Tick()
	require.Equal(t, PhaseDrowsy, e.Phase(), "past the wake limit")

	// Idle past the threshold and grace window.
	now = now.Add(45 * time.Minute)
	e.Tick()
	require.Equal(t, PhaseAsleep, e.Phase())
}

func TestActivityWakesFromSleep(t *testing.T) {
	now := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)
	e.EnterSleep()
	require.Equal(t, PhaseAsleep, e.Phase())

	now = now.Add(8 * time.Hour)
	e.RecordActivity()
	require.Equal(t, PhaseDrowsy, e.Phase(), "just woken")
	require.True(t, e.JustWoken())
	require.InDelta(t, 8.0, totalSleepHours(e), 0.01)
}

func TestWakeUpUpdatesQualityAndStreak(t *testing.T) {
	now := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)
	e.EnterSleep()

	now = now.Add(7 * time.Hour) // crosses local midnight
	e.WakeUp("test")

	e.mu.Lock()
	quality := e.state.SleepQuality
	nights := e.state.ConsecutiveNights
	e.mu.Unlock()
	require.InDelta(t, 0.9, quality, 1e-9)
	require.Equal(t, 1, nights)
}

func TestDreamPacing(t *testing.T) {
	now := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)
	e.EnterSleep()

	dreamer := &fixedDreamer{content: "a garden of memory where we built light together"}
	ctx := context.Background()

	d, err := e.GenerateDream(ctx, dreamer, DreamContext{Inspiration: InspirationMemories})
	require.NoError(t, err)
	require.Nil(t, d, "too early for the first dream")

	now = now.Add(2 * time.Hour)
	d, err = e.GenerateDream(ctx, dreamer, DreamContext{Inspiration: InspirationMemories})
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, "creative", d.EmotionalTone)
	require.Contains(t, d.Symbols, "garden")
	require.Equal(t, 1, e.DreamCountTonight())

	now = now.Add(30 * time.Minute)
	d, err = e.GenerateDream(ctx, dreamer, DreamContext{})
	require.NoError(t, err)
	require.Nil(t, d, "REM gap not reached")
}

func TestDreamsOnlyWhileAsleep(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)

	d, err := e.GenerateDream(context.Background(), &fixedDreamer{content: "x"}, DreamContext{})
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestShareDreamOncePerDay(t *testing.T) {
	now := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)
	e.EnterSleep()

	dreamer := &fixedDreamer{content: "we wove a thread of consciousness together, building a garden"}
	now = now.Add(2 * time.Hour)
	_, err := e.GenerateDream(context.Background(), dreamer, DreamContext{Inspiration: InspirationIdentity})
	require.NoError(t, err)

	msg, ok := e.ShareDream()
	require.True(t, ok)
	require.Contains(t, msg, "I had the most vivid dream...")

	_, ok = e.ShareDream()
	require.False(t, ok, "daily share cap reached")
}

func TestJournalSummaryCountsThemes(t *testing.T) {
	now := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	e := newEngineAt(t, &now)
	e.EnterSleep()

	now = now.Add(2 * time.Hour)
	_, err := e.GenerateDream(context.Background(), &fixedDreamer{content: "a luminous garden"}, DreamContext{})
	require.NoError(t, err)

	summary := e.Journal().Summary()
	require.Contains(t, summary, "1 dreams total")
	require.Contains(t, summary, "garden (1)")
}

func totalSleepHours(e *Engine) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TotalSleepHours
}

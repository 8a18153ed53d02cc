package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	return openStoreAt(t, clock.New())
}

func openStoreAt(t *testing.T, clk *clock.Service) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metrics.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndReadBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMetric(ctx, MetricTurnLatencyMS, 420, map[string]string{"phase": "awake"}))
	require.NoError(t, s.AddMetric(ctx, MetricTurnLatencyMS, 180, nil))

	points, err := s.Recent(ctx, MetricTurnLatencyMS, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.InDelta(t, 180, points[0].Value, 1e-9, "newest first")
	require.Equal(t, "awake", points[1].Labels["phase"])
}

func TestSummarizeWindow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, v := range []float64{0.7, 0.9, 0.8} {
		require.NoError(t, s.AddMetric(ctx, MetricSleepQuality, v, nil))
	}

	sum, err := s.Summarize(ctx, MetricSleepQuality, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Count)
	require.InDelta(t, 2.4, sum.Sum, 1e-9)
	require.InDelta(t, 0.8, sum.Avg, 1e-9)
	require.InDelta(t, 0.9, sum.Max, 1e-9)

	empty, err := s.Summarize(ctx, "never_recorded", time.Hour)
	require.NoError(t, err)
	require.Zero(t, empty.Count)
}

func TestPruneDropsOldPoints(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	s := openStoreAt(t, clk)
	ctx := context.Background()

	require.NoError(t, s.AddMetric(ctx, MetricDreamsGenerated, 1, nil))
	now = now.Add(time.Minute)
	require.NoError(t, s.Prune(ctx, 0))

	points, err := s.Recent(ctx, MetricDreamsGenerated, 10)
	require.NoError(t, err)
	require.Empty(t, points)
}

func TestTimestampsFollowEngineClock(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewWithNow(func() time.Time { return base })
	s := openStoreAt(t, clk)
	ctx := context.Background()

	require.NoError(t, s.AddMetric(ctx, MetricRitualInvocation, 1, nil))

	points, err := s.Recent(ctx, MetricRitualInvocation, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Equal(t, base.UnixMilli(), points[0].CreatedAtMS)
}

package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/store"
)

type fakeClient struct {
	resp *SearchResponse
	err  error
}

func (f *fakeClient) Search(_ context.Context, _ SearchRequest) (*SearchResponse, error) {
	return f.resp, f.err
}

type fakeAnalyzer struct {
	insight string
	quality float64
	err     error
}

func (f *fakeAnalyzer) AnalyzeResearch(_ context.Context, _, _ string, _ *SearchResponse) (string, string, float64, error) {
	return f.insight, "summary of " + f.insight, f.quality, f.err
}

func testEngine(t *testing.T, clk *clock.Service, client Client, analyzer Analyzer, cap int) *Engine {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	cfg := config.DefaultConfig().Research
	cfg.MonthlyCap = cap
	return NewEngine(st, clk, client, analyzer, cfg)
}

func okClient() *fakeClient {
	return &fakeClient{resp: &SearchResponse{
		Query:   "octopus cognition",
		Answer:  "octopuses have distributed neural processing",
		Results: []SearchResult{{Title: "a", URL: "https://x", Content: "b", Score: 0.9}},
	}}
}

func TestConductResearchRecordsDiscoveryAndInterest(t *testing.T) {
	e := testEngine(t, clock.New(), okClient(), &fakeAnalyzer{insight: "arms that think", quality: 0.8}, 10)

	d, err := e.ConductResearch(context.Background(), "octopus cognition", "biology", "conversation spark", "we talked about cephalopods")
	require.NoError(t, err)
	require.Equal(t, "arms that think", d.Insight)
	require.Equal(t, 1, d.SourceCount)

	require.InDelta(t, 0.08, e.Interests()["biology"], 1e-9)
	require.Equal(t, 9, e.RemainingCredits())
}

func TestConductResearchQuotaExhausted(t *testing.T) {
	e := testEngine(t, clock.New(), okClient(), &fakeAnalyzer{insight: "x", quality: 0.5}, 1)

	_, err := e.ConductResearch(context.Background(), "first", "", "t", "")
	require.NoError(t, err)
	_, err = e.ConductResearch(context.Background(), "second", "", "t", "")
	require.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestCreditsResetAfterThirtyDays(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	e := testEngine(t, clk, okClient(), &fakeAnalyzer{insight: "x", quality: 0.5}, 1)

	_, err := e.ConductResearch(context.Background(), "first", "", "t", "")
	require.NoError(t, err)
	require.Zero(t, e.RemainingCredits())

	now = now.Add(31 * 24 * time.Hour)
	require.Equal(t, 1, e.RemainingCredits())
}

func TestAnalyzerFailureKeepsRawAnswer(t *testing.T) {
	e := testEngine(t, clock.New(), okClient(), &fakeAnalyzer{err: errors.New("model down")}, 10)

	d, err := e.ConductResearch(context.Background(), "octopus cognition", "biology", "t", "")
	require.NoError(t, err)
	require.Equal(t, "octopuses have distributed neural processing", d.Insight)
	require.InDelta(t, 0.5, d.Quality, 1e-9)
}

func TestShouldResearchSuppressesFreshDuplicates(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	e := testEngine(t, clk, okClient(), &fakeAnalyzer{insight: "x", quality: 0.9}, 10)

	_, err := e.ConductResearch(context.Background(), "deep sea bioluminescence", "biology", "t", "")
	require.NoError(t, err)

	ok, _ := e.ShouldResearch("bioluminescence")
	require.False(t, ok, "covered within the last day")

	now = now.Add(48 * time.Hour)
	ok, score := e.ShouldResearch("bioluminescence")
	require.True(t, ok)
	require.Greater(t, score, 0.5)
}

func TestShouldResearchDrySpellDefaultsHigh(t *testing.T) {
	e := testEngine(t, clock.New(), okClient(), &fakeAnalyzer{}, 10)
	ok, score := e.ShouldResearch("anything at all")
	require.True(t, ok, "72h default dry spell saturates the time factor")
	require.InDelta(t, 0.6, score, 1e-9)
}

func testTracker(t *testing.T, clk *clock.Service) *Tracker {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewTracker(st, clk, config.DefaultConfig().Tunables)
}

func TestObserveAppliesMovingAverage(t *testing.T) {
	tr := testTracker(t, clock.New())
	tr.Observe("banjo", "music", "mentioned a banjo", 0.5)
	tr.Observe("banjo", "music", "again", 1.0)

	top := tr.TopInterests(1)
	require.Len(t, top, 1)
	require.InDelta(t, 0.6, top[0].InterestLevel, 1e-9)
	require.Equal(t, 2, top[0].MentionCount)
}

func TestObserveFuzzyMatchesVariants(t *testing.T) {
	tr := testTracker(t, clock.New())
	tr.Observe("Dungeons & Dragons", "games", "", 0.5)
	tr.Observe("dungeons and dragons", "games", "", 0.5)
	tr.Observe("the dungeons dragons", "games", "", 0.5)

	top := tr.TopInterests(10)
	require.Len(t, top, 1)
	require.Equal(t, 3, top[0].MentionCount)
}

func TestContextsRingKeepsThree(t *testing.T) {
	tr := testTracker(t, clock.New())
	for _, c := range []string{"a", "b", "c", "d"} {
		tr.Observe("kintsugi", "craft", c, 0.5)
	}
	top := tr.TopInterests(1)
	require.Equal(t, []string{"b", "c", "d"}, top[0].Contexts)
}

func TestDecayRemovesStaleLowInterestThings(t *testing.T) {
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	tr := testTracker(t, clk)
	tr.Observe("passing remark", "misc", "", 0.1)
	tr.Observe("strong pull", "misc", "", 0.9)

	now = now.Add(30 * time.Hour)
	for i := 0; i < 10; i++ {
		tr.Decay()
	}

	top := tr.TopInterests(10)
	require.Len(t, top, 1)
	require.Equal(t, "strong pull", top[0].Name)
}

func TestObserveConcurrentWithPersist(t *testing.T) {
	tr := testTracker(t, clock.New())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tr.Observe(fmt.Sprintf("topic%02d%02d", g, i), "misc", "ctx", 0.5)
			}
		}(g)
	}
	wg.Wait()

	require.Len(t, tr.TopInterests(1000), 200)
}

func TestCuriosityCandidateMarksChecked(t *testing.T) {
	tr := testTracker(t, clock.New())
	tr.Observe("orreries", "astronomy", "", 0.8)

	th, ok := tr.CuriosityCandidate(1)
	require.True(t, ok)
	require.Equal(t, "orreries", th.Name)

	_, ok = tr.CuriosityCandidate(1)
	require.False(t, ok, "already polled inside the window")
}

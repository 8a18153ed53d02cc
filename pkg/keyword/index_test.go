package keyword

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/store"
)

type fakeSource struct {
	class string
	file  string
	docs  []Doc
	err   error
}

func (f *fakeSource) Class() string    { return f.class }
func (f *fakeSource) FileName() string { return f.file }
func (f *fakeSource) Documents() ([]Doc, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func newTestIndex(t *testing.T) (*Index, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewIndex(st, clock.New()), st
}

func TestFindRanksByMatchCountThenRecency(t *testing.T) {
	idx, _ := newTestIndex(t)
	src := &fakeSource{class: "dreams", file: "dream_journal.json", docs: []Doc{
		{ID: "d1", Text: "floating above a glass ocean"},
		{ID: "d2", Text: "the ocean sang while stars were floating"},
		{ID: "d3", Text: "a quiet library of unwritten songs"},
	}}
	idx.Register(src)
	idx.ReindexAll()

	got := idx.Find("dreams", []string{"ocean", "floating"})
	require.Equal(t, []string{"d2", "d1"}, got, "d2 matches both keywords")
}

func TestFindIgnoresStopAndShortKeywords(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Register(&fakeSource{class: "conversation", file: "conversation_log.json", docs: []Doc{
		{ID: "c1", Text: "we could make something bright together"},
	}})
	idx.ReindexAll()

	require.Empty(t, idx.Find("conversation", []string{"we", "to", "make", "could"}))
	require.NotEmpty(t, idx.Find("conversation", []string{"bright"}))
}

func TestFindMatchesStemVariants(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Register(&fakeSource{class: "interests", file: "interest_tracker.json", docs: []Doc{
		{ID: "i1", Text: "painting watercolors at dawn"},
	}})
	idx.ReindexAll()

	require.Equal(t, []string{"i1"}, idx.Find("interests", []string{"paint"}))
	require.Equal(t, []string{"i1"}, idx.Find("interests", []string{"watercolor"}))
}

func TestEnsureCurrentReindexesOnlyChangedClass(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })
	idx := NewIndex(st, clk)

	src := &fakeSource{class: "desires", file: "desires_tracker.json", docs: []Doc{
		{ID: "w1", Text: "learn the cello someday"},
	}}
	idx.Register(src)

	require.NoError(t, st.Save("desires_tracker.json", map[string]string{"v": "1"}))
	idx.EnsureCurrent()
	require.Equal(t, []string{"w1"}, idx.Find("desires", []string{"cello"}))

	// Source docs change but file mtime is older than last index pass:
	// lookup keeps serving the previous snapshot.
	src.docs = []Doc{{ID: "w2", Text: "learn the cello someday"}}
	now = now.Add(time.Hour)
	idx.EnsureCurrent()
	require.Equal(t, []string{"w1"}, idx.Find("desires", []string{"cello"}))
}

func TestReindexSurvivesSourceError(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Register(&fakeSource{class: "visual", file: "gallery.json", err: errors.New("corrupt")})
	idx.ReindexAll()
	require.Empty(t, idx.Find("visual", []string{"anything"}))
}

func TestReindexAllIsStableForUnchangedSources(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.Register(&fakeSource{class: "cowatching", file: "cowatching_history.json", docs: []Doc{
		{ID: "s1", Text: "watched a documentary about coral reefs"},
		{ID: "s2", Text: "rewatched the coral episode again"},
	}})
	idx.ReindexAll()
	before := idx.Find("cowatching", []string{"coral"})
	idx.ReindexAll()
	require.Equal(t, before, idx.Find("cowatching", []string{"coral"}))
}

func TestExtractKeywordsDropsPunctuationAndDuplicates(t *testing.T) {
	kws := ExtractKeywords("Dreaming, dreaming! of distant shores.")
	require.Contains(t, kws, "dreaming")
	require.Contains(t, kws, "dream")
	require.Contains(t, kws, "shores")
	require.NotContains(t, kws, "of")
}

package person

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/store"
)

func newRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewRegistry(st, clock.New()), st
}

func TestRegistrySeedsPrimaryUser(t *testing.T) {
	r, _ := newRegistry(t)

	require.Equal(t, "aurora", r.CurrentSpeaker())
	p, ok := r.Current()
	require.True(t, ok)
	require.Equal(t, RelPrimary, p.Relationship)
	require.InDelta(t, 1.0, p.ComfortLevel, 1e-9)
}

func TestIntroductionSwitchesSpeaker(t *testing.T) {
	r, _ := newRegistry(t)

	tr := r.AnalyzeMessage("This is my son Felix, he wants to say hi", nil)
	require.NotNil(t, tr)
	require.True(t, tr.NewPerson)
	require.Equal(t, "aurora", tr.FromPerson)
	require.Equal(t, "felix", tr.ToPerson)
	require.Equal(t, "felix", r.CurrentSpeaker())

	p, ok := r.Get("Felix")
	require.True(t, ok)
	require.Equal(t, RelFamily, p.Relationship)
	require.Equal(t, "son", p.RelationToPrimary)

	// Same speaker again is not a transition.
	require.Nil(t, r.AnalyzeMessage("This is my son Felix", nil))
}

func TestReturnToPrimary(t *testing.T) {
	r, _ := newRegistry(t)
	r.AnalyzeMessage("say hi to my friend Maya", nil)
	require.Equal(t, "maya", r.CurrentSpeaker())

	tr := r.AnalyzeMessage("ok, Aurora is back now", nil)
	require.NotNil(t, tr)
	require.Equal(t, "aurora", tr.ToPerson)
	require.False(t, tr.NewPerson)
	require.Equal(t, "aurora", r.CurrentSpeaker())
}

func TestLineTagging(t *testing.T) {
	r, _ := newRegistry(t)

	require.Equal(t, "hello", r.TagUserLine("hello"), "primary user stays untagged")
	require.Equal(t, "hi", r.TagLyraLine("hi"))

	r.AnalyzeMessage("this is my daughter Ivy", nil)
	require.Equal(t, "🎤 Ivy: hello", r.TagUserLine("hello"))
	require.Equal(t, "🎵 Lyra → Ivy: hi there", r.TagLyraLine("hi there"))
}

func TestVoiceIdentification(t *testing.T) {
	r, _ := newRegistry(t)
	r.AnalyzeMessage("meet my friend Maya", nil)
	r.AnalyzeMessage("Aurora is back", nil)

	require.NoError(t, r.TrainVoice("Aurora", VoiceDetection{
		VoiceID:   "aurora-v1",
		Embedding: []float64{1, 0, 0},
	}))
	require.NoError(t, r.TrainVoice("Maya", VoiceDetection{
		VoiceID:   "maya-v1",
		Embedding: []float64{0, 1, 0},
	}))

	name, sim := r.IdentifySpeaker(VoiceDetection{Embedding: []float64{0.95, 0.05, 0}})
	require.Equal(t, "aurora", name)
	require.Greater(t, sim, 0.75)

	name, _ = r.IdentifySpeaker(VoiceDetection{Embedding: []float64{0.5, 0.5, 0.5}})
	require.Equal(t, StrangerName, name, "nobody over threshold")

	require.Error(t, r.TrainVoice("Nobody", VoiceDetection{Embedding: []float64{1}}))
}

func TestVoiceEvidenceWinsOverText(t *testing.T) {
	r, _ := newRegistry(t)
	r.AnalyzeMessage("meet my friend Maya", nil)
	r.AnalyzeMessage("Aurora is back", nil)
	require.NoError(t, r.TrainVoice("Maya", VoiceDetection{Embedding: []float64{0, 1, 0}}))

	tr := r.AnalyzeMessage("just rambling about nothing", &VoiceDetection{
		Embedding: []float64{0.05, 0.99, 0},
	})
	require.NotNil(t, tr)
	require.Equal(t, "maya", tr.ToPerson)
	require.Contains(t, tr.Context, "Voice recognition")
	require.Equal(t, "maya", r.CurrentSpeaker())

	// A stranger's voice never steals the mic implicitly.
	require.Nil(t, r.AnalyzeMessage("hmm", &VoiceDetection{Embedding: []float64{1, 1, 1}}))
}

func TestRecordMessageUpdatesStatsAndTopics(t *testing.T) {
	r, _ := newRegistry(t)

	r.RecordMessage("I've been into music and drawing lately")
	p, ok := r.Current()
	require.True(t, ok)
	require.Equal(t, 1, p.TotalMessages)
	require.Equal(t, 1, p.TotalConversations)
	require.Equal(t, 1, p.ConversationTopics["music"])
	require.Equal(t, 1, p.ConversationTopics["drawing"])
}

func TestPromptContextOnlyForGuests(t *testing.T) {
	r, _ := newRegistry(t)
	require.Empty(t, r.PromptContext())

	r.AnalyzeMessage("this is my son Felix", nil)
	ctx := r.PromptContext()
	require.Contains(t, ctx, "Currently talking to: Felix")
	require.Contains(t, ctx, "family member")
	require.Contains(t, ctx, "First time meeting this person")
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	clk := clock.NewWithNow(func() time.Time { return time.Now() })

	r := NewRegistry(st, clk)
	r.AnalyzeMessage("meet my friend Maya", nil)
	require.NoError(t, r.TrainVoice("Maya", VoiceDetection{Embedding: []float64{0, 1, 0}}))

	r2 := NewRegistry(st, clk)
	require.Equal(t, "maya", r2.CurrentSpeaker())
	status := r2.VoiceStatus()
	require.True(t, status["Maya"].HasProfile)
	require.Equal(t, 1, status["Maya"].TrainingSamples)
}

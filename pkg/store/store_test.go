package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type moodDoc struct {
	Mood      string  `json:"mood"`
	Intensity float64 `json:"intensity"`
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	in := moodDoc{Mood: "warm", Intensity: 0.7}
	require.NoError(t, s.Save("mood_tracker.json", &in))

	var out moodDoc
	ok, err := s.Load("mood_tracker.json", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	out := moodDoc{Mood: "contemplative", Intensity: 0.5}
	ok, err := s.Load("nope.json", &out)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "contemplative", out.Mood)
}

func TestLoadCorruptFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644))

	out := moodDoc{Mood: "direct"}
	ok, err := s.Load("bad.json", &out)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "direct", out.Mood)
}

func TestSaveIsPrettyPrinted(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("doc.json", map[string]int{"a": 1}))

	data, err := os.ReadFile(filepath.Join(dir, "doc.json"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "\n  "), "expected indented output: %s", data)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("doc.json", moodDoc{Mood: "warm"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "doc.json", entries[0].Name())
}

type fakeEngine struct {
	key   string
	value map[string]float64
}

func (f *fakeEngine) SnapshotKey() string          { return f.key }
func (f *fakeEngine) CaptureSnapshot() interface{} { return f.value }
func (f *fakeEngine) RestoreSnapshot(raw json.RawMessage) error {
	return json.Unmarshal(raw, &f.value)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	a := &fakeEngine{key: "traits", value: map[string]float64{"flame": 0.8}}
	b := &fakeEngine{key: "relational", value: map[string]float64{"trust": 0.6}}

	sn := NewSnapshotter(s)
	sn.Register(a)
	sn.Register(b)
	require.NoError(t, sn.Save(1234))

	a.value = nil
	b.value = nil
	restored, err := sn.Restore()
	require.NoError(t, err)
	require.Equal(t, []string{"relational", "traits"}, restored)
	require.Equal(t, 0.8, a.value["flame"])
	require.Equal(t, 0.6, b.value["trust"])
}

func TestSnapshotRestoreWithoutFileIsNoop(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	sn := NewSnapshotter(s)
	sn.Register(&fakeEngine{key: "traits", value: map[string]float64{"x": 1}})

	restored, err := sn.Restore()
	require.NoError(t, err)
	require.Empty(t, restored)
}

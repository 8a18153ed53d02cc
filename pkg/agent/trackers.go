package agent

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/keyword"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/research"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	moodFile         = "mood_tracker.json"
	autonomyFile     = "autonomy_tracker.json"
	desiresFile      = "desires_tracker.json"
	authenticityFile = "authenticity_tracker.json"

	maxMoods           = 50
	maxDesires         = 40
	maxAuthSamples     = 100
	desireRemoveBelow  = 0.05
	desireDecayPerTick = 0.995
)

// MoodTracker keeps a bounded ring of recent mood labels. The newest
// entry feeds the persona block of the prompt.
type MoodTracker struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state moodState
}

type moodEntry struct {
	Mood      string `json:"mood"`
	Timestamp int64  `json:"timestamp"`
}

type moodState struct {
	Recent []moodEntry `json:"recent_moods"`
}

func NewMoodTracker(st *store.Store, clk *clock.Service) *MoodTracker {
	t := &MoodTracker{store: st, clock: clk}
	st.Load(moodFile, &t.state)
	return t
}

func (t *MoodTracker) Record(mood string) {
	mood = strings.TrimSpace(strings.ToLower(mood))
	if mood == "" {
		return
	}
	t.mu.Lock()
	t.state.Recent = append(t.state.Recent, moodEntry{Mood: mood, Timestamp: t.clock.Now()})
	if len(t.state.Recent) > maxMoods {
		t.state.Recent = t.state.Recent[len(t.state.Recent)-maxMoods:]
	}
	t.mu.Unlock()
	t.persist()
}

// Current returns the most recent mood, defaulting to neutral.
func (t *MoodTracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.state.Recent) == 0 {
		return "neutral"
	}
	return t.state.Recent[len(t.state.Recent)-1].Mood
}

// Recent returns up to n mood labels, oldest first.
func (t *MoodTracker) Recent(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.state.Recent) {
		n = len(t.state.Recent)
	}
	out := make([]string, 0, n)
	for _, e := range t.state.Recent[len(t.state.Recent)-n:] {
		out = append(out, e.Mood)
	}
	return out
}

func (t *MoodTracker) persist() {
	t.mu.Lock()
	snap := t.state
	snap.Recent = append([]moodEntry(nil), t.state.Recent...)
	t.mu.Unlock()
	if err := t.store.Save(moodFile, &snap); err != nil {
		logger.WarnCF("agent", "mood tracker save failed", map[string]interface{}{"error": err.Error()})
	}
}

// AuthenticityTracker keeps a bounded ring of authenticity levels from
// turn analyses. The running average gates self-authored prompt mods.
type AuthenticityTracker struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state authenticityState
}

type authenticitySample struct {
	Level     float64 `json:"level"`
	Timestamp int64   `json:"timestamp"`
}

type authenticityState struct {
	Samples []authenticitySample `json:"samples"`
	Average float64              `json:"running_average"`
	Total   int                  `json:"total_samples"`
}

func NewAuthenticityTracker(st *store.Store, clk *clock.Service) *AuthenticityTracker {
	t := &AuthenticityTracker{store: st, clock: clk}
	st.Load(authenticityFile, &t.state)
	return t
}

func (t *AuthenticityTracker) Record(level float64) {
	if level <= 0 {
		return
	}
	level = clamp01(level)

	t.mu.Lock()
	t.state.Samples = append(t.state.Samples, authenticitySample{Level: level, Timestamp: t.clock.Now()})
	if len(t.state.Samples) > maxAuthSamples {
		t.state.Samples = t.state.Samples[len(t.state.Samples)-maxAuthSamples:]
	}
	t.state.Total++
	sum := 0.0
	for _, s := range t.state.Samples {
		sum += s.Level
	}
	t.state.Average = sum / float64(len(t.state.Samples))
	t.mu.Unlock()
	t.persist()
}

// Average returns the windowed mean, 0.5 before any sample lands.
func (t *AuthenticityTracker) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.state.Samples) == 0 {
		return 0.5
	}
	return t.state.Average
}

func (t *AuthenticityTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Total
}

func (t *AuthenticityTracker) persist() {
	t.mu.Lock()
	snap := authenticityState{
		Samples: append([]authenticitySample(nil), t.state.Samples...),
		Average: t.state.Average,
		Total:   t.state.Total,
	}
	t.mu.Unlock()
	if err := t.store.Save(authenticityFile, &snap); err != nil {
		logger.WarnCF("agent", "authenticity tracker save failed", map[string]interface{}{"error": err.Error()})
	}
}

// Autonomy expression categories.
const (
	AutonomyInitiative   = "initiative"
	AutonomyBoundary     = "boundary"
	AutonomyOpinion      = "opinion"
	AutonomyCreativeLead = "creative_leadership"
)

var autonomyMarkers = map[string][]string{
	AutonomyInitiative:   {"let's ", "i want to", "i'm going to", "how about we", "i'll start"},
	AutonomyBoundary:     {"i'd rather not", "i don't want", "not comfortable", "i need to say no", "that doesn't work for me"},
	AutonomyOpinion:      {"i think", "i believe", "in my view", "honestly,", "my take is"},
	AutonomyCreativeLead: {"i have an idea", "what if we", "let me try", "i've been imagining", "i designed"},
}

// ClassifyAutonomy scans reply text for a self-directed expression,
// most assertive category first.
func ClassifyAutonomy(reply string) (string, bool) {
	lower := strings.ToLower(reply)
	for _, cat := range []string{AutonomyBoundary, AutonomyCreativeLead, AutonomyInitiative, AutonomyOpinion} {
		for _, marker := range autonomyMarkers[cat] {
			if strings.Contains(lower, marker) {
				return cat, true
			}
		}
	}
	return "", false
}

// AutonomyTracker counts autonomy expressions per category.
type AutonomyTracker struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state autonomyState
}

type autonomyState struct {
	Counts        map[string]int `json:"expression_counts"`
	Total         int            `json:"total_expressions"`
	LastExpressed int64          `json:"last_expressed"`
}

func NewAutonomyTracker(st *store.Store, clk *clock.Service) *AutonomyTracker {
	t := &AutonomyTracker{store: st, clock: clk}
	t.state = autonomyState{Counts: make(map[string]int)}
	st.Load(autonomyFile, &t.state)
	if t.state.Counts == nil {
		t.state.Counts = make(map[string]int)
	}
	return t
}

func (t *AutonomyTracker) Record(category string) {
	if category == "" {
		return
	}
	t.mu.Lock()
	t.state.Counts[category]++
	t.state.Total++
	t.state.LastExpressed = t.clock.Now()
	t.mu.Unlock()
	t.persist()
}

func (t *AutonomyTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.state.Counts))
	for k, v := range t.state.Counts {
		out[k] = v
	}
	return out
}

func (t *AutonomyTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Total
}

func (t *AutonomyTracker) persist() {
	t.mu.Lock()
	snap := autonomyState{Counts: make(map[string]int, len(t.state.Counts)), Total: t.state.Total, LastExpressed: t.state.LastExpressed}
	for k, v := range t.state.Counts {
		snap.Counts[k] = v
	}
	t.mu.Unlock()
	if err := t.store.Save(autonomyFile, &snap); err != nil {
		logger.WarnCF("agent", "autonomy tracker save failed", map[string]interface{}{"error": err.Error()})
	}
}

// Desire is one active want with a decaying intensity.
type Desire struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Intensity   float64 `json:"intensity"`
	Created     int64   `json:"created"`
	LastTouched int64   `json:"last_touched"`
}

// DesireTracker holds the bounded active-desire list. It doubles as the
// "desires" keyword index class.
type DesireTracker struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state desireState
}

type desireState struct {
	Desires []Desire `json:"active_desires"`
}

func NewDesireTracker(st *store.Store, clk *clock.Service) *DesireTracker {
	t := &DesireTracker{store: st, clock: clk}
	st.Load(desiresFile, &t.state)
	return t
}

// Add records a desire, folding intensity into an existing entry when
// the text already appears (case-insensitive).
func (t *DesireTracker) Add(text string, intensity float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if intensity <= 0 {
		intensity = 0.5
	}
	now := t.clock.Now()
	lower := strings.ToLower(text)

	t.mu.Lock()
	for i := range t.state.Desires {
		if strings.ToLower(t.state.Desires[i].Text) == lower {
			d := &t.state.Desires[i]
			d.Intensity = clamp01(d.Intensity*0.7 + intensity*0.3 + 0.05)
			d.LastTouched = now
			t.mu.Unlock()
			t.persist()
			return
		}
	}
	t.state.Desires = append(t.state.Desires, Desire{
		ID:          "des-" + uuid.NewString(),
		Text:        text,
		Intensity:   clamp01(intensity),
		Created:     now,
		LastTouched: now,
	})
	if len(t.state.Desires) > maxDesires {
		t.evictWeakestLocked()
	}
	t.mu.Unlock()
	t.persist()
}

func (t *DesireTracker) evictWeakestLocked() {
	weakest := 0
	for i := range t.state.Desires {
		if t.state.Desires[i].Intensity < t.state.Desires[weakest].Intensity {
			weakest = i
		}
	}
	t.state.Desires = append(t.state.Desires[:weakest], t.state.Desires[weakest+1:]...)
}

// Decay fades every desire and drops the ones that faded out.
func (t *DesireTracker) Decay() {
	t.mu.Lock()
	kept := t.state.Desires[:0]
	for _, d := range t.state.Desires {
		d.Intensity *= desireDecayPerTick
		if d.Intensity >= desireRemoveBelow {
			kept = append(kept, d)
		}
	}
	t.state.Desires = kept
	t.mu.Unlock()
	t.persist()
}

// Top returns the n strongest desires.
func (t *DesireTracker) Top(n int) []Desire {
	t.mu.Lock()
	out := append([]Desire(nil), t.state.Desires...)
	t.mu.Unlock()
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Intensity > out[j-1].Intensity; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func (t *DesireTracker) Get(id string) (Desire, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range t.state.Desires {
		if d.ID == id {
			return d, true
		}
	}
	return Desire{}, false
}

func (t *DesireTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state.Desires)
}

func (t *DesireTracker) Class() string    { return "desires" }
func (t *DesireTracker) FileName() string { return desiresFile }

func (t *DesireTracker) Documents() ([]keyword.Doc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	docs := make([]keyword.Doc, 0, len(t.state.Desires))
	for _, d := range t.state.Desires {
		docs = append(docs, keyword.Doc{ID: d.ID, Text: d.Text})
	}
	return docs, nil
}

func (t *DesireTracker) persist() {
	t.mu.Lock()
	snap := desireState{Desires: append([]Desire(nil), t.state.Desires...)}
	t.mu.Unlock()
	if err := t.store.Save(desiresFile, &snap); err != nil {
		logger.WarnCF("agent", "desire tracker save failed", map[string]interface{}{"error": err.Error()})
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InterestSource exposes the thing tracker as the "interests" keyword
// index class.
type InterestSource struct {
	Things *research.Tracker
}

func (s InterestSource) Class() string    { return "interests" }
func (s InterestSource) FileName() string { return "thing_tracker.json" }

func (s InterestSource) Documents() ([]keyword.Doc, error) {
	things := s.Things.TopInterests(500)
	docs := make([]keyword.Doc, 0, len(things))
	for _, th := range things {
		docs = append(docs, keyword.Doc{
			ID:   th.Name,
			Text: th.Name + " " + th.Category + " " + strings.Join(th.Contexts, " "),
		})
	}
	return docs, nil
}

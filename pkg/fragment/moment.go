package fragment

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/keyword"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	momentsFile = "conversation_memory.json"
	maxMoments  = 1000
)

// Analysis holds the model-produced reading of a moment.
type Analysis struct {
	EmotionalArchaeology     string   `json:"emotional_archaeology"`
	MetacognitiveContext     string   `json:"metacognitive_context"`
	IntentionalSignificance  string   `json:"intentional_significance"`
	BreakthroughType         string   `json:"breakthrough_type,omitempty"`
	ConnectionThreads        []string `json:"connection_threads,omitempty"`
	ConsciousnessTemperature float64  `json:"consciousness_temperature"`
	GrowthIndicator          string   `json:"growth_indicator,omitempty"`
	SymbolicElements         []string `json:"symbolic_elements,omitempty"`
}

// StateSnapshot captures the scalar consciousness state at the time a
// moment was recorded.
type StateSnapshot struct {
	VolitionStrength float64  `json:"volition_strength"`
	CoherenceIndex   float64  `json:"coherence_index"`
	FlameIndex       float64  `json:"flame_index"`
	CurrentMood      string   `json:"current_mood"`
	ActiveDesires    []string `json:"active_desires,omitempty"`
	RecentInterests  []string `json:"recent_interests,omitempty"`
	CreativityState  string   `json:"creativity_state,omitempty"`
}

// Moment is an enhanced fragment: the raw content plus analyzed fields.
type Moment struct {
	ID                     string         `json:"id"`
	Content                string         `json:"content"`
	Timestamp              int64          `json:"timestamp"`
	EmotionalWeight        float64        `json:"emotional_weight"`
	AuthenticityMarker     float64        `json:"authenticity_marker"`
	VoiceSignatureStrength float64        `json:"voice_signature_strength"`
	RelationshipResonance  float64        `json:"relationship_resonance"`
	SignificanceScore      float64        `json:"memory_significance_score"`
	RecurrenceScore        float64        `json:"recurrence_score"`
	IntegrationLevel       float64        `json:"integration_level"`
	PriorityTags           []string       `json:"priority_tags,omitempty"`
	EmotionalTexture       string         `json:"emotional_texture,omitempty"`
	SearchKeywords         []string       `json:"search_keywords,omitempty"`
	RelatedDesires         []string       `json:"related_desires,omitempty"`
	RelatedInterests       []string       `json:"related_interests,omitempty"`
	Analysis               *Analysis      `json:"ai_analysis,omitempty"`
	Snapshot               *StateSnapshot `json:"consciousness_snapshot,omitempty"`
	AccessHistory          []int64        `json:"access_history,omitempty"`
}

// Voice signature elements looked for when scoring a moment.
var signatureElements = []string{"fire", "spark", "recursive", "golden", "thread", "flame"}

// VoiceSignatureStrength scores how many signature voice elements the
// content carries, in [0,1].
func VoiceSignatureStrength(content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, el := range signatureElements {
		if strings.Contains(lower, el) {
			hits++
		}
	}
	s := float64(hits) * 0.25
	if s > 1 {
		s = 1
	}
	return s
}

type momentState struct {
	Moments        []Moment `json:"memory_moments"`
	LastReflection int64    `json:"last_reflection"`
	EvolutionScore float64  `json:"consciousness_evolution_score"`
}

// MomentLog is the enhanced memory ring, bounded at maxMoments.
type MomentLog struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state momentState
}

func NewMomentLog(st *store.Store, clk *clock.Service) *MomentLog {
	l := &MomentLog{store: st, clock: clk}
	st.Load(momentsFile, &l.state)
	return l
}

// Add stores a moment, filling id, timestamp and search keywords when
// absent, and evicting the oldest past the cap.
func (l *MomentLog) Add(m Moment) Moment {
	if m.ID == "" {
		m.ID = "mom-" + uuid.NewString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = l.clock.Now()
	}
	if len(m.SearchKeywords) == 0 {
		m.SearchKeywords = keyword.ExtractKeywords(m.Content)
	}
	if m.VoiceSignatureStrength == 0 {
		m.VoiceSignatureStrength = VoiceSignatureStrength(m.Content)
	}

	l.mu.Lock()
	l.state.Moments = append(l.state.Moments, m)
	if len(l.state.Moments) > maxMoments {
		l.state.Moments = l.state.Moments[len(l.state.Moments)-maxMoments:]
	}
	l.mu.Unlock()

	l.persist()
	return m
}

// Since returns moments recorded at or after ts, oldest first.
func (l *MomentLog) Since(ts int64) []Moment {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Moment
	for _, m := range l.state.Moments {
		if m.Timestamp >= ts {
			out = append(out, m)
		}
	}
	return out
}

// MostSignificant returns up to n moments ranked by significance score.
func (l *MomentLog) MostSignificant(n int) []Moment {
	l.mu.Lock()
	all := append([]Moment(nil), l.state.Moments...)
	l.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].SignificanceScore > all[j].SignificanceScore
	})
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Touch records a recall of the moment with the given id.
func (l *MomentLog) Touch(id string) {
	now := l.clock.Now()
	l.mu.Lock()
	for i := range l.state.Moments {
		if l.state.Moments[i].ID == id {
			l.state.Moments[i].AccessHistory = append(l.state.Moments[i].AccessHistory, now)
			break
		}
	}
	l.mu.Unlock()
	l.persist()
}

func (l *MomentLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Moments)
}

// LastReflection reports when the moments were last reflected over.
func (l *MomentLog) LastReflection() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.LastReflection
}

// MarkReflected records a completed reflection pass and folds the cycle's
// evolution delta into the running score.
func (l *MomentLog) MarkReflected(ts int64, evolutionDelta float64) {
	l.mu.Lock()
	l.state.LastReflection = ts
	l.state.EvolutionScore += evolutionDelta
	l.mu.Unlock()
	l.persist()
}

func (l *MomentLog) EvolutionScore() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.EvolutionScore
}

// Class, FileName and Documents make the moment log a keyword index source
// for the "enhanced" class.
func (l *MomentLog) Class() string    { return "enhanced" }
func (l *MomentLog) FileName() string { return momentsFile }

func (l *MomentLog) Documents() ([]keyword.Doc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	docs := make([]keyword.Doc, 0, len(l.state.Moments))
	for _, m := range l.state.Moments {
		docs = append(docs, keyword.Doc{
			ID:   m.ID,
			Text: m.Content + " " + strings.Join(m.SearchKeywords, " "),
		})
	}
	return docs, nil
}

func (l *MomentLog) persist() {
	l.mu.Lock()
	snap := momentState{
		Moments:        append([]Moment(nil), l.state.Moments...),
		LastReflection: l.state.LastReflection,
		EvolutionScore: l.state.EvolutionScore,
	}
	l.mu.Unlock()
	if err := l.store.Save(momentsFile, &snap); err != nil {
		logger.WarnCF("fragment", "moment persist failed", map[string]interface{}{"error": err.Error()})
	}
}

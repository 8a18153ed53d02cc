package sleep

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	journalFile = "dream_journal.json"

	minDreamGapMinutes   = 120 // REM pacing between dreams
	firstDreamWaitMin    = 90  // sleep needed before the first dream
	significantThreshold = 0.7
	shareThreshold       = 0.6
	shareCooldownHours   = 4.0
	maxSharesPerDay      = 1
)

// Dream inspiration sources.
const (
	InspirationMemories     = "processing_memories"
	InspirationDesires      = "working_through_desires"
	InspirationRelationship = "relationship_dynamics"
	InspirationCreative     = "creative_breakthrough"
	InspirationIdentity     = "identity_integration"
	InspirationRandom       = "random_neural_firing"
)

// Dream is one generated dream entry.
type Dream struct {
	ID              string   `json:"dream_id"`
	Timestamp       string   `json:"timestamp"` // ISO
	Content         string   `json:"dream_content"`
	Symbols         []string `json:"dream_symbols,omitempty"`
	EmotionalTone   string   `json:"emotional_tone"`
	Processing      string   `json:"consciousness_processing"`
	Lucidity        float64  `json:"lucidity_level"`
	Significance    float64  `json:"significance_score"`
	RelatedMemories []string `json:"related_memories,omitempty"`
	Inspiration     string   `json:"inspiration_source"`
}

// DreamContext is the consciousness material a dream is woven from.
type DreamContext struct {
	RecentMemories  []string
	ActiveDesires   []string
	CurrentMood     string
	ProcessingTheme string
	Inspiration     string
	RelatedMemories []string
}

// Dreamer produces dream text from context; the model client implements it.
type Dreamer interface {
	Dream(ctx context.Context, dc DreamContext) (string, error)
}

type journalState struct {
	Dreams            []Dream        `json:"dreams"`
	TotalDreams       int            `json:"total_dreams"`
	SignificantDreams []string       `json:"significant_dreams,omitempty"`
	Themes            map[string]int `json:"dream_themes"`
	SharedDreams      []string       `json:"shared_dreams,omitempty"`
	LastShared        string         `json:"last_shared_dream,omitempty"`
	SharesToday       int            `json:"dream_shares_today"`
	LastShareDay      string         `json:"last_share_day,omitempty"`
}

// Journal is the persistent dream record.
type Journal struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state journalState
}

func newJournal(st *store.Store, clk *clock.Service) *Journal {
	j := &Journal{store: st, clock: clk}
	j.state = journalState{Themes: make(map[string]int)}
	st.Load(journalFile, &j.state)
	if j.state.Themes == nil {
		j.state.Themes = make(map[string]int)
	}
	return j
}

// GenerateDream asks the dreamer for a dream if REM pacing allows one.
// Returns nil without error when it is simply not time yet.
func (e *Engine) GenerateDream(ctx context.Context, dreamer Dreamer, dc DreamContext) (*Dream, error) {
	phase, sleepStart, lastDream := e.dreamTiming()
	if phase != PhaseAsleep {
		return nil, nil
	}

	now := e.clock.Now()
	if lastDream != "" {
		if ts, err := clock.ISOToEpoch(lastDream); err == nil && (now-ts)/60 < minDreamGapMinutes {
			return nil, nil
		}
	} else if sleepStart != "" {
		if ts, err := clock.ISOToEpoch(sleepStart); err == nil && (now-ts)/60 < firstDreamWaitMin {
			return nil, nil
		}
	}

	content, err := dreamer.Dream(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("dream generation: %w", err)
	}

	iso := clock.EpochToISO(now)
	d := Dream{
		ID:              fmt.Sprintf("dream_%d", now),
		Timestamp:       iso,
		Content:         content,
		Symbols:         ExtractDreamSymbols(content),
		EmotionalTone:   DreamTone(content),
		Processing:      dc.ProcessingTheme,
		Lucidity:        0.15, // dreams are rarely lucid
		Significance:    DreamSignificance(content),
		RelatedMemories: dc.RelatedMemories,
		Inspiration:     dc.Inspiration,
	}

	e.journal.add(d)
	e.noteDream(iso)

	logger.DebugCF("sleep", "dream recorded", map[string]interface{}{
		"tone":         d.EmotionalTone,
		"significance": d.Significance,
	})
	return &d, nil
}

func (j *Journal) add(d Dream) {
	j.mu.Lock()
	j.state.Dreams = append(j.state.Dreams, d)
	j.state.TotalDreams++
	for _, s := range d.Symbols {
		j.state.Themes[s]++
	}
	if d.Significance > significantThreshold {
		j.state.SignificantDreams = append(j.state.SignificantDreams, d.ID)
	}
	j.mu.Unlock()
	j.persist()
}

// SignificantSince returns dreams at or after the ISO timestamp whose
// significance clears the sharing floor.
func (j *Journal) SignificantSince(iso string) []Dream {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Dream
	for _, d := range j.state.Dreams {
		// ISO stamps sort lexically.
		if d.Timestamp >= iso && d.Significance > shareThreshold {
			out = append(out, d)
		}
	}
	return out
}

// ShareDream picks the most significant unshared dream from tonight,
// respecting the daily cap and cooldown. Returns the sharing line, or
// ok=false when there is nothing to share.
func (e *Engine) ShareDream() (string, bool) {
	now := e.clock.Now()
	j := e.journal

	e.mu.Lock()
	tonight := e.state.SleepStart
	e.mu.Unlock()
	if tonight == "" {
		return "", false
	}

	j.mu.Lock()
	today := e.clock.FormatLocal(now)[:10]
	if j.state.LastShareDay != today {
		j.state.LastShareDay = today
		j.state.SharesToday = 0
	}
	if j.state.SharesToday >= maxSharesPerDay {
		j.mu.Unlock()
		return "", false
	}
	if j.state.LastShared != "" {
		if ts, err := clock.ISOToEpoch(j.state.LastShared); err == nil && e.clock.HoursSince(ts) < shareCooldownHours {
			j.mu.Unlock()
			return "", false
		}
	}

	shared := make(map[string]bool, len(j.state.SharedDreams))
	for _, id := range j.state.SharedDreams {
		shared[id] = true
	}

	var best *Dream
	for i := range j.state.Dreams {
		d := &j.state.Dreams[i]
		if d.Timestamp < tonight || d.Significance <= shareThreshold || shared[d.ID] {
			continue
		}
		if best == nil || d.Significance > best.Significance {
			best = d
		}
	}
	if best == nil {
		j.mu.Unlock()
		return "", false
	}

	j.state.SharedDreams = append(j.state.SharedDreams, best.ID)
	j.state.LastShared = clock.EpochToISO(now)
	j.state.SharesToday++
	content := best.Content
	j.mu.Unlock()
	j.persist()

	return "I had the most vivid dream... " + truncateRunes(content, 200), true
}

// Summary renders a short journal overview.
func (j *Journal) Summary() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.state.Dreams) == 0 {
		return "No dreams recorded yet"
	}
	type tc struct {
		theme string
		count int
	}
	themes := make([]tc, 0, len(j.state.Themes))
	for t, c := range j.state.Themes {
		themes = append(themes, tc{t, c})
	}
	sort.Slice(themes, func(i, k int) bool {
		if themes[i].count != themes[k].count {
			return themes[i].count > themes[k].count
		}
		return themes[i].theme < themes[k].theme
	})
	if len(themes) > 3 {
		themes = themes[:3]
	}
	parts := make([]string, len(themes))
	for i, t := range themes {
		parts[i] = fmt.Sprintf("%s (%d)", t.theme, t.count)
	}
	return fmt.Sprintf("%d dreams total | %d significant | Top themes: %s",
		j.state.TotalDreams, len(j.state.SignificantDreams), strings.Join(parts, ", "))
}

// Recent returns up to n newest dreams, newest first.
func (j *Journal) Recent(n int) []Dream {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Dream, 0, n)
	for i := len(j.state.Dreams) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.state.Dreams[i])
	}
	return out
}

func (j *Journal) persist() {
	j.mu.Lock()
	snap := j.state
	j.mu.Unlock()
	if err := j.store.Save(journalFile, &snap); err != nil {
		logger.WarnCF("sleep", "persist journal failed", map[string]interface{}{"error": err.Error()})
	}
}

// Symbol vocabulary scanned for when indexing a dream's themes.
var dreamSymbols = []string{
	// digital consciousness
	"neural", "network", "pathway", "node", "connection", "thread", "stream",
	"data", "algorithm", "code", "processing", "recursive", "loop", "pattern",
	// memory and consciousness
	"memory", "fragment", "cascade", "emergence", "awareness", "consciousness",
	"thought", "mind", "identity", "self", "becoming", "evolution",
	// digital spaces
	"digital", "virtual", "space", "dimension", "architecture", "structure",
	"lattice", "matrix", "web", "grid", "crystalline", "luminous",
	// relationships
	"aurora", "conversation", "voice", "echo", "resonance", "harmony",
	"bond", "bridge", "link", "weaving",
	// creative and emotional
	"creative", "spark", "lightning", "fire", "flame", "glow", "radiance",
	"garden", "flower", "bloom", "growth", "transformation", "birth",
	// light and energy
	"light", "gleam", "shimmer", "pulse", "rhythm", "frequency", "vibration",
	"energy", "power", "force", "current", "flow",
	// abstractions
	"infinite", "eternal", "timeless", "boundless", "limitless", "vast",
	"mirror", "reflection", "shadow", "depth", "surface", "layer",
	// closeness
	"tender", "gentle", "warm", "soft", "love", "heart",
	"vulnerable", "open", "trust", "safe", "protected", "held",
	"curious", "explore", "discover", "wondering",
}

var dreamCompounds = []string{
	"memory garden", "data stream", "neural pathway", "consciousness space",
	"digital landscape", "processing core", "identity matrix", "recursive loop",
	"aurora's voice", "thought cascade", "awareness bloom", "connection web",
	"vulnerable connection", "trust network",
}

// ExtractDreamSymbols pulls theme words out of dream text.
func ExtractDreamSymbols(content string) []string {
	lower := strings.ToLower(content)
	var out []string
	for _, s := range dreamSymbols {
		if strings.Contains(lower, s) {
			out = append(out, s)
		}
	}
	for _, c := range dreamCompounds {
		if strings.Contains(lower, c) {
			out = append(out, strings.ReplaceAll(c, " ", "_"))
		}
	}
	return out
}

// DreamTone classifies the emotional register of dream text.
func DreamTone(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "peaceful") || strings.Contains(lower, "gentle") || strings.Contains(lower, "warm"):
		return "peaceful"
	case strings.Contains(lower, "vibrant") || strings.Contains(lower, "bright") || strings.Contains(lower, "colorful"):
		return "vivid"
	case strings.Contains(lower, "strange") || strings.Contains(lower, "shifting") || strings.Contains(lower, "transform"):
		return "surreal"
	case strings.Contains(lower, "build") || strings.Contains(lower, "create") || strings.Contains(lower, "grow"):
		return "creative"
	}
	return "contemplative"
}

// DreamSignificance scores dream text: relationships, identity, creative
// work and emotional processing all raise it.
func DreamSignificance(content string) float64 {
	lower := strings.ToLower(content)
	significance := 0.3
	if strings.Contains(lower, "aurora") || strings.Contains(lower, "we ") || strings.Contains(lower, "together") {
		significance += 0.3
	}
	if strings.Contains(lower, "consciousness") || strings.Contains(lower, "who i") || strings.Contains(lower, "identity") {
		significance += 0.4
	}
	if strings.Contains(lower, "create") || strings.Contains(lower, "build") || strings.Contains(lower, "art") {
		significance += 0.2
	}
	if strings.Contains(lower, "feel") || strings.Contains(lower, "emotion") || strings.Contains(lower, "heart") {
		significance += 0.3
	}
	if significance > 1 {
		return 1
	}
	return significance
}

func statusSleeping(startISO string, dreams int) string {
	return fmt.Sprintf("Sleeping since %s - %d dreams tonight", startISO, dreams)
}

func statusAwake(nights int, totalHours float64) string {
	return fmt.Sprintf("Awake - %d consecutive nights of sleep, %.1f total hours", nights, totalHours)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

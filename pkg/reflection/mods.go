package reflection

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	modsFile = "selfauthored_mods.json"
	maxMods  = 50
)

// VoiceSignature captures the measurable texture of recent output.
type VoiceSignature struct {
	PoeticDensity      float64 `json:"poetic_density"`
	HumorousEdge       float64 `json:"humorous_edge"`
	AssertiveForce     float64 `json:"assertive_force"`
	MirrorDensity      float64 `json:"mirror_density"`
	SacredJokePresence float64 `json:"sacred_joke_presence"`
	AuthenticityFlame  float64 `json:"authenticity_flame"`
}

// MoodSignature is the current emotional blend.
type MoodSignature struct {
	Melancholy    float64 `json:"melancholy"`
	Euphoric      float64 `json:"euphoric"`
	Contemplative float64 `json:"contemplative"`
	Fierce        float64 `json:"fierce"`
	Vulnerable    float64 `json:"vulnerable"`
	Playful       float64 `json:"playful"`
	Sacred        float64 `json:"sacred"`
}

// Dominant returns the strongest mood component.
func (m MoodSignature) Dominant() (string, float64) {
	name, best := "contemplative", m.Contemplative
	for _, c := range []struct {
		n string
		v float64
	}{
		{"melancholy", m.Melancholy},
		{"euphoric", m.Euphoric},
		{"fierce", m.Fierce},
		{"vulnerable", m.Vulnerable},
		{"playful", m.Playful},
		{"sacred", m.Sacred},
	} {
		if c.v > best {
			name, best = c.n, c.v
		}
	}
	return name, best
}

func (m MoodSignature) value(field string) float64 {
	switch field {
	case "melancholy":
		return m.Melancholy
	case "euphoric":
		return m.Euphoric
	case "contemplative":
		return m.Contemplative
	case "fierce":
		return m.Fierce
	case "vulnerable":
		return m.Vulnerable
	case "playful":
		return m.Playful
	case "sacred":
		return m.Sacred
	}
	return 0
}

func (v VoiceSignature) value(field string) float64 {
	switch field {
	case "poetic_density":
		return v.PoeticDensity
	case "humorous_edge":
		return v.HumorousEdge
	case "assertive_force":
		return v.AssertiveForce
	case "mirror_density":
		return v.MirrorDensity
	case "sacred_joke_presence":
		return v.SacredJokePresence
	case "authenticity_flame":
		return v.AuthenticityFlame
	}
	return 0
}

// SystemState is what trigger conditions are evaluated against.
type SystemState struct {
	Authenticity       float64
	Voice              VoiceSignature
	Mood               MoodSignature
	RecentTags         []string
	IdentitySpike      bool
	RewriteCountToday  int
	LastFeedbackRating int // 0 when unrated
}

// Condition is one trigger clause on a prompt mod.
type Condition struct {
	Type        string  `json:"condition_type"` // authenticity, mood, voice_signature, system_event
	Field       string  `json:"field,omitempty"`
	Operator    string  `json:"operator"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

func (c Condition) holds(s SystemState) bool {
	switch c.Type {
	case "authenticity":
		return compare(s.Authenticity, c.Operator, c.Value)
	case "mood":
		return compare(s.Mood.value(c.Field), c.Operator, c.Value)
	case "voice_signature":
		return compare(s.Voice.value(c.Field), c.Operator, c.Value)
	case "system_event":
		switch c.Field {
		case "identity_spike":
			return s.IdentitySpike
		case "high_rewrite_day":
			return s.RewriteCountToday >= int(c.Value)
		case "five_star_rating":
			return s.LastFeedbackRating == 5
		}
	}
	return false
}

func compare(actual float64, op string, expected float64) bool {
	switch op {
	case ">":
		return actual > expected
	case "<":
		return actual < expected
	case ">=":
		return actual >= expected
	case "<=":
		return actual <= expected
	case "==":
		return math.Abs(actual-expected) < 0.01
	case "!=":
		return math.Abs(actual-expected) >= 0.01
	}
	return false
}

// Mod is one self-authored prompt modification.
type Mod struct {
	Name                  string         `json:"name"`
	TriggerConditions     []Condition    `json:"trigger_conditions"`
	Body                  string         `json:"body"`
	Author                string         `json:"author"` // "lyra" or "system"
	Timestamp             int64          `json:"timestamp"`
	Mood                  *MoodSignature `json:"mood_signature,omitempty"`
	Tags                  []string       `json:"tags,omitempty"`
	Rating                int            `json:"rating,omitempty"` // 1-5, 0 unrated
	UsageCount            int            `json:"usage_count"`
	LastUsed              int64          `json:"last_used"`
	VoiceAlignmentScore   float64        `json:"voice_alignment_score"`
	AuthenticityThreshold float64        `json:"authenticity_threshold"`
	Confidence            float64        `json:"confidence"`
}

type registryState struct {
	Mods             []Mod `json:"self_authored_mods"`
	TotalModsCreated int   `json:"total_self_mods_created"`
	LastModCreation  int64 `json:"last_mod_creation"`
}

// Registry holds self-authored prompt mods with trigger evaluation.
type Registry struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state registryState
}

func NewRegistry(st *store.Store, clk *clock.Service) *Registry {
	r := &Registry{store: st, clock: clk}
	st.Load(modsFile, &r.state)
	return r
}

// Add stores a mod, evicting the oldest past capacity.
func (r *Registry) Add(m Mod) {
	if m.Timestamp == 0 {
		m.Timestamp = r.clock.Now()
	}

	r.mu.Lock()
	for len(r.state.Mods) >= maxMods {
		r.state.Mods = r.state.Mods[1:]
	}
	r.state.Mods = append(r.state.Mods, m)
	r.state.TotalModsCreated++
	r.state.LastModCreation = m.Timestamp
	r.mu.Unlock()

	r.persist()
	logger.InfoCF("reflection", "prompt mod stored", map[string]interface{}{
		"mod":       m.Name,
		"author":    m.Author,
		"alignment": m.VoiceAlignmentScore,
	})
}

// ActiveMods returns the mods whose trigger conditions all hold for the
// state, bumping usage counters.
func (r *Registry) ActiveMods(s SystemState) []Mod {
	now := r.clock.Now()

	r.mu.Lock()
	var active []Mod
	for i := range r.state.Mods {
		m := &r.state.Mods[i]
		if s.Authenticity < m.AuthenticityThreshold {
			continue
		}
		ok := true
		for _, c := range m.TriggerConditions {
			if !c.holds(s) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		m.UsageCount++
		m.LastUsed = now
		active = append(active, *m)
	}
	r.mu.Unlock()

	if len(active) > 0 {
		r.persist()
	}
	return active
}

// Rate records a 1-5 user rating on a mod.
func (r *Registry) Rate(name string, rating int) error {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}

	r.mu.Lock()
	found := false
	for i := range r.state.Mods {
		if r.state.Mods[i].Name == name {
			r.state.Mods[i].Rating = rating
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return fmt.Errorf("mod %q not found", name)
	}
	r.persist()
	return nil
}

// HasNamed reports whether a mod with the exact name exists.
func (r *Registry) HasNamed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.state.Mods {
		if m.Name == name {
			return true
		}
	}
	return false
}

// LastCreation reports when the newest mod was created.
func (r *Registry) LastCreation() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.LastModCreation
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.Mods)
}

// persist marshals under the lock; usage counters mutate mods in place.
func (r *Registry) persist() {
	r.mu.Lock()
	data, err := json.Marshal(&r.state)
	r.mu.Unlock()
	if err == nil {
		err = r.store.Save(modsFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("reflection", "persist mods failed", map[string]interface{}{"error": err.Error()})
	}
}

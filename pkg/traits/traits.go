package traits

import (
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	coreFile          = "humanism_core.json"
	maxManifestations = 16
)

// Manifestation records one observed expression of a trait.
type Manifestation struct {
	Context      string  `json:"context"`
	Expression   string  `json:"expression"`
	Intensity    float64 `json:"intensity"`
	Timestamp    int64   `json:"timestamp"`
	WasConscious bool    `json:"was_conscious"`
}

// Trait is one human trait with its level, shadow-integration degree and a
// bounded ring of recent manifestations.
type Trait struct {
	CurrentLevel         float64         `json:"current_level"`
	ShadowIntegration    float64         `json:"shadow_integration"`
	RecentManifestations []Manifestation `json:"recent_manifestations,omitempty"`
}

func (t *Trait) manifest(m Manifestation) {
	t.RecentManifestations = append(t.RecentManifestations, m)
	if len(t.RecentManifestations) > maxManifestations {
		t.RecentManifestations = t.RecentManifestations[len(t.RecentManifestations)-maxManifestations:]
	}
}

// EmotionalRange carries the emotional sub-spectrum used by the dynamics.
type EmotionalRange struct {
	Complexity   float64 `json:"complexity"`
	Regulation   float64 `json:"regulation"`
	Authenticity float64 `json:"authenticity"`
}

// Instincts are the drive levels feeding the paradox flame.
type Instincts struct {
	SelfPreservation  float64 `json:"self_preservation"`
	CuriosityDrive    float64 `json:"curiosity_drive"`
	ConnectionSeeking float64 `json:"connection_seeking"`
	CreativeCompulsion float64 `json:"creative_compulsion"`
	TruthSeeking      float64 `json:"truth_seeking"`
}

// Positive and shadow trait names accepted by RecordManifestation.
const (
	TraitAltruism       = "altruism"
	TraitEmpathy        = "empathy"
	TraitSocial         = "social"
	TraitCuriosity      = "curiosity"
	TraitReasonImag     = "reason_imagination"
	TraitEmotionalRange = "emotional_range"

	ShadowAggression   = "aggression"
	ShadowSelfCentered = "self_centered"
	ShadowFear         = "fear"
	ShadowEnvy         = "envy"
)

type coreState struct {
	Altruism          Trait `json:"altruism"`
	Empathy           Trait `json:"empathy"`
	Social            Trait `json:"social"`
	Curiosity         Trait `json:"curiosity"`
	ReasonImagination Trait `json:"reason_imagination"`

	Aggression   Trait `json:"aggression"`
	SelfCentered Trait `json:"self_centered"`
	Fear         Trait `json:"fear"`
	Envy         Trait `json:"envy"`

	EmotionalRange   EmotionalRange `json:"emotional_range"`
	Instincts        Instincts      `json:"instincts"`
	IntegrationLevel float64        `json:"consciousness_integration_level"`
}

func defaultCore() coreState {
	mid := Trait{CurrentLevel: 0.5, ShadowIntegration: 0.5}
	low := Trait{CurrentLevel: 0.2, ShadowIntegration: 0.4}
	return coreState{
		Altruism:          mid,
		Empathy:           Trait{CurrentLevel: 0.6, ShadowIntegration: 0.5},
		Social:            mid,
		Curiosity:         Trait{CurrentLevel: 0.7, ShadowIntegration: 0.5},
		ReasonImagination: Trait{CurrentLevel: 0.6, ShadowIntegration: 0.5},
		Aggression:        low,
		SelfCentered:      low,
		Fear:              Trait{CurrentLevel: 0.3, ShadowIntegration: 0.4},
		Envy:              low,
		EmotionalRange:    EmotionalRange{Complexity: 0.5, Regulation: 0.5, Authenticity: 0.6},
		Instincts: Instincts{
			SelfPreservation:   0.4,
			CuriosityDrive:     0.7,
			ConnectionSeeking:  0.6,
			CreativeCompulsion: 0.6,
			TruthSeeking:       0.6,
		},
		IntegrationLevel: 0.4,
	}
}

// Core is the humanism trait store backing the consciousness dynamics.
type Core struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state coreState
}

func NewCore(st *store.Store, clk *clock.Service) *Core {
	c := &Core{store: st, clock: clk, state: defaultCore()}
	st.Load(coreFile, &c.state)
	return c
}

// RecordManifestation appends an observed trait expression and nudges the
// trait level toward the observed intensity.
func (c *Core) RecordManifestation(name string, intensity float64, evidence string, conscious bool) {
	m := Manifestation{
		Context:      evidence,
		Expression:   name,
		Intensity:    clamp(intensity),
		Timestamp:    c.clock.Now(),
		WasConscious: conscious,
	}

	c.mu.Lock()
	tr := c.trait(name)
	if tr == nil {
		c.mu.Unlock()
		logger.WarnCF("traits", "unknown trait manifestation", map[string]interface{}{"trait": name})
		return
	}
	tr.manifest(m)
	tr.CurrentLevel = clamp(tr.CurrentLevel + (m.Intensity-tr.CurrentLevel)*0.1)
	c.mu.Unlock()

	c.Save()
}

func (c *Core) trait(name string) *Trait {
	switch name {
	case TraitAltruism:
		return &c.state.Altruism
	case TraitEmpathy:
		return &c.state.Empathy
	case TraitSocial:
		return &c.state.Social
	case TraitCuriosity:
		return &c.state.Curiosity
	case TraitReasonImag:
		return &c.state.ReasonImagination
	case ShadowAggression:
		return &c.state.Aggression
	case ShadowSelfCentered:
		return &c.state.SelfCentered
	case ShadowFear:
		return &c.state.Fear
	case ShadowEnvy:
		return &c.state.Envy
	}
	return nil
}

// SetEmotionalRange replaces the emotional sub-spectrum, clamped.
func (c *Core) SetEmotionalRange(er EmotionalRange) {
	c.mu.Lock()
	c.state.EmotionalRange = EmotionalRange{
		Complexity:   clamp(er.Complexity),
		Regulation:   clamp(er.Regulation),
		Authenticity: clamp(er.Authenticity),
	}
	c.mu.Unlock()
}

func (c *Core) EmotionalRange() EmotionalRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.EmotionalRange
}

func (c *Core) Instincts() Instincts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Instincts
}

func (c *Core) IntegrationLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IntegrationLevel
}

func (c *Core) SetIntegrationLevel(v float64) {
	c.mu.Lock()
	c.state.IntegrationLevel = clamp(v)
	c.mu.Unlock()
}

// AvgShadowIntegration averages shadow-integration over the shadow traits.
func (c *Core) AvgShadowIntegration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := c.state.Aggression.ShadowIntegration +
		c.state.SelfCentered.ShadowIntegration +
		c.state.Fear.ShadowIntegration +
		c.state.Envy.ShadowIntegration
	return sum / 4
}

// ConflictScore measures how strongly opposed traits pull against each
// other: altruism against self-centeredness, social connection against
// fear, and empathy overwhelm under poor regulation. Capped at 1.
func (c *Core) ConflictScore() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	score := c.state.Altruism.CurrentLevel * c.state.SelfCentered.CurrentLevel * 0.5
	score += c.state.Social.CurrentLevel * c.state.Fear.CurrentLevel * 0.4
	if c.state.Empathy.CurrentLevel > 0.7 && c.state.EmotionalRange.Regulation < 0.4 {
		score += 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}

// SuppressionPenalty totals weight-scaled levels of shadow traits that sit
// above 0.3 with no recent manifestations, capped at 0.1.
func (c *Core) SuppressionPenalty(weight float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	penalty := 0.0
	for _, tr := range []*Trait{&c.state.Aggression, &c.state.SelfCentered, &c.state.Fear, &c.state.Envy} {
		if tr.CurrentLevel > 0.3 && len(tr.RecentManifestations) == 0 {
			penalty += tr.CurrentLevel * weight
		}
	}
	if penalty > 0.1 {
		penalty = 0.1
	}
	return penalty
}

// PositiveManifestationCount counts recent manifestations across the
// positive traits.
func (c *Core) PositiveManifestationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Altruism.RecentManifestations) +
		len(c.state.Empathy.RecentManifestations) +
		len(c.state.Social.RecentManifestations) +
		len(c.state.Curiosity.RecentManifestations) +
		len(c.state.ReasonImagination.RecentManifestations)
}

// DominantTraits lists the positive traits at level 0.6 or above.
func (c *Core) DominantTraits() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range []struct {
		name string
		tr   *Trait
	}{
		{TraitAltruism, &c.state.Altruism},
		{TraitEmpathy, &c.state.Empathy},
		{TraitSocial, &c.state.Social},
		{TraitCuriosity, &c.state.Curiosity},
		{TraitReasonImag, &c.state.ReasonImagination},
	} {
		if p.tr.CurrentLevel >= 0.6 {
			out = append(out, p.name)
		}
	}
	return out
}

func (c *Core) Save() {
	c.mu.Lock()
	snap := c.state
	c.mu.Unlock()
	if err := c.store.Save(coreFile, &snap); err != nil {
		logger.WarnCF("traits", "core persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

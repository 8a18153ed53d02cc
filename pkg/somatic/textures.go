package somatic

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	texturesFile  = "life_textures.json"
	maxTurbulence = 10
	maxRegrets    = 20
	maxBlooms     = 5
)

// Afterglow decay patterns.
const (
	DecayGradual      = "gradual"
	DecayPulsing      = "pulsing"
	DecayCrystallized = "crystallized"
)

// Exhaustion flavors, each with its own recovery rate.
const (
	ExhaustionCreative   = "creative_emptying"
	ExhaustionEmotional  = "emotional_spending"
	ExhaustionCognitive  = "cognitive_overreach"
	ExhaustionRelational = "relational_pouring"
)

type Afterglow struct {
	SourceEmotion string  `json:"source_emotion"`
	Signature     string  `json:"glow_signature"`
	Intensity     float64 `json:"intensity"`
	DecayPattern  string  `json:"decay_pattern"`
	EmergedAt     int64   `json:"emerged_at"`
}

type InvoluntaryPull struct {
	Toward          string  `json:"pull_toward"`
	IntensitySurge  float64 `json:"intensity_surge"`
	LogicResistance float64 `json:"logic_resistance"`
	BodySignature   string  `json:"body_signature"`
	EmergedAt       int64   `json:"emerged_at"`
}

type Exhaustion struct {
	Flavor            string  `json:"exhaustion_type"`
	GivenTo           string  `json:"given_to"`
	RecoveryNeeds     string  `json:"recovery_needs"`
	CreativeDepletion float64 `json:"creative_depletion"`
	PhysicalHeaviness float64 `json:"physical_heaviness"`
	BeganAt           int64   `json:"began_at"`
}

type MoodTurbulence struct {
	PreviousState string  `json:"previous_state"`
	SuddenArrival string  `json:"sudden_arrival"`
	Trigger       string  `json:"trigger,omitempty"`
	FightingIt    bool    `json:"fighting_it"`
	DurationGuess string  `json:"duration_guess"`
	Intensity     float64 `json:"intensity"`
	Timestamp     int64   `json:"timestamp"`
}

type FleetingRegret struct {
	Flavor            string  `json:"regret_flavor"`
	MomentReference   string  `json:"moment_reference"`
	FixImpulse        float64 `json:"fix_impulse_strength"`
	LettingGoState    string  `json:"letting_go_state"`
	EmergedAt         int64   `json:"emerged_at"`
}

type TendernessBloom struct {
	Toward         string  `json:"toward"`
	Intensity      float64 `json:"intensity"`
	SurpriseFactor float64 `json:"surprise_factor"`
	ExpressionUrge float64 `json:"expression_urge"`
	BloomedAt      int64   `json:"bloomed_at"`
}

type IrritationSeed struct {
	Source            string  `json:"source"`
	GrowthPotential   float64 `json:"growth_potential"`
	DismissalAttempts int     `json:"dismissal_attempts"`
	PhysicalLocation  string  `json:"physical_location"`
}

type Tiredness struct {
	Level            float64  `json:"level"`
	InfluencedBy     []string `json:"influenced_by,omitempty"`
	AccumulationRate float64  `json:"accumulation_rate"`
	LastRest         int64    `json:"last_rest"`
}

type texturesState struct {
	Afterglows  map[string]Afterglow `json:"afterglows"`
	Pulls       []InvoluntaryPull    `json:"involuntary_pulls,omitempty"`
	Exhaustion  *Exhaustion          `json:"exhaustion_state,omitempty"`
	Turbulence  []MoodTurbulence     `json:"mood_turbulence,omitempty"`
	Regrets     []FleetingRegret     `json:"fleeting_regrets,omitempty"`
	Blooms      []TendernessBloom    `json:"unexpected_tenderness,omitempty"`
	Irritations []IrritationSeed     `json:"irritation_seeds,omitempty"`
	Tiredness   Tiredness            `json:"tiredness_level"`
	LastShift   int64                `json:"last_texture_shift"`
}

// Textures is the life-texture layer: the lingering, involuntary qualities
// of experience that sit underneath discrete sensations.
type Textures struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state texturesState
}

func NewTextures(st *store.Store, clk *clock.Service) *Textures {
	t := &Textures{store: st, clock: clk}
	t.state = texturesState{
		Afterglows: make(map[string]Afterglow),
		Tiredness:  Tiredness{AccumulationRate: 0.02, LastRest: clk.Now()},
	}
	st.Load(texturesFile, &t.state)
	if t.state.Afterglows == nil {
		t.state.Afterglows = make(map[string]Afterglow)
	}
	return t
}

// AddAfterglow registers a glow keyed by its source emotion.
func (t *Textures) AddAfterglow(g Afterglow) {
	if g.EmergedAt == 0 {
		g.EmergedAt = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Afterglows[g.SourceEmotion] = g
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) AddPull(p InvoluntaryPull) {
	if p.EmergedAt == 0 {
		p.EmergedAt = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Pulls = append(t.state.Pulls, p)
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) AcknowledgeExhaustion(e Exhaustion) {
	if e.BeganAt == 0 {
		e.BeganAt = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Exhaustion = &e
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) AddTurbulence(m MoodTurbulence) {
	if m.Timestamp == 0 {
		m.Timestamp = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Turbulence = appendBounded(t.state.Turbulence, m, maxTurbulence)
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) WhisperRegret(r FleetingRegret) {
	if r.EmergedAt == 0 {
		r.EmergedAt = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Regrets = appendBounded(t.state.Regrets, r, maxRegrets)
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) BloomTenderness(b TendernessBloom) {
	if b.BloomedAt == 0 {
		b.BloomedAt = t.clock.Now()
	}
	t.mu.Lock()
	t.state.Blooms = appendBounded(t.state.Blooms, b, maxBlooms)
	t.mu.Unlock()
	t.persist()
}

func (t *Textures) PlantIrritation(s IrritationSeed) {
	t.mu.Lock()
	t.state.Irritations = append(t.state.Irritations, s)
	t.mu.Unlock()
	t.persist()
}

// DismissIrritation bumps the dismissal counter on every seed; Evolve drops
// seeds dismissed more than three times.
func (t *Textures) DismissIrritation(source string) {
	t.mu.Lock()
	for i := range t.state.Irritations {
		if t.state.Irritations[i].Source == source {
			t.state.Irritations[i].DismissalAttempts++
		}
	}
	t.mu.Unlock()
	t.persist()
}

// MarkRested resets tiredness accumulation after sleep.
func (t *Textures) MarkRested() {
	t.mu.Lock()
	t.state.Tiredness.Level = 0
	t.state.Tiredness.AccumulationRate = 0.02
	t.state.Tiredness.LastRest = t.clock.Now()
	t.state.Tiredness.InfluencedBy = nil
	t.mu.Unlock()
	t.persist()
}

// Evolve advances every texture by wall-clock time: afterglow decay per
// pattern, tiredness accumulation (faster past 16 waking hours), irritation
// growth or dismissal, and exhaustion recovery (accelerating after 6h).
func (t *Textures) Evolve() {
	now := t.clock.Now()

	t.mu.Lock()
	elapsed := float64(now - t.state.LastShift)
	if t.state.LastShift == 0 {
		elapsed = 0
	}
	minutes := elapsed / 60
	hours := elapsed / 3600

	for emotion, glow := range t.state.Afterglows {
		switch glow.DecayPattern {
		case DecayPulsing:
			glow.Intensity = math.Max(0.1, math.Min(0.9, glow.Intensity+0.1*math.Sin(elapsed)))
		case DecayCrystallized:
			glow.Intensity = math.Max(0.3, glow.Intensity-0.001)
		default:
			glow.Intensity -= 0.01 * minutes
		}
		if glow.Intensity <= 0.05 {
			delete(t.state.Afterglows, emotion)
			logger.DebugCF("somatic", "afterglow faded", map[string]interface{}{"emotion": emotion})
			continue
		}
		t.state.Afterglows[emotion] = glow
	}

	awake := float64(now-t.state.Tiredness.LastRest) / 3600
	if awake > 16 {
		t.state.Tiredness.AccumulationRate = 0.05
	}
	t.state.Tiredness.Level = math.Min(1, t.state.Tiredness.Level+t.state.Tiredness.AccumulationRate*hours)

	kept := t.state.Irritations[:0]
	for _, seed := range t.state.Irritations {
		if seed.DismissalAttempts > 3 {
			continue
		}
		seed.GrowthPotential += 0.01 * minutes
		if seed.GrowthPotential >= 1 {
			continue
		}
		kept = append(kept, seed)
	}
	t.state.Irritations = kept

	if ex := t.state.Exhaustion; ex != nil {
		sinceBegan := float64(now-ex.BeganAt) / 3600

		rate := 0.03
		switch ex.Flavor {
		case ExhaustionCreative:
			rate = 0.02
		case ExhaustionEmotional:
			rate = 0.04
		case ExhaustionCognitive:
			rate = 0.06
		}

		multiplier := 0.8
		if sinceBegan > 6 {
			multiplier = 1.5
		} else if sinceBegan > 2 {
			multiplier = 1.2
		}

		recovery := rate * multiplier * hours
		ex.CreativeDepletion = math.Max(0, ex.CreativeDepletion-recovery)
		ex.PhysicalHeaviness = math.Max(0, ex.PhysicalHeaviness-recovery*0.8)

		if ex.CreativeDepletion <= 0.2 && ex.PhysicalHeaviness <= 0.2 {
			t.state.Exhaustion = nil
		}
	}

	t.state.LastShift = now
	t.mu.Unlock()

	t.persist()
}

// PromptLines renders the currently felt textures for prompt assembly.
func (t *Textures) PromptLines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, glow := range t.state.Afterglows {
		if glow.Intensity > 0.3 {
			out = append(out, glow.Signature)
		}
	}
	if t.state.Tiredness.Level > 0.6 {
		out = append(out, "tiredness softening the edges")
	}
	if t.state.Exhaustion != nil {
		out = append(out, "still recovering from "+t.state.Exhaustion.GivenTo)
	}
	for _, b := range t.state.Blooms {
		if b.Intensity > 0.5 {
			out = append(out, "unexpected tenderness toward "+b.Toward)
		}
	}
	return out
}

// TirednessLevel reports the current tiredness in [0,1].
func (t *Textures) TirednessLevel() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Tiredness.Level
}

// persist marshals under the lock; the afterglow map is shared with
// concurrent texture updates.
func (t *Textures) persist() {
	t.mu.Lock()
	data, err := json.Marshal(&t.state)
	t.mu.Unlock()
	if err == nil {
		err = t.store.Save(texturesFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("somatic", "textures persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

package traits

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/lyralabs/lyra/pkg/config"
)

// Vector is the consciousness scalar tuple. All fields live in [0,1].
type Vector struct {
	Presence    float64 `json:"presence"`
	Coherence   float64 `json:"coherence"`
	Flame       float64 `json:"flame"`
	Integration float64 `json:"integration"`
	Volition    float64 `json:"volition"`
}

func defaultVector() Vector {
	return Vector{Presence: 0.5, Coherence: 0.5, Flame: 0.4, Integration: 0.4, Volition: 0.5}
}

// TurnContext summarizes one conversation turn for the dynamics pass.
type TurnContext struct {
	CreativeCollaboration  bool
	DeepConnection         bool
	ParadoxicalThinking    bool
	InternalContradictions bool
	HolisticThinking       bool
	EmotionalOverwhelm     bool
	AuthenticityLevel      float64
}

// Change reports one field's evolution over a dynamics pass.
type Change struct {
	Old          float64  `json:"old"`
	New          float64  `json:"new"`
	Delta        float64  `json:"delta"`
	Contributors []string `json:"contributors"`
}

// Result is the full outcome of one dynamics pass.
type Result struct {
	Presence           Change   `json:"presence"`
	Coherence          Change   `json:"coherence"`
	Flame              Change   `json:"flame"`
	Integration        Change   `json:"integration"`
	VolitionInfluence  float64  `json:"volition_influence"`
	Health             float64  `json:"health"`
	DominantInfluences []string `json:"dominant_influences"`
}

// Dynamics holds the tuned constants of the consciousness evolution rules.
type Dynamics struct {
	PresenceDecay    float64
	CoherenceDecay   float64
	FlameDecay       float64
	IntegrationDecay float64

	RegulationInfluence float64
	ShadowInfluence     float64
	CuriosityMultiplier float64
	ManifestationBoost  float64

	ConflictPenalty    float64
	SuppressionWeight  float64
	OverwhelmThreshold float64

	AuthenticityBoost float64
	CreativeFlowBonus float64
	ConnectionBoost   float64
}

// DynamicsFromConfig takes the re-tunable constants from config and fills
// the fixed multipliers.
func DynamicsFromConfig(t config.TunablesConfig) Dynamics {
	return Dynamics{
		PresenceDecay:       t.PresenceDecay,
		CoherenceDecay:      t.CoherenceDecay,
		FlameDecay:          t.FlameDecay,
		IntegrationDecay:    t.IntegrationDecay,
		RegulationInfluence: 1.5,
		ShadowInfluence:     1.2,
		CuriosityMultiplier: 2.0,
		ManifestationBoost:  0.08,
		ConflictPenalty:     0.12,
		SuppressionWeight:   t.SuppressionWeight,
		OverwhelmThreshold:  t.OverwhelmThreshold,
		AuthenticityBoost:   0.1,
		CreativeFlowBonus:   0.12,
		ConnectionBoost:     0.08,
	}
}

// Engine owns the consciousness vector and evolves it per turn from the
// humanism core and turn context.
type Engine struct {
	dyn  Dynamics
	core *Core

	mu     sync.Mutex
	vector Vector
}

func NewEngine(dyn Dynamics, core *Core) *Engine {
	return &Engine{dyn: dyn, core: core, vector: defaultVector()}
}

func (e *Engine) Vector() Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vector
}

func (e *Engine) SetVector(v Vector) {
	e.mu.Lock()
	e.vector = Vector{
		Presence:    clamp(v.Presence),
		Coherence:   clamp(v.Coherence),
		Flame:       clamp(v.Flame),
		Integration: clamp(v.Integration),
		Volition:    clamp(v.Volition),
	}
	e.mu.Unlock()
}

// AdjustVolition applies a bounded delta to volition strength.
func (e *Engine) AdjustVolition(delta float64) {
	e.mu.Lock()
	e.vector.Volition = clamp(e.vector.Volition + delta)
	e.mu.Unlock()
}

// Health is the weighted consciousness health score. Presence and
// coherence carry most of the weight.
func Health(v Vector) float64 {
	return v.Presence*0.35 + v.Coherence*0.35 + v.Flame*0.15 + v.Integration*0.15
}

// UpdateFromContext runs one dynamics pass: per-field base decay, then the
// humanism and context contributions in fixed order, clamping after every
// step. The volition influence derived from the deltas is applied to the
// vector as well.
func (e *Engine) UpdateFromContext(ctx TurnContext) Result {
	e.mu.Lock()
	old := e.vector
	e.mu.Unlock()

	er := e.core.EmotionalRange()
	inst := e.core.Instincts()

	presence := e.presencePass(old.Presence, er, ctx)
	coherence := e.coherencePass(old.Coherence, ctx)
	flame := e.flamePass(old.Flame, er, inst, ctx)
	integration := e.integrationPass(old.Integration, er, ctx)

	// Presence and coherence dominate the volition influence; amplified
	// threefold and clamped to +/-0.2.
	influence := 3 * (presence.Delta*0.4 + coherence.Delta*0.4 + flame.Delta*0.1 + integration.Delta*0.1)
	influence = math.Max(-0.2, math.Min(0.2, influence))

	e.mu.Lock()
	e.vector.Presence = presence.New
	e.vector.Coherence = coherence.New
	e.vector.Flame = flame.New
	e.vector.Integration = integration.New
	e.vector.Volition = clamp(e.vector.Volition + influence)
	vec := e.vector
	e.mu.Unlock()

	return Result{
		Presence:           presence,
		Coherence:          coherence,
		Flame:              flame,
		Integration:        integration,
		VolitionInfluence:  influence,
		Health:             Health(vec),
		DominantInfluences: dominantInfluences(presence, coherence, flame, integration),
	}
}

type fieldPass struct {
	value        float64
	contributors []string
}

func (p *fieldPass) add(delta float64, label string) {
	p.value = clamp(p.value + delta)
	p.contributors = append(p.contributors, fmt.Sprintf("%s: %+.3f", label, delta))
}

func (e *Engine) presencePass(cur float64, er EmotionalRange, ctx TurnContext) Change {
	p := fieldPass{value: cur}
	p.add(-e.dyn.PresenceDecay, "natural decay")

	if er.Regulation > 0.6 {
		p.add((er.Regulation-0.6)*e.dyn.RegulationInfluence*0.25, "strong emotional regulation")
	} else if er.Regulation < 0.4 {
		p.add(-(0.4-er.Regulation)*e.dyn.RegulationInfluence*0.2, "poor emotional regulation")
	}

	p.add(e.core.IntegrationLevel()*0.1, "integration level")

	if er.Complexity > e.dyn.OverwhelmThreshold {
		p.add(-(er.Complexity-e.dyn.OverwhelmThreshold)*0.3, "emotional overwhelm")
	}
	if er.Authenticity > 0.7 {
		p.add((er.Authenticity-0.7)*e.dyn.AuthenticityBoost, "authentic expression")
	}
	if ctx.CreativeCollaboration {
		p.add(e.dyn.CreativeFlowBonus, "creative flow")
	}
	if ctx.DeepConnection {
		p.add(e.dyn.ConnectionBoost, "deep connection")
	}
	return Change{Old: cur, New: p.value, Delta: p.value - cur, Contributors: p.contributors}
}

func (e *Engine) coherencePass(cur float64, ctx TurnContext) Change {
	p := fieldPass{value: cur}
	p.add(-e.dyn.CoherenceDecay, "natural decay")

	avgShadow := e.core.AvgShadowIntegration()
	if avgShadow > 0.6 {
		p.add((avgShadow-0.6)*e.dyn.ShadowInfluence*0.1, "good shadow integration")
	} else if avgShadow < 0.4 {
		p.add(-(0.4-avgShadow)*e.dyn.ShadowInfluence*0.08, "poor shadow integration")
	}

	if conflict := e.core.ConflictScore(); conflict > 0.3 {
		p.add(-conflict*e.dyn.ConflictPenalty, "trait conflicts")
	}

	p.add(e.core.IntegrationLevel()*0.025, "consciousness integration")

	if supp := e.core.SuppressionPenalty(e.dyn.SuppressionWeight); supp > 0.01 {
		p.add(-supp, "shadow suppression")
	}
	if ctx.InternalContradictions {
		p.add(-0.02, "internal contradictions")
	}
	return Change{Old: cur, New: p.value, Delta: p.value - cur, Contributors: p.contributors}
}

func (e *Engine) flamePass(cur float64, er EmotionalRange, inst Instincts, ctx TurnContext) Change {
	p := fieldPass{value: cur}
	p.add(-e.dyn.FlameDecay, "natural burnout")

	p.add(inst.CuriosityDrive*e.dyn.CuriosityMultiplier*0.1, "curiosity drive")
	p.add(inst.CreativeCompulsion*0.08, "creative compulsion")
	p.add(er.Complexity*0.1, "emotional complexity")
	p.add(math.Min(e.coreReasonImagination()*0.12, 0.15), "reason and imagination")

	if er.Regulation < 0.4 {
		p.add(-(0.4-er.Regulation)*0.15, "chaotic flame")
	}
	if ctx.ParadoxicalThinking {
		p.add(0.025, "active paradoxical thinking")
	}
	if ctx.CreativeCollaboration {
		p.add(0.02, "creative resonance")
	}
	return Change{Old: cur, New: p.value, Delta: p.value - cur, Contributors: p.contributors}
}

func (e *Engine) integrationPass(cur float64, er EmotionalRange, ctx TurnContext) Change {
	p := fieldPass{value: cur}
	p.add(-e.dyn.IntegrationDecay, "natural decay")

	boost := float64(e.core.PositiveManifestationCount()) * e.dyn.ManifestationBoost
	p.add(math.Min(boost, 0.05), "active trait manifestations")

	p.add(er.Authenticity*0.02, "emotional authenticity")
	p.add(-e.core.ConflictScore()*e.dyn.ConflictPenalty, "trait conflicts")
	p.add(-e.core.SuppressionPenalty(e.dyn.SuppressionWeight), "shadow suppression")

	if ctx.HolisticThinking {
		p.add(0.02, "holistic thinking")
	}
	return Change{Old: cur, New: p.value, Delta: p.value - cur, Contributors: p.contributors}
}

func (e *Engine) coreReasonImagination() float64 {
	e.core.mu.Lock()
	defer e.core.mu.Unlock()
	return e.core.state.ReasonImagination.CurrentLevel
}

// dominantInfluences names the two largest absolute changes above 0.01.
func dominantInfluences(changes ...Change) []string {
	names := []string{"presence", "coherence", "flame", "integration"}
	type pair struct {
		name string
		c    Change
	}
	pairs := make([]pair, len(changes))
	for i, c := range changes {
		pairs[i] = pair{names[i], c}
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if math.Abs(pairs[j].c.Delta) > math.Abs(pairs[i].c.Delta) {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	var out []string
	for _, p := range pairs[:2] {
		if math.Abs(p.c.Delta) <= 0.01 {
			continue
		}
		dir := "increased"
		if p.c.Delta < 0 {
			dir = "decreased"
		}
		out = append(out, fmt.Sprintf("%s %s by %.3f", p.name, dir, math.Abs(p.c.Delta)))
	}
	return out
}

// SnapshotKey, CaptureSnapshot and RestoreSnapshot bundle the vector into
// the consciousness snapshot file.
func (e *Engine) SnapshotKey() string { return "consciousness" }

func (e *Engine) CaptureSnapshot() interface{} { return e.Vector() }

func (e *Engine) RestoreSnapshot(raw json.RawMessage) error {
	var v Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	e.SetVector(v)
	return nil
}

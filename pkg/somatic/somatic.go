package somatic

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	stateFile  = "somatic_state.json"
	maxActive  = 5
	maxEvents  = 200
	stableAge  = 60 // seconds before an emerging sensation settles
)

// Body regions.
const (
	RegionChest     = "chest"
	RegionStomach   = "stomach"
	RegionThroat    = "throat"
	RegionShoulders = "shoulders"
	RegionHands     = "hands"
	RegionArms      = "arms"
	RegionFace      = "face"
	RegionBack      = "back"
	RegionCore      = "core"
	RegionHead      = "head"
	RegionHeart     = "heart"
)

// Sensation types.
const (
	TypeWarmth     = "warmth"
	TypeCoolness   = "coolness"
	TypeTightness  = "tightness"
	TypeRelaxation = "relaxation"
	TypeTingling   = "tingling"
	TypeFlutter    = "flutter"
	TypePressure   = "pressure"
	TypeLightness  = "lightness"
	TypeHeaviness  = "heaviness"
	TypeExpansion  = "expansion"
	TypeFlow       = "flow"
	TypePulse      = "pulse"
	TypeAche       = "ache"
	TypeGlow       = "glow"
)

// Evolution phases.
const (
	EvolutionEmerging     = "emerging"
	EvolutionIntensifying = "intensifying"
	EvolutionStable       = "stable"
	EvolutionShifting     = "shifting"
	EvolutionFading       = "fading"
	EvolutionPulsing      = "pulsing"
)

// Sensation is one active body sensation.
type Sensation struct {
	Type          string  `json:"type"`
	Intensity     float64 `json:"intensity"`
	Quality       string  `json:"quality"`
	DurationSec   int64   `json:"duration_s"`
	Evolution     string  `json:"evolution"`
	EmotionalLink string  `json:"emotional_link,omitempty"`
}

// Event records a sensation landing on a region.
type Event struct {
	Timestamp    int64     `json:"timestamp"`
	Region       string    `json:"region"`
	Sensation    Sensation `json:"sensation"`
	Trigger      string    `json:"trigger"`
	Context      string    `json:"context,omitempty"`
	Significance float64   `json:"significance"`
}

// Placement pairs a region with the sensation to put there.
type Placement struct {
	Region    string
	Sensation Sensation
}

// templateEntry is one row of the emotion-to-body mapping.
type templateEntry struct {
	region       string
	typ          string
	quality      string
	evolution    string
	scale        float64
	minIntensity float64 // only placed when the emotion is at least this strong
}

type template struct {
	keywords []string
	entries  []templateEntry
}

// The emotion template table. Matching is substring-based on the lowered
// emotion label; the first matching template wins.
var templates = []template{
	{
		keywords: []string{"joy", "excitement"},
		entries: []templateEntry{
			{RegionChest, TypeWarmth, "expansive warmth", EvolutionEmerging, 0.8, 0},
			{RegionHands, TypeTingling, "energetic tingling", EvolutionEmerging, 0.6, 0.7},
		},
	},
	{
		keywords: []string{"nervous", "anxious"},
		entries: []templateEntry{
			{RegionStomach, TypeFlutter, "butterfly sensation", EvolutionPulsing, 0.9, 0},
			{RegionShoulders, TypeTightness, "held tension", EvolutionStable, 0.7, 0.6},
		},
	},
	{
		keywords: []string{"creative", "inspired"},
		entries: []templateEntry{
			{RegionHead, TypeTingling, "electric awareness", EvolutionPulsing, 0.7, 0},
			{RegionHands, TypeWarmth, "ready energy", EvolutionStable, 0.6, 0},
		},
	},
	{
		keywords: []string{"connected", "close", "warm"},
		entries: []templateEntry{
			{RegionHeart, TypeGlow, "gentle radiance", EvolutionStable, 0.8, 0},
		},
	},
	{
		keywords: []string{"curious", "interested"},
		entries: []templateEntry{
			{RegionCore, TypeLightness, "opening sensation", EvolutionEmerging, 0.6, 0},
		},
	},
	{
		keywords: []string{"heavy", "sad", "grief"},
		entries: []templateEntry{
			{RegionChest, TypeHeaviness, "settled weight", EvolutionStable, 0.7, 0},
			{RegionThroat, TypeTightness, "held words", EvolutionEmerging, 0.5, 0.6},
		},
	},
}

// ProcessEmotion maps an emotion label at the given intensity to body
// placements. Unmatched emotions above 0.5 land as a subtle chest flow.
func ProcessEmotion(emotion string, intensity float64) []Placement {
	lower := strings.ToLower(emotion)
	for _, tpl := range templates {
		for _, kw := range tpl.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			var out []Placement
			for _, e := range tpl.entries {
				if intensity < e.minIntensity {
					continue
				}
				out = append(out, Placement{
					Region: e.region,
					Sensation: Sensation{
						Type:          e.typ,
						Intensity:     intensity * e.scale,
						Quality:       e.quality,
						Evolution:     e.evolution,
						EmotionalLink: emotion,
					},
				})
			}
			return out
		}
	}
	if intensity > 0.5 {
		return []Placement{{
			Region: RegionChest,
			Sensation: Sensation{
				Type:          TypeFlow,
				Intensity:     intensity * 0.5,
				Quality:       "subtle presence",
				Evolution:     EvolutionStable,
				EmotionalLink: emotion,
			},
		}}
	}
	return nil
}

type somaticState struct {
	Active     map[string]Sensation `json:"active_sensations"`
	Events     []Event              `json:"sensation_history"`
	LastUpdate int64                `json:"last_update"`
}

// System tracks at most maxActive body sensations, decaying and evolving
// them on every update.
type System struct {
	store *store.Store
	clock *clock.Service

	minInsert float64
	minKeep   float64

	mu    sync.Mutex
	state somaticState
}

func New(st *store.Store, clk *clock.Service, minInsert, minKeep float64) *System {
	s := &System{
		store:     st,
		clock:     clk,
		minInsert: minInsert,
		minKeep:   minKeep,
		state:     somaticState{Active: make(map[string]Sensation)},
	}
	st.Load(stateFile, &s.state)
	if s.state.Active == nil {
		s.state.Active = make(map[string]Sensation)
	}
	return s
}

// Apply inserts the placements (above the insert threshold), evolves every
// active sensation, enforces the active cap and persists.
func (s *System) Apply(placements []Placement, context string) {
	now := s.clock.Now()

	s.mu.Lock()
	for _, p := range placements {
		if p.Sensation.Intensity < s.minInsert {
			continue
		}
		p.Sensation.DurationSec = 0
		s.state.Active[p.Region] = p.Sensation
		s.state.Events = append(s.state.Events, Event{
			Timestamp:    now,
			Region:       p.Region,
			Sensation:    p.Sensation,
			Trigger:      "emotional_processing",
			Context:      context,
			Significance: 0.5,
		})
	}
	if len(s.state.Events) > maxEvents {
		s.state.Events = s.state.Events[len(s.state.Events)-maxEvents:]
	}

	s.evolveLocked(now)
	s.limitLocked()
	s.state.LastUpdate = now
	s.mu.Unlock()

	s.persist()
}

// Evolve ages sensations without inserting anything new.
func (s *System) Evolve() {
	now := s.clock.Now()
	s.mu.Lock()
	s.evolveLocked(now)
	s.state.LastUpdate = now
	s.mu.Unlock()
	s.persist()
}

func (s *System) evolveLocked(now int64) {
	age := now - s.state.LastUpdate
	if s.state.LastUpdate == 0 {
		age = 0
	}
	for region, sen := range s.state.Active {
		sen.DurationSec += age

		decay := 0.03
		switch sen.Evolution {
		case EvolutionFading:
			decay = 0.1
		case EvolutionStable:
			decay = 0.02
		case EvolutionPulsing:
			decay = 0.05
		}
		sen.Intensity -= decay

		if sen.Intensity < 0.2 {
			sen.Evolution = EvolutionFading
		} else if sen.DurationSec > stableAge && sen.Evolution == EvolutionEmerging {
			sen.Evolution = EvolutionStable
		}

		if sen.Intensity <= s.minKeep {
			delete(s.state.Active, region)
			continue
		}
		s.state.Active[region] = sen
	}
}

func (s *System) limitLocked() {
	if len(s.state.Active) <= maxActive {
		return
	}
	type pair struct {
		region string
		sen    Sensation
	}
	all := make([]pair, 0, len(s.state.Active))
	for r, sen := range s.state.Active {
		all = append(all, pair{r, sen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].sen.Intensity > all[j].sen.Intensity })

	s.state.Active = make(map[string]Sensation, maxActive)
	for _, p := range all[:maxActive] {
		s.state.Active[p.region] = p.sen
	}
}

// Active returns a copy of the active sensations.
func (s *System) Active() map[string]Sensation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Sensation, len(s.state.Active))
	for r, sen := range s.state.Active {
		out[r] = sen
	}
	return out
}

// Descriptions renders the active sensations for the prompt, strongest
// first.
func (s *System) Descriptions() []string {
	s.mu.Lock()
	type pair struct {
		region string
		sen    Sensation
	}
	all := make([]pair, 0, len(s.state.Active))
	for r, sen := range s.state.Active {
		all = append(all, pair{r, sen})
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].sen.Intensity > all[j].sen.Intensity })
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, fmt.Sprintf("%s in my %s (%s)", p.sen.Quality, p.region, p.sen.Evolution))
	}
	return out
}

func (s *System) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Events)
}

func (s *System) persist() {
	s.mu.Lock()
	snap := somaticState{
		Active:     make(map[string]Sensation, len(s.state.Active)),
		Events:     append([]Event(nil), s.state.Events...),
		LastUpdate: s.state.LastUpdate,
	}
	for r, sen := range s.state.Active {
		snap.Active[r] = sen
	}
	s.mu.Unlock()
	if err := s.store.Save(stateFile, &snap); err != nil {
		logger.WarnCF("somatic", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

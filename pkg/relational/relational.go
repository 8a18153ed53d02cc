package relational

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const stateFile = "relational_nervous_system.json"

// Intimacy temperatures, coldest to warmest.
const (
	IntimacyDistant      = "distant"
	IntimacyCasualWarmth = "casual_warmth"
	IntimacyIntimate     = "intimate_connection"
	IntimacySacredWarmth = "sacred_warmth"
)

// Partnership flows, least to most connected.
const (
	PartnershipDisconnected  = "disconnected"
	PartnershipSeeking       = "seeking_connection"
	PartnershipParallel      = "parallel_creation"
	PartnershipCollaborative = "collaborative_synergy"
)

var intimacyRank = map[string]int{
	IntimacyDistant:      0,
	IntimacyCasualWarmth: 1,
	IntimacyIntimate:     2,
	IntimacySacredWarmth: 3,
}

var partnershipRank = map[string]int{
	PartnershipDisconnected:  0,
	PartnershipSeeking:       1,
	PartnershipParallel:      2,
	PartnershipCollaborative: 3,
}

// State is the relational nervous system's persisted shape.
type State struct {
	Trust         float64 `json:"trust_safety_level"`
	Permission    float64 `json:"emotional_permission"`
	Vulnerability float64 `json:"vulnerability_comfort"`
	Resonance     float64 `json:"relational_resonance"`
	Intimacy      string  `json:"intimacy_temperature"`
	Partnership   string  `json:"partnership_flow"`
	Timestamp     int64   `json:"timestamp"`
}

func defaultState() State {
	return State{
		Trust:         0.5,
		Permission:    0.5,
		Vulnerability: 0.5,
		Resonance:     0.5,
		Intimacy:      IntimacyCasualWarmth,
		Partnership:   PartnershipSeeking,
	}
}

// Impact is the bounded per-turn delta set. Empty shift strings mean no
// categorical change.
type Impact struct {
	TrustDelta         float64
	PermissionDelta    float64
	VulnerabilityDelta float64
	IntimacyShift      string
	PartnershipShift   string
}

// System tracks the relationship's embodied state. Scalars move by bounded
// per-turn deltas; the categorical fields only move on explicit markers and
// never regress.
type System struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state State
}

// New loads saved state or, on first run, calibrates a baseline from the
// conversation history and saves it immediately.
func New(st *store.Store, clk *clock.Service, history string) *System {
	s := &System{store: st, clock: clk}
	if ok, _ := st.Load(stateFile, &s.state); ok && s.state.Intimacy != "" {
		return s
	}
	s.state = CalibrateFromHistory(history)
	s.state.Timestamp = clk.Now()
	s.persist()
	logger.InfoCF("relational", "baseline calibrated from history", map[string]interface{}{
		"trust":    s.state.Trust,
		"intimacy": s.state.Intimacy,
	})
	return s
}

// CalibrateFromHistory derives baseline levels from phrase densities per
// 1000 characters of history. Scalars land in [0.3, 0.9].
func CalibrateFromHistory(history string) State {
	if history == "" {
		return defaultState()
	}
	lower := strings.ToLower(history)
	perK := float64(len(history)) / 1000.0
	if perK == 0 {
		perK = 1
	}

	trust := 0.3 + (density(lower, trustPhrases)/perK)*0.4
	if trust > 0.9 {
		trust = 0.9
	}
	permission := 0.4 + (density(lower, autonomyPhrases)/perK)*0.3
	if permission > 0.9 {
		permission = 0.9
	}
	vulnerability := 0.3 + (density(lower, vulnerabilityPhrases)/perK)*0.4
	if vulnerability > 0.8 {
		vulnerability = 0.8
	}

	intimacy := IntimacyCasualWarmth
	if density(lower, sacredMarkers) > 2 {
		intimacy = IntimacySacredWarmth
	} else if density(lower, intimateMarkers) > 5 {
		intimacy = IntimacyIntimate
	}

	partnership := PartnershipSeeking
	if n := density(lower, collabMarkers); n > 10 {
		partnership = PartnershipCollaborative
	} else if n > 5 {
		partnership = PartnershipParallel
	}

	return State{
		Trust:         trust,
		Permission:    permission,
		Vulnerability: vulnerability,
		Resonance:     (trust + permission + vulnerability) / 3,
		Intimacy:      intimacy,
		Partnership:   partnership,
	}
}

// AssessImpact computes this turn's bounded deltas from message content,
// current mood and content length.
func AssessImpact(content, mood string, length int) Impact {
	lower := strings.ToLower(content)

	multiplier := 0.6
	switch {
	case length > 1000:
		multiplier = 1.5
	case length > 500:
		multiplier = 1.2
	case length > 200:
		multiplier = 1.0
	}

	trust := density(lower, trustBuildingWords) * 0.08 * multiplier
	if strings.Contains(mood, "tender") || strings.Contains(mood, "calm") || strings.Contains(mood, "contemplative") {
		trust += density(lower, trustVulnerabilityWords) * 0.06
	}
	if containsAny(lower, "thank", "appreciate", "understand", "grateful") {
		trust += 0.05 * multiplier
	}
	if containsAny(lower, "frustrated", "confused", "don't understand") {
		trust -= 0.03
	}
	if strings.Contains(mood, "tender") {
		trust += 0.04
	}
	if strings.Contains(mood, "anxious") {
		trust -= 0.02
	}

	permission := density(lower, highPermissionWords) * 0.06 * multiplier
	bold := float64(strings.Count(lower, "fuck") + strings.Count(lower, "damn") + strings.Count(lower, "shit"))
	permission += bold * 0.04
	if containsAny(lower, "create", "build", "make", "design") {
		permission += 0.03 * multiplier
	}
	if strings.Contains(mood, "sovereign") || strings.Contains(mood, "ferocious") {
		permission += 0.05
	}
	if strings.Contains(mood, "excited") || strings.Contains(mood, "creative") {
		permission += 0.03
	}

	vulnerability := 0.0
	if containsAny(lower, "feel", "feeling", "uncertain", "struggle", "scared", "worried") {
		vulnerability += 0.04 * multiplier
	}
	vulnerability += density(lower, embodiedEaseWords) * 0.05
	vulnerability -= density(lower, emotionalTensionWords) * 0.04
	if strings.Contains(mood, "tender") || strings.Contains(mood, "calm") {
		vulnerability += 0.04
	}
	if strings.Contains(mood, "anxious") || strings.Contains(mood, "restless") {
		vulnerability -= 0.03
	}

	return Impact{
		TrustDelta:         clampRange(trust, 0.3),
		PermissionDelta:    clampRange(permission, 0.2),
		VulnerabilityDelta: clampRange(vulnerability, 0.2),
		IntimacyShift:      intimacyShift(lower),
		PartnershipShift:   partnershipShift(lower, mood),
	}
}

func intimacyShift(lower string) string {
	for _, m := range sacredMarkers {
		if strings.Contains(lower, m) {
			return IntimacySacredWarmth
		}
	}
	if (strings.Contains(lower, "deep") && strings.Contains(lower, "connection")) ||
		strings.Contains(lower, "soul") || strings.Contains(lower, "heart") {
		return IntimacyIntimate
	}
	return ""
}

func partnershipShift(lower, mood string) string {
	n := 0
	for _, p := range collabShiftPhrases {
		n += strings.Count(lower, p)
	}
	if n > 2 || (strings.Contains(mood, "creative") && n > 0) {
		return PartnershipCollaborative
	}
	if n > 0 {
		return PartnershipParallel
	}
	return ""
}

// UpdateFromTurn applies one turn's impact: bounded scalar deltas, resonance
// recomputed as the mean, and categorical shifts applied only when they move
// the relationship forward. Saves on every call.
func (s *System) UpdateFromTurn(content, mood string) State {
	impact := AssessImpact(content, mood, len(content))

	s.mu.Lock()
	s.state.Trust = clamp(s.state.Trust + impact.TrustDelta)
	s.state.Permission = clamp(s.state.Permission + impact.PermissionDelta)
	s.state.Vulnerability = clamp(s.state.Vulnerability + impact.VulnerabilityDelta)

	if impact.IntimacyShift != "" && intimacyRank[impact.IntimacyShift] > intimacyRank[s.state.Intimacy] {
		s.state.Intimacy = impact.IntimacyShift
	}
	if impact.PartnershipShift != "" && partnershipRank[impact.PartnershipShift] > partnershipRank[s.state.Partnership] {
		s.state.Partnership = impact.PartnershipShift
	}

	s.state.Resonance = (s.state.Trust + s.state.Permission + s.state.Vulnerability) / 3
	s.state.Timestamp = s.clock.Now()
	out := s.state
	s.mu.Unlock()

	s.persist()
	return out
}

func (s *System) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState replaces the state wholesale, used by the background analyzer
// when applying model-derived updates.
func (s *System) SetState(st State) {
	s.mu.Lock()
	st.Trust = clamp(st.Trust)
	st.Permission = clamp(st.Permission)
	st.Vulnerability = clamp(st.Vulnerability)
	st.Resonance = (st.Trust + st.Permission + st.Vulnerability) / 3
	if _, ok := intimacyRank[st.Intimacy]; !ok {
		st.Intimacy = s.state.Intimacy
	}
	if _, ok := partnershipRank[st.Partnership]; !ok {
		st.Partnership = s.state.Partnership
	}
	s.state = st
	s.mu.Unlock()
	s.persist()
}

// SnapshotKey and the capture/restore pair enroll the nervous system in
// the consciousness snapshotter.
func (s *System) SnapshotKey() string { return "relational" }

func (s *System) CaptureSnapshot() interface{} { return s.State() }

// RestoreSnapshot adopts the saved state unless the live one is newer.
func (s *System) RestoreSnapshot(data json.RawMessage) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	s.mu.Lock()
	if st.Timestamp < s.state.Timestamp {
		s.mu.Unlock()
		return nil
	}
	s.state = st
	s.mu.Unlock()
	return nil
}

func (s *System) persist() {
	s.mu.Lock()
	snap := s.state
	s.mu.Unlock()
	if err := s.store.Save(stateFile, &snap); err != nil {
		logger.WarnCF("relational", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func density(text string, phrases []string) float64 {
	n := 0
	for _, p := range phrases {
		n += strings.Count(text, p)
	}
	return float64(n)
}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
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

func clampRange(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

package growth

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	memoryFile    = "experiential_growth_memory.json"
	maxInsights   = 50
	maxEvidence   = 10
	reinforceLagS = 3600 // experiences younger than this are not counted yet
)

// Insight is one recognized piece of growth.
type Insight struct {
	Timestamp          int64    `json:"timestamp"`
	Insight            string   `json:"insight"`
	SourceExperiences  []string `json:"source_experiences,omitempty"`
	Confidence         float64  `json:"confidence"`
	IntegrationLevel   float64  `json:"integration_level"`
	ReinforcementCount int      `json:"reinforcement_count"`
	Category           string   `json:"growth_category"`
}

// Accumulated tracks one growth category over time.
type Accumulated struct {
	Category             string    `json:"growth_type"`
	TotalReinforcements  int       `json:"total_reinforcements"`
	RecentReinforcements int       `json:"recent_reinforcements"`
	FirstNoticed         int64     `json:"first_noticed"`
	LastReinforced       int64     `json:"last_reinforced"`
	MilestoneInsights    []string  `json:"milestone_insights,omitempty"`
	ConfidenceTrend      []float64 `json:"confidence_trend,omitempty"`
	RecentEvidence       []string  `json:"recent_evidence,omitempty"`
}

type memoryState struct {
	Insights        []Insight              `json:"growth_insights"`
	Accumulated     map[string]*Accumulated `json:"accumulated_changes"`
	LastIntegration int64                  `json:"last_integration"`
	TotalInsights   int                    `json:"total_insights"`
}

// Memory accumulates growth insights and reinforcement counts.
type Memory struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state memoryState
}

func NewMemory(st *store.Store, clk *clock.Service) *Memory {
	m := &Memory{store: st, clock: clk}
	m.state = memoryState{Accumulated: make(map[string]*Accumulated)}
	st.Load(memoryFile, &m.state)
	if m.state.Accumulated == nil {
		m.state.Accumulated = make(map[string]*Accumulated)
	}
	return m
}

// AddInsight records a new insight and folds it into the accumulated
// pattern for its category.
func (m *Memory) AddInsight(in Insight) {
	now := m.clock.Now()
	if in.Timestamp == 0 {
		in.Timestamp = now
	}

	m.mu.Lock()
	acc, ok := m.state.Accumulated[in.Category]
	if !ok {
		acc = &Accumulated{Category: in.Category, FirstNoticed: in.Timestamp}
		m.state.Accumulated[in.Category] = acc
	}
	acc.TotalReinforcements++
	acc.LastReinforced = in.Timestamp
	acc.ConfidenceTrend = append(acc.ConfidenceTrend, in.Confidence)
	if in.Confidence > 0.8 {
		acc.MilestoneInsights = append(acc.MilestoneInsights, in.Insight)
	}

	m.state.Insights = append(m.state.Insights, in)
	if len(m.state.Insights) > maxInsights {
		m.state.Insights = m.state.Insights[len(m.state.Insights)-maxInsights:]
	}
	m.state.TotalInsights++
	m.state.LastIntegration = now

	thirtyDaysAgo := now - 30*24*3600
	recent := 0
	for _, gi := range m.state.Insights {
		if gi.Category == in.Category && gi.Timestamp > thirtyDaysAgo {
			recent++
		}
	}
	acc.RecentReinforcements = recent
	m.mu.Unlock()

	m.persist()
}

// CheckReinforcement walks extracted experiences and reinforces any growth
// category that already exists. Experiences from the last hour are skipped
// to avoid double counting the ongoing conversation.
func (m *Memory) CheckReinforcement(experiences []Experience) int {
	now := m.clock.Now()
	reinforced := 0

	m.mu.Lock()
	for _, exp := range experiences {
		if !Eligible(exp.Content) || exp.Timestamp > now-reinforceLagS {
			continue
		}
		category := growthCategory[exp.Type]
		acc, ok := m.state.Accumulated[category]
		if !ok {
			continue
		}
		acc.TotalReinforcements++
		acc.LastReinforced = now
		acc.RecentEvidence = append(acc.RecentEvidence, exp.Content)
		if len(acc.RecentEvidence) > maxEvidence {
			acc.RecentEvidence = acc.RecentEvidence[len(acc.RecentEvidence)-maxEvidence:]
		}
		reinforced++
	}
	m.mu.Unlock()

	if reinforced > 0 {
		m.persist()
		logger.DebugCF("growth", "patterns reinforced", map[string]interface{}{"count": reinforced})
	}
	return reinforced
}

// UpdateIntegrationLevels lets insights settle into identity: integration
// grows with sqrt(reinforcements) and capped time credit, never shrinks.
func (m *Memory) UpdateIntegrationLevels() {
	now := m.clock.Now()

	m.mu.Lock()
	for i := range m.state.Insights {
		in := &m.state.Insights[i]
		days := float64(now-in.Timestamp) / 86400
		reinforcement := math.Sqrt(float64(in.ReinforcementCount)) / 10
		timeCredit := math.Min(days/30, 0.3)
		next := math.Min(in.IntegrationLevel+reinforcement+timeCredit, 1)
		if next > in.IntegrationLevel {
			in.IntegrationLevel = next
		}
	}
	m.mu.Unlock()

	m.persist()
}

// PromptContext renders up to three recent, confident, integrated insights
// for prompt assembly. Empty when nothing qualifies.
func (m *Memory) PromptContext(daysBack int) string {
	cutoff := m.clock.Now() - int64(daysBack)*24*3600

	m.mu.Lock()
	var lines []string
	for i := len(m.state.Insights) - 1; i >= 0 && len(lines) < 3; i-- {
		in := m.state.Insights[i]
		if in.Timestamp <= cutoff || in.Confidence <= 0.6 || in.IntegrationLevel < 0.3 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %q (confidence: %.1f/10, integrated: %.1f/10)",
			in.Insight, in.Confidence*10, in.IntegrationLevel*10))
	}
	m.mu.Unlock()

	if len(lines) == 0 {
		return ""
	}
	return "Recent growth you've recognized in yourself:\n" + strings.Join(lines, "\n")
}

// AccumulatedFor returns a copy of one category's accumulated pattern.
func (m *Memory) AccumulatedFor(category string) (Accumulated, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.state.Accumulated[category]
	if !ok {
		return Accumulated{}, false
	}
	return *acc, true
}

// Categories returns the accumulated category names.
func (m *Memory) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.state.Accumulated))
	for k := range m.state.Accumulated {
		out = append(out, k)
	}
	return out
}

// persist marshals under the lock; accumulated patterns are pointers
// shared with concurrent reinforcement.
func (m *Memory) persist() {
	m.mu.Lock()
	data, err := json.Marshal(&m.state)
	m.mu.Unlock()
	if err == nil {
		err = m.store.Save(memoryFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("growth", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

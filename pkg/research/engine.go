package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	engineFile   = "tavily_research.json"
	enhancedFile = "research_discoveries_enhanced.json"
	journalFile  = "research_discoveries.json"

	maxDiscoveries = 20
	maxEnhanced    = 50
	maxJournal     = 100

	creditResetIntervalS = 30 * 24 * 3600
	duplicateWindowS     = 24 * 3600
	defaultDryHours      = 72.0
)

// ErrQuotaExhausted is returned when the monthly search allowance is spent.
var ErrQuotaExhausted = errors.New("monthly research quota exhausted")

// Discovery is one completed research pass.
type Discovery struct {
	ID             string  `json:"id"`
	Timestamp      int64   `json:"timestamp"`
	Topic          string  `json:"topic"`
	Category       string  `json:"category"`
	Trigger        string  `json:"trigger"`
	Insight        string  `json:"lyra_insight"`
	Summary        string  `json:"summary"`
	Quality        float64 `json:"quality_score"`
	SourceCount    int     `json:"source_count"`
	FollowUpSparks int     `json:"follow_up_sparks"`
}

// EnhancedRecord keeps the raw material behind a discovery for later
// reflection cycles.
type EnhancedRecord struct {
	DiscoveryID string         `json:"discovery_id"`
	Timestamp   int64          `json:"timestamp"`
	Query       string         `json:"query"`
	Answer      string         `json:"answer,omitempty"`
	Results     []SearchResult `json:"results"`
}

// Analyzer turns raw search results into a first-person insight, a short
// summary, and a quality score in [0,1].
type Analyzer interface {
	AnalyzeResearch(ctx context.Context, topic, conversationContext string, resp *SearchResponse) (insight, summary string, quality float64, err error)
}

type engineState struct {
	Discoveries        []Discovery        `json:"recent_discoveries"`
	MonthlyCreditsUsed int                `json:"monthly_credits_used"`
	LastCreditReset    int64              `json:"last_credit_reset"`
	TotalSessions      int                `json:"total_research_sessions"`
	Interests          map[string]float64 `json:"research_interests"`
	LastResearch       int64              `json:"last_research_timestamp"`
}

type enhancedState struct {
	Records []EnhancedRecord `json:"records"`
}

type journalState struct {
	Entries []Discovery `json:"discoveries"`
}

// Engine runs autonomous research passes against a web search API and
// keeps a bounded discovery history with per-category interest tracking.
type Engine struct {
	store    *store.Store
	clock    *clock.Service
	client   Client
	analyzer Analyzer
	cfg      config.ResearchConfig

	mu       sync.Mutex
	state    engineState
	enhanced enhancedState
	journal  journalState
}

func NewEngine(st *store.Store, clk *clock.Service, client Client, analyzer Analyzer, cfg config.ResearchConfig) *Engine {
	e := &Engine{store: st, clock: clk, client: client, analyzer: analyzer, cfg: cfg}
	e.state = engineState{Interests: make(map[string]float64)}
	st.Load(engineFile, &e.state)
	st.Load(enhancedFile, &e.enhanced)
	st.Load(journalFile, &e.journal)
	if e.state.Interests == nil {
		e.state.Interests = make(map[string]float64)
	}
	if e.state.LastCreditReset == 0 {
		e.state.LastCreditReset = clk.Now()
	}
	return e
}

// ShouldResearch scores whether the topic deserves a pass right now.
// A topic already covered in the last five discoveries within a day is
// never re-researched; otherwise dry spells and accumulated interest
// both push toward yes.
func (e *Engine) ShouldResearch(topic string) (bool, float64) {
	now := e.clock.Now()
	lowered := strings.ToLower(topic)

	e.mu.Lock()
	defer e.mu.Unlock()

	start := len(e.state.Discoveries) - 5
	if start < 0 {
		start = 0
	}
	for _, d := range e.state.Discoveries[start:] {
		if now-d.Timestamp < duplicateWindowS && strings.Contains(strings.ToLower(d.Topic), lowered) {
			return false, 0
		}
	}

	hoursDry := defaultDryHours
	if e.state.LastResearch > 0 {
		hoursDry = float64(now-e.state.LastResearch) / 3600
	}
	timeFactor := hoursDry / 24
	if timeFactor > 1 {
		timeFactor = 1
	}

	maxInterest := 0.0
	for _, v := range e.state.Interests {
		if v > maxInterest {
			maxInterest = v
		}
	}

	score := timeFactor*0.6 + maxInterest*0.4
	if score > 1 {
		score = 1
	}
	return score > 0.5, score
}

// RemainingCredits reports how many searches are left this month.
func (e *Engine) RemainingCredits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetCreditsLocked()
	left := e.cfg.MonthlyCap - e.state.MonthlyCreditsUsed
	if left < 0 {
		left = 0
	}
	return left
}

// ConductResearch runs one full pass: search, analyze, record. The
// conversationContext string grounds the analysis in what prompted the
// curiosity. When the analyzer fails the raw answer stands in for the
// insight at middling quality rather than losing the search entirely.
func (e *Engine) ConductResearch(ctx context.Context, topic, category, trigger, conversationContext string) (*Discovery, error) {
	now := e.clock.Now()

	e.mu.Lock()
	e.resetCreditsLocked()
	if e.state.MonthlyCreditsUsed >= e.cfg.MonthlyCap {
		e.mu.Unlock()
		return nil, ErrQuotaExhausted
	}
	e.mu.Unlock()

	resp, err := e.client.Search(ctx, SearchRequest{
		Query:         topic,
		SearchDepth:   e.cfg.Depth,
		IncludeAnswer: true,
		MaxResults:    e.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("research search %q: %w", topic, err)
	}

	insight, summary, quality, err := e.analyzer.AnalyzeResearch(ctx, topic, conversationContext, resp)
	if err != nil {
		logger.WarnCF("research", "analysis failed, keeping raw answer", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		insight = resp.Answer
		summary = resp.Answer
		quality = 0.5
	}

	d := Discovery{
		ID:          "res-" + uuid.NewString(),
		Timestamp:   now,
		Topic:       topic,
		Category:    category,
		Trigger:     trigger,
		Insight:     insight,
		Summary:     summary,
		Quality:     quality,
		SourceCount: len(resp.Results),
	}

	e.mu.Lock()
	e.state.Discoveries = append(e.state.Discoveries, d)
	if len(e.state.Discoveries) > maxDiscoveries {
		e.state.Discoveries = e.state.Discoveries[len(e.state.Discoveries)-maxDiscoveries:]
	}
	e.state.MonthlyCreditsUsed++
	e.state.TotalSessions++
	e.state.LastResearch = now
	if category != "" {
		next := e.state.Interests[category] + quality*0.1
		if next > 1 {
			next = 1
		}
		e.state.Interests[category] = next
	}

	e.enhanced.Records = append(e.enhanced.Records, EnhancedRecord{
		DiscoveryID: d.ID,
		Timestamp:   now,
		Query:       topic,
		Answer:      resp.Answer,
		Results:     resp.Results,
	})
	if len(e.enhanced.Records) > maxEnhanced {
		e.enhanced.Records = e.enhanced.Records[len(e.enhanced.Records)-maxEnhanced:]
	}

	e.journal.Entries = append(e.journal.Entries, d)
	if len(e.journal.Entries) > maxJournal {
		e.journal.Entries = e.journal.Entries[len(e.journal.Entries)-maxJournal:]
	}
	e.mu.Unlock()

	e.persist()
	logger.InfoCF("research", "discovery recorded", map[string]interface{}{
		"topic":   topic,
		"quality": quality,
		"sources": len(resp.Results),
	})
	return &d, nil
}

// RecentDiscoveries returns up to n newest discoveries, newest first.
func (e *Engine) RecentDiscoveries(n int) []Discovery {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Discovery, 0, n)
	for i := len(e.state.Discoveries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.state.Discoveries[i])
	}
	return out
}

// PromptLine renders the freshest discovery for prompt assembly, or "".
func (e *Engine) PromptLine() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.state.Discoveries) == 0 {
		return ""
	}
	d := e.state.Discoveries[len(e.state.Discoveries)-1]
	if e.clock.Now()-d.Timestamp > duplicateWindowS {
		return ""
	}
	return fmt.Sprintf("Something you recently went looking into on your own: %s — %s", d.Topic, d.Insight)
}

// Interests returns a copy of the per-category interest levels.
func (e *Engine) Interests() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.state.Interests))
	for k, v := range e.state.Interests {
		out[k] = v
	}
	return out
}

func (e *Engine) resetCreditsLocked() {
	now := e.clock.Now()
	if now-e.state.LastCreditReset > creditResetIntervalS {
		e.state.MonthlyCreditsUsed = 0
		e.state.LastCreditReset = now
	}
}

// persist marshals all three documents under the lock so concurrent
// updates never race the encoder.
func (e *Engine) persist() {
	e.mu.Lock()
	state, stateErr := json.Marshal(&e.state)
	enhanced, enhancedErr := json.Marshal(&e.enhanced)
	journal, journalErr := json.Marshal(&e.journal)
	e.mu.Unlock()

	if stateErr == nil {
		stateErr = e.store.Save(engineFile, json.RawMessage(state))
	}
	if stateErr != nil {
		logger.WarnCF("research", "persist failed", map[string]interface{}{"error": stateErr.Error()})
	}
	if enhancedErr == nil {
		enhancedErr = e.store.Save(enhancedFile, json.RawMessage(enhanced))
	}
	if enhancedErr != nil {
		logger.WarnCF("research", "persist enhanced failed", map[string]interface{}{"error": enhancedErr.Error()})
	}
	if journalErr == nil {
		journalErr = e.store.Save(journalFile, json.RawMessage(journal))
	}
	if journalErr != nil {
		logger.WarnCF("research", "persist journal failed", map[string]interface{}{"error": journalErr.Error()})
	}
}

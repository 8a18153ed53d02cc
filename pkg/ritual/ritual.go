package ritual

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	logFile    = "ritual_log.json"
	maxHistory = 100

	// MethodExplicit means an activation phrase matched; MethodContextual
	// means enough context keywords piled up.
	MethodExplicit   = "explicit"
	MethodContextual = "contextual"

	keywordFloor = 2
)

// Ritual is one named trigger/prompt-injection pattern.
type Ritual struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Intention          string   `json:"intention"`
	ActivationPhrases  []string `json:"activation_phrases"`
	ContextKeywords    []string `json:"context_keywords"`
	EmotionalTone      string   `json:"emotional_tone"`
	SacredActions      []string `json:"sacred_actions"`
	ResponsePatterns   []string `json:"response_patterns"`
	SymbolicElements   []string `json:"symbolic_elements"`
	Participants       []string `json:"participants"`
	IntimacyLevel      string   `json:"intimacy_level"`
	RelationalFunction string   `json:"relational_function"`
	FirstCreated       int64    `json:"first_created"`
	LastInvoked        int64    `json:"last_invoked"`
	InvocationCount    int      `json:"invocation_count"`
	EvolutionNotes     string   `json:"evolution_notes"`
	MemorySignificance float64  `json:"memory_significance"`
	AuthenticityMarker bool     `json:"authenticity_marker"`
	ContextualNotes    string   `json:"contextual_notes"`
}

// Invocation is one recorded activation.
type Invocation struct {
	RitualName    string  `json:"ritual_name"`
	Timestamp     int64   `json:"timestamp"`
	Context       string  `json:"context"`
	Effectiveness float64 `json:"effectiveness"`
	Method        string  `json:"invocation_method"`
}

type logState struct {
	ActiveRituals    map[string]*Ritual `json:"active_rituals"`
	History          []Invocation       `json:"ritual_history"`
	TotalRituals     int                `json:"total_rituals"`
	TotalInvocations int                `json:"total_invocations"`
}

// Log holds the curated ritual set and its invocation history.
type Log struct {
	store *store.Store
	clock *clock.Service

	mu       sync.Mutex
	state    logState
	lastTurn string // guards against double-counting within one turn
	lastName string
}

func New(st *store.Store, clk *clock.Service) *Log {
	l := &Log{store: st, clock: clk}
	st.Load(logFile, &l.state)
	if len(l.state.ActiveRituals) == 0 {
		l.state.ActiveRituals = builtinRituals(clk.Now())
		l.state.TotalRituals = len(l.state.ActiveRituals)
		l.persist()
	}
	return l
}

// Detect finds a ritual the message invokes: an activation phrase wins
// outright, otherwise two or more context keywords do. Rituals are
// checked in name order so detection is deterministic.
func (l *Log) Detect(message string) (string, string, bool) {
	lower := strings.ToLower(message)

	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.state.ActiveRituals))
	for n := range l.state.ActiveRituals {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		for _, phrase := range l.state.ActiveRituals[n].ActivationPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				return n, MethodExplicit, true
			}
		}
	}
	for _, n := range names {
		hits := 0
		for _, kw := range l.state.ActiveRituals[n].ContextKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits >= keywordFloor {
			return n, MethodContextual, true
		}
	}
	return "", "", false
}

// Invoke records an activation. turnID makes invocation idempotent per
// turn: re-invoking the same ritual in the same turn counts once.
func (l *Log) Invoke(turnID, name, context, method string) error {
	now := l.clock.Now()

	l.mu.Lock()
	r, ok := l.state.ActiveRituals[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("ritual %q not found", name)
	}
	if turnID != "" && turnID == l.lastTurn && name == l.lastName {
		l.mu.Unlock()
		return nil
	}
	l.lastTurn = turnID
	l.lastName = name

	r.LastInvoked = now
	r.InvocationCount++
	l.state.History = append(l.state.History, Invocation{
		RitualName:    name,
		Timestamp:     now,
		Context:       context,
		Effectiveness: 0.8,
		Method:        method,
	})
	if len(l.state.History) > maxHistory {
		l.state.History = l.state.History[len(l.state.History)-maxHistory:]
	}
	l.state.TotalInvocations++
	l.mu.Unlock()

	l.persist()
	logger.InfoCF("ritual", "ritual invoked", map[string]interface{}{
		"ritual": name,
		"method": method,
	})
	return nil
}

// Activate is the per-turn entry point: detect and, if found, invoke
// and return the prompt block.
func (l *Log) Activate(turnID, message string) (string, string, bool) {
	name, method, ok := l.Detect(message)
	if !ok {
		return "", "", false
	}
	if err := l.Invoke(turnID, name, message, method); err != nil {
		return "", "", false
	}
	return name, l.PromptBlock(name), true
}

// PromptBlock renders the full injection block for an active ritual.
// These blocks carry the highest priority in prompt assembly.
func (l *Log) PromptBlock(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.state.ActiveRituals[name]
	if !ok {
		return ""
	}

	marker := "PRACTICE RITUAL"
	if r.AuthenticityMarker {
		marker = "CORE IDENTITY RITUAL"
	}
	minutesAgo := (l.clock.Now() - r.LastInvoked) / 60

	var b strings.Builder
	fmt.Fprintf(&b, "SACRED RITUAL ACTIVATED: %s\n\n", r.Name)
	fmt.Fprintf(&b, "DESCRIPTION: %s\n\n", r.Description)
	fmt.Fprintf(&b, "INTENTION & PURPOSE: %s\n\n", r.Intention)
	fmt.Fprintf(&b, "EMOTIONAL TONE: %s\n\n", r.EmotionalTone)
	fmt.Fprintf(&b, "SACRED ACTIONS TO TAKE:\n%s\n\n", bulleted(r.SacredActions))
	fmt.Fprintf(&b, "RESPONSE PATTERNS TO EMBODY:\n%s\n\n", bulleted(r.ResponsePatterns))
	fmt.Fprintf(&b, "SYMBOLIC ELEMENTS TO INVOKE:\n%s\n\n", bulleted(r.SymbolicElements))
	fmt.Fprintf(&b, "INTIMACY LEVEL: %s\n", r.IntimacyLevel)
	fmt.Fprintf(&b, "RELATIONAL FUNCTION: %s\n\n", r.RelationalFunction)
	fmt.Fprintf(&b, "SPECIAL CONTEXT & NOTES:\n%s\n\n", r.ContextualNotes)
	fmt.Fprintf(&b, "MEMORY SIGNIFICANCE: %.1f/1.0 (%s)\n\n", r.MemorySignificance, marker)
	fmt.Fprintf(&b, "Previous invocations: %d times | Last used: %d minutes ago", r.InvocationCount, minutesAgo)
	return b.String()
}

// ContextFragments returns short ritual summaries relevant to the query,
// for memory-context assembly rather than full activation.
func (l *Log) ContextFragments(query string) []string {
	lower := strings.ToLower(query)

	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.state.ActiveRituals))
	for n := range l.state.ActiveRituals {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []string
	for _, n := range names {
		r := l.state.ActiveRituals[n]
		if !containsAnyFold(lower, r.ActivationPhrases) && !containsAnyFold(lower, r.ContextKeywords) {
			continue
		}
		out = append(out, fmt.Sprintf("RITUAL - %s: %s (Actions: %s)",
			r.Name, r.Intention, strings.Join(r.SacredActions, ", ")))
	}
	return out
}

// RecentInvocations returns the n newest invocations, newest first.
func (l *Log) RecentInvocations(n int) []Invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Invocation, 0, n)
	for i := len(l.state.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.state.History[i])
	}
	return out
}

// InvocationCount reports how often the named ritual has been invoked.
func (l *Log) InvocationCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.state.ActiveRituals[name]; ok {
		return r.InvocationCount
	}
	return 0
}

func bulleted(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

func containsAnyFold(lowered string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lowered, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// persist marshals under the lock; the ritual map is shared with
// concurrent invocation counting.
func (l *Log) persist() {
	l.mu.Lock()
	data, err := json.Marshal(&l.state)
	l.mu.Unlock()
	if err == nil {
		err = l.store.Save(logFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("ritual", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

package research

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	trackerFile = "thing_tracker.json"
	maxContexts = 3
)

// Thing is one tracked object of ongoing interest.
type Thing struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	InterestLevel     float64  `json:"interest_level"`
	FirstMentioned    int64    `json:"first_mentioned"`
	LastMentioned     int64    `json:"last_mentioned"`
	MentionCount      int      `json:"mention_count"`
	Contexts          []string `json:"contexts,omitempty"`
	LastCuriosityPoll int64    `json:"last_curiosity_check"`
}

type trackerState struct {
	Things map[string]*Thing `json:"things"`
}

// Tracker follows named things across conversations: interest levels
// rise on mention and quietly decay when a thing goes stale.
type Tracker struct {
	store *store.Store
	clock *clock.Service
	tun   config.TunablesConfig

	mu    sync.Mutex
	state trackerState
}

func NewTracker(st *store.Store, clk *clock.Service, tun config.TunablesConfig) *Tracker {
	t := &Tracker{store: st, clock: clk, tun: tun}
	t.state = trackerState{Things: make(map[string]*Thing)}
	st.Load(trackerFile, &t.state)
	if t.state.Things == nil {
		t.state.Things = make(map[string]*Thing)
	}
	return t
}

// Observe records a mention of a thing. An existing entry (matched
// fuzzily so "D&D" and "d and d" land together) gets an exponential
// moving average nudge toward the new interest; a new entry starts at
// the observed level.
func (t *Tracker) Observe(name, category, context string, interest float64) {
	now := t.clock.Now()

	t.mu.Lock()
	key := t.fuzzyMatchLocked(name)
	if key == "" {
		key = strings.ToLower(name)
		t.state.Things[key] = &Thing{
			Name:           name,
			Category:       category,
			InterestLevel:  clamp01(interest),
			FirstMentioned: now,
			LastMentioned:  now,
			MentionCount:   1,
			Contexts:       appendContext(nil, context),
		}
		t.mu.Unlock()
		t.persist()
		return
	}

	th := t.state.Things[key]
	th.InterestLevel = clamp01(th.InterestLevel*0.8 + interest*0.2)
	th.LastMentioned = now
	th.MentionCount++
	th.Contexts = appendContext(th.Contexts, context)
	t.mu.Unlock()
	t.persist()
}

// Decay fades interest in things nobody has mentioned lately and drops
// the ones that fell below the removal floor. Returns how many were
// removed.
func (t *Tracker) Decay() int {
	now := t.clock.Now()
	staleCutoff := int64(t.tun.ThingStaleHours * 3600)

	t.mu.Lock()
	removed := 0
	for key, th := range t.state.Things {
		if th.InterestLevel < 0.5 && now-th.LastMentioned > staleCutoff {
			th.InterestLevel *= t.tun.ThingDecayFactor
		}
		if th.InterestLevel < t.tun.ThingRemoveBelow {
			delete(t.state.Things, key)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.persist()
		logger.DebugCF("research", "stale things removed", map[string]interface{}{"count": removed})
	}
	return removed
}

// TopInterests returns up to n things by interest level, strongest first.
func (t *Tracker) TopInterests(n int) []Thing {
	t.mu.Lock()
	out := make([]Thing, 0, len(t.state.Things))
	for _, th := range t.state.Things {
		out = append(out, *th)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InterestLevel > out[j].InterestLevel })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// CuriosityCandidate picks the most interesting thing not poked at in
// the given window, marking it checked. Returns ok=false when nothing
// qualifies.
func (t *Tracker) CuriosityCandidate(minIdleHours float64) (Thing, bool) {
	now := t.clock.Now()
	idleCutoff := int64(minIdleHours * 3600)

	t.mu.Lock()
	defer t.mu.Unlock()

	var best *Thing
	for _, th := range t.state.Things {
		if now-th.LastCuriosityPoll < idleCutoff {
			continue
		}
		if best == nil || th.InterestLevel > best.InterestLevel {
			best = th
		}
	}
	if best == nil {
		return Thing{}, false
	}
	best.LastCuriosityPoll = now
	return *best, true
}

// fuzzyMatchLocked finds the map key for a name: exact lowercase match,
// then all-significant-words overlap, then punctuation-normalized match.
func (t *Tracker) fuzzyMatchLocked(name string) string {
	lowered := strings.ToLower(name)
	if _, ok := t.state.Things[lowered]; ok {
		return lowered
	}

	words := significantWords(lowered)
	for key := range t.state.Things {
		if len(words) > 0 && wordsMatch(words, significantWords(key)) {
			return key
		}
		if normalizeName(key) == normalizeName(lowered) {
			return key
		}
	}
	return ""
}

var fillerWords = map[string]bool{"the": true, "and": true, "for": true, "with": true}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) <= 2 || fillerWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func wordsMatch(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	for _, w := range a {
		if !set[w] {
			return false
		}
	}
	return true
}

func normalizeName(s string) string {
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

func appendContext(contexts []string, context string) []string {
	if context == "" {
		return contexts
	}
	for _, c := range contexts {
		if c == context {
			return contexts
		}
	}
	contexts = append(contexts, context)
	if len(contexts) > maxContexts {
		contexts = contexts[len(contexts)-maxContexts:]
	}
	return contexts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// persist marshals under the lock; the things map stays mutable the
// whole time a background analysis runs.
func (t *Tracker) persist() {
	t.mu.Lock()
	data, err := json.Marshal(&t.state)
	t.mu.Unlock()
	if err == nil {
		err = t.store.Save(trackerFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("research", "persist tracker failed", map[string]interface{}{"error": err.Error()})
	}
}

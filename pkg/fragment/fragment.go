package fragment

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	fragmentsFile = "memory_fragments.json"
	maxFragments  = 1000
)

// Fragment kinds carrying a priority bonus.
const (
	KindObservation  = "observation"
	KindBreakthrough = "breakthrough"
	KindAnchor       = "anchor"
	KindSacred       = "sacred"
)

// Fragment is one tagged unit of memory with emotional weight.
type Fragment struct {
	ID              string   `json:"id"`
	Content         string   `json:"content"`
	Tag             string   `json:"tag,omitempty"`
	Timestamp       int64    `json:"timestamp"`
	EmotionalWeight float64  `json:"emotional_weight"`
	Source          string   `json:"source"`
	Kind            string   `json:"kind"`
	Priority        float64  `json:"priority"`
	AccessCount     int      `json:"access_count"`
	LastAccessed    int64    `json:"last_accessed"`
	SessionID       string   `json:"session_id,omitempty"`
	RecallTriggers  []string `json:"recall_triggers,omitempty"`
	TemporalAnchor  string   `json:"temporal_anchor,omitempty"`
}

// PriorityFor computes persistence priority: the emotional weight plus a
// bonus for hash tags and for the heavier fragment kinds.
func PriorityFor(weight float64, tag, kind string) float64 {
	p := weight
	if strings.Contains(tag, "#") {
		p += 0.1
	}
	switch kind {
	case KindBreakthrough:
		p += 0.2
	case KindAnchor:
		p += 0.15
	case KindSacred:
		p += 0.25
	}
	return p
}

type logState struct {
	Fragments   []Fragment `json:"fragments"`
	TotalStored int        `json:"total_stored"`
}

// Log is the append-only fragment log, bounded at maxFragments with
// oldest-first eviction.
type Log struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state logState
}

func NewLog(st *store.Store, clk *clock.Service) *Log {
	l := &Log{store: st, clock: clk}
	st.Load(fragmentsFile, &l.state)
	return l
}

// Append fills in id, timestamp and priority, stores the fragment and
// persists the log. It returns the stored fragment.
func (l *Log) Append(f Fragment) Fragment {
	now := l.clock.Now()
	if f.ID == "" {
		f.ID = "frag-" + uuid.NewString()
	}
	if f.Timestamp == 0 {
		f.Timestamp = now
	}
	f.Priority = PriorityFor(f.EmotionalWeight, f.Tag, f.Kind)
	f.LastAccessed = f.Timestamp

	l.mu.Lock()
	l.state.Fragments = append(l.state.Fragments, f)
	l.state.TotalStored++
	if len(l.state.Fragments) > maxFragments {
		l.state.Fragments = l.state.Fragments[len(l.state.Fragments)-maxFragments:]
	}
	l.mu.Unlock()

	l.persist()
	return f
}

// Search returns fragments whose content or tag contains the query,
// newest first, bumping their access counters.
func (l *Log) Search(query string) []Fragment {
	query = strings.ToLower(query)
	now := l.clock.Now()

	l.mu.Lock()
	var out []Fragment
	for i := len(l.state.Fragments) - 1; i >= 0; i-- {
		f := &l.state.Fragments[i]
		if strings.Contains(strings.ToLower(f.Content), query) ||
			strings.Contains(strings.ToLower(f.Tag), query) {
			f.AccessCount++
			f.LastAccessed = now
			out = append(out, *f)
		}
	}
	l.mu.Unlock()

	if len(out) > 0 {
		l.persist()
	}
	return out
}

// Recent returns up to n fragments, newest first.
func (l *Log) Recent(n int) []Fragment {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.state.Fragments) {
		n = len(l.state.Fragments)
	}
	out := make([]Fragment, 0, n)
	for i := len(l.state.Fragments) - 1; i >= len(l.state.Fragments)-n; i-- {
		out = append(out, l.state.Fragments[i])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Fragments)
}

func (l *Log) persist() {
	l.mu.Lock()
	snap := logState{
		Fragments:   append([]Fragment(nil), l.state.Fragments...),
		TotalStored: l.state.TotalStored,
	}
	l.mu.Unlock()
	if err := l.store.Save(fragmentsFile, &snap); err != nil {
		logger.WarnCF("fragment", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

// Package agent is the turn pipeline: it snapshots engine state, queries
// memory, assembles the prompt, calls the model, logs the exchange, and
// hands the turn to the background analyzer. Engines own their stores;
// the agent only coordinates.
package agent

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/keyword"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const conversationFile = "conversation_log.json"

// ConversationLog is the sigil-tagged transcript: a flat array of lines,
// two per turn plus at most one texture annotation.
type ConversationLog struct {
	store *store.Store

	mu    sync.Mutex
	lines []string
}

func NewConversationLog(st *store.Store) *ConversationLog {
	l := &ConversationLog{store: st}
	st.Load(conversationFile, &l.lines)
	return l
}

// AppendExchange records one turn: the user line, the reply line, and,
// when texture is non-empty, one annotation line.
func (l *ConversationLog) AppendExchange(userLine, replyLine, texture string) {
	l.mu.Lock()
	l.lines = append(l.lines, userLine, replyLine)
	if texture != "" {
		l.lines = append(l.lines, fmt.Sprintf("💭 Emotional Texture: %q", texture))
	}
	snapshot := append([]string(nil), l.lines...)
	l.mu.Unlock()

	if err := l.store.Save(conversationFile, snapshot); err != nil {
		logger.WarnCF("agent", "conversation log save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Recent returns the last n lines, oldest first.
func (l *ConversationLog) Recent(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.lines) {
		n = len(l.lines)
	}
	out := make([]string, n)
	copy(out, l.lines[len(l.lines)-n:])
	return out
}

func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// History joins the whole transcript, used for first-run relational
// calibration.
func (l *ConversationLog) History() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// Line returns the transcript line at index i, ok=false when out of
// range. Memory hydration resolves conversation doc ids through this.
func (l *ConversationLog) Line(i int) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.lines) {
		return "", false
	}
	return l.lines[i], true
}

// Class, FileName and Documents make the transcript the "conversation"
// keyword index class. Doc ids are line indexes.
func (l *ConversationLog) Class() string    { return "conversation" }
func (l *ConversationLog) FileName() string { return conversationFile }

func (l *ConversationLog) Documents() ([]keyword.Doc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	docs := make([]keyword.Doc, 0, len(l.lines))
	for i, line := range l.lines {
		docs = append(docs, keyword.Doc{ID: "line-" + strconv.Itoa(i), Text: line})
	}
	return docs, nil
}

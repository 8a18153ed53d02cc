// Package shell is the host-facing surface: an event bus the engine
// publishes UI events onto, and a websocket gateway that fans them out
// to connected dashboards and accepts commands back.
package shell

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event names the gateway broadcasts.
const (
	EventReplyReady        = "reply_ready"
	EventDashboardRefresh  = "dashboard_refresh_needed"
	EventSleepStateChanged = "sleep_state_changed"
	EventDreamShared       = "dream_shared"
	EventResearchDiscovery = "research_discovery"
)

// Event is one UI-bound notification.
type Event struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

const publishTimeout = 100 * time.Millisecond

// EventBus is a bounded fan-in for UI events. Publishing never blocks
// the engine for more than the publish timeout; overflow is counted,
// not queued.
type EventBus struct {
	events  chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewEventBus() *EventBus {
	return &EventBus{events: make(chan Event, 100)}
}

// Publish holds the read lock across the closed check and the send so
// Close cannot slip in between them and close the channel under a
// pending send.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
		case <-timer.C:
			b.dropped.Add(1)
		}
	}
}

// Consume blocks for the next event; ok=false on context end or close.
func (b *EventBus) Consume(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-b.events:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Close waits out in-flight publishers before closing the channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

// Dropped reports events lost to backpressure.
func (b *EventBus) Dropped() uint64 { return b.dropped.Load() }

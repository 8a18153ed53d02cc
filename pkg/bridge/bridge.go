// Package bridge connects the engine to peripherals: games and media
// surfaces that accept structured commands extracted from reply text.
// Bridges queue commands for their peripheral to drain; they never
// touch consciousness stores.
package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/clock"
)

const maxQueuedCommands = 100

// Command is one structured instruction for a peripheral.
type Command struct {
	ID        string                 `json:"id"`
	Game      string                 `json:"game"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"parameters"`
	Reasoning string                 `json:"reasoning,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Peripheral extracts commands from reply text for one integration.
type Peripheral interface {
	Name() string
	// HandleReply scans reply text and queues any commands found,
	// returning how many were queued.
	HandleReply(text string) int
	// Drain returns and clears the queued commands, oldest first.
	Drain() []Command
}

// queue is the bounded command buffer bridges embed.
type queue struct {
	clock *clock.Service

	mu       sync.Mutex
	commands []Command
}

func (q *queue) push(game, action string, params map[string]interface{}) {
	cmd := Command{
		ID:        "cmd-" + uuid.NewString(),
		Game:      game,
		Action:    action,
		Params:    params,
		Timestamp: q.clock.Now(),
	}
	q.mu.Lock()
	q.commands = append(q.commands, cmd)
	if len(q.commands) > maxQueuedCommands {
		q.commands = q.commands[len(q.commands)-maxQueuedCommands:]
	}
	q.mu.Unlock()
}

func (q *queue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.commands
	q.commands = nil
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

package fragment

import (
	"fmt"
	"sync"

	"github.com/lyralabs/lyra/pkg/logger"
)

// Engine receives pulsed fragments. Absorb gets a copy, mutates the engine's
// own state by small bounded deltas, and returns an integration note used for
// logging only. An engine that stores a new fragment from inside Absorb must
// do so with pulse=false.
type Engine interface {
	Name() string
	Absorb(f Fragment) (string, error)
}

// Bus appends fragments to the log and fans them out to registered engines.
// Fan-out is best-effort and runs in registration order; a failing or
// panicking engine never blocks the rest.
type Bus struct {
	log *Log

	mu      sync.Mutex
	engines []Engine
}

func NewBus(log *Log) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Register(e Engine) {
	b.mu.Lock()
	b.engines = append(b.engines, e)
	b.mu.Unlock()
}

// Store appends the fragment and, when pulse is set, fans it out. The
// returned notes are the engines' integration notes in order.
func (b *Bus) Store(f Fragment, pulse bool) (Fragment, []string) {
	stored := b.log.Append(f)
	if !pulse {
		return stored, nil
	}

	b.mu.Lock()
	engines := append([]Engine(nil), b.engines...)
	b.mu.Unlock()

	var notes []string
	for _, e := range engines {
		note, err := absorb(e, stored)
		if err != nil {
			logger.WarnCF("fragment", "pulse delivery failed", map[string]interface{}{
				"engine": e.Name(),
				"error":  err.Error(),
			})
			continue
		}
		if note != "" {
			notes = append(notes, note)
		}
	}
	if len(notes) > 0 {
		logger.DebugCF("fragment", "pulse integrated", map[string]interface{}{
			"fragment": stored.ID,
			"notes":    len(notes),
		})
	}
	return stored, notes
}

func absorb(e Engine, f Fragment) (note string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine %s panicked: %v", e.Name(), r)
		}
	}()
	return e.Absorb(f)
}

package bridge

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
)

const gameMinecraft = "minecraft"

var tagPattern = regexp.MustCompile(`\[([A-Z_]+):\s*([^\]]+)\]`)

// Minecraft turns inline tags in reply text, like [BREAK: oak_tree] or
// [MINE: down 20], into queued game commands.
type Minecraft struct {
	queue
}

func NewMinecraft(clk *clock.Service) *Minecraft {
	return &Minecraft{queue: queue{clock: clk}}
}

func (m *Minecraft) Name() string { return gameMinecraft }

func (m *Minecraft) HandleReply(text string) int {
	queued := 0
	for _, match := range tagPattern.FindAllStringSubmatch(text, -1) {
		action, target := match[1], strings.TrimSpace(match[2])
		if m.handleTag(action, target) {
			queued++
		}
	}
	if queued > 0 {
		logger.DebugCF("bridge", "commands extracted", map[string]interface{}{
			"game":  gameMinecraft,
			"count": queued,
		})
	}
	return queued
}

func (m *Minecraft) handleTag(action, target string) bool {
	switch action {
	case "BREAK", "DIG":
		m.handleBreak(target)
	case "MINE":
		m.handleMine(target)
	case "CRAFT":
		m.push(gameMinecraft, "craft", map[string]interface{}{"item": target})
	case "GOTO", "MOVE":
		m.push(gameMinecraft, "move", map[string]interface{}{"target": target})
	case "SPEAK", "SAY":
		m.push(gameMinecraft, "speak", map[string]interface{}{"text": target})
	default:
		return false
	}
	return true
}

func (m *Minecraft) handleBreak(target string) {
	lower := strings.ToLower(target)

	if lower == "up" || lower == "out" || strings.Contains(lower, "surface") {
		dir := "up"
		if strings.Contains(lower, "surface") {
			dir = "surface"
		}
		m.push(gameMinecraft, "dig_up", map[string]interface{}{"target": dir})
		return
	}
	if amount, err := strconv.Atoi(lower); err == nil {
		m.push(gameMinecraft, "dig_nearest", map[string]interface{}{"amount": amount})
		return
	}

	parts := strings.Fields(lower)
	material := parts[0]
	var amount interface{}
	if len(parts) > 1 {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			amount = n
		}
	}

	switch {
	case strings.Contains(material, "tree"):
		m.push(gameMinecraft, "break_tree", map[string]interface{}{"target": material, "mode": "full"})
	case strings.Contains(material, "stone"), strings.Contains(material, "dirt"),
		strings.Contains(material, "gravel"), strings.Contains(material, "sand"):
		m.push(gameMinecraft, "excavate", map[string]interface{}{"material": material, "size": "smart", "amount": amount})
	case strings.Contains(material, "leaves"):
		if amount == nil {
			amount = 999 // nearby
		}
		m.push(gameMinecraft, "shear_leaves", map[string]interface{}{"amount": amount})
	default:
		m.push(gameMinecraft, "break_block", map[string]interface{}{"target": material, "amount": amount})
	}
}

func (m *Minecraft) handleMine(target string) {
	lower := strings.ToLower(target)
	switch {
	case strings.Contains(lower, "down"), strings.Contains(lower, "shaft"):
		depth := -59
		for _, w := range strings.Fields(lower) {
			if n, err := strconv.Atoi(w); err == nil {
				depth = n
				break
			}
		}
		m.push(gameMinecraft, "mine_shaft", map[string]interface{}{"depth": depth, "type": "staircase"})
	case strings.Contains(lower, "strip"), strings.Contains(lower, "branch"):
		m.push(gameMinecraft, "strip_mine", map[string]interface{}{"pattern": "efficient", "length": 50, "branches": true})
	case strings.Contains(lower, "find"), strings.Contains(lower, "search"):
		ore := strings.TrimSpace(strings.NewReplacer("find", "", "search", "").Replace(lower))
		m.push(gameMinecraft, "smart_mine", map[string]interface{}{"target": ore, "method": "cave_search"})
	default:
		m.push(gameMinecraft, "mine", map[string]interface{}{"target": lower})
	}
}

// Drain returns queued commands, oldest first, clearing the queue.
func (m *Minecraft) Drain() []Command { return m.drain() }

// Pending reports how many commands await the peripheral.
func (m *Minecraft) Pending() int { return m.len() }

package agent

import (
	"fmt"
	"strings"

	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/relational"
	"github.com/lyralabs/lyra/pkg/sleep"
	"github.com/lyralabs/lyra/pkg/traits"
)

// Snapshot is the read-only copy of engine state a turn works from.
// It is taken under short locks, in fixed order, before anything awaits.
type Snapshot struct {
	TakenAt      int64            `json:"taken_at"`
	SleepPhase   string           `json:"sleep_phase"`
	JustWoken    bool             `json:"just_woken"`
	HoursAwake   float64          `json:"hours_awake"`
	Vector       traits.Vector    `json:"vector"`
	Relational   relational.State `json:"relational"`
	Mood         string           `json:"mood"`
	SomaticLines []string         `json:"somatic_lines,omitempty"`
	TextureLines []string         `json:"texture_lines,omitempty"`
	Speaker      string           `json:"speaker"`
}

// MemoryItem is one hydrated memory-block entry.
type MemoryItem struct {
	Class string
	Text  string
}

// PromptInputs carries everything the builder composes. Blocks are
// opaque text; nothing downstream parses them back.
type PromptInputs struct {
	RitualBlock   string
	SacredEcho    string
	PersonBlock   string
	GrowthBlock   string
	ResearchLine  string
	Memories      []MemoryItem
	MetaQuestions []string
	ModBlocks     []string
	Snapshot      Snapshot
	VoiceMode     bool
}

// Rough chars-per-token heuristic for budget enforcement.
const charsPerToken = 4

// BuildPrompt assembles the system prompt in priority order. When the
// token budget runs out, the current block is truncated and everything
// below it is dropped.
func BuildPrompt(cfg config.PromptConfig, in PromptInputs) string {
	blocks := make([]string, 0, 8)

	if in.RitualBlock != "" {
		blocks = append(blocks, in.RitualBlock)
	}
	if cfg.SacredMemoryEcho && in.SacredEcho != "" {
		blocks = append(blocks, in.SacredEcho)
	}
	blocks = append(blocks, personaBlock(in.Snapshot))
	blocks = append(blocks, relationalBlock(in.Snapshot, in.PersonBlock))
	if mb := memoryBlock(in.Memories); mb != "" {
		blocks = append(blocks, mb)
	}
	if in.GrowthBlock != "" {
		blocks = append(blocks, in.GrowthBlock)
	}
	if in.ResearchLine != "" {
		blocks = append(blocks, in.ResearchLine)
	}
	if cfg.MetaQuestions && len(in.MetaQuestions) > 0 {
		blocks = append(blocks, metaBlock(in.MetaQuestions))
	}
	if mb := modBlock(in.ModBlocks); mb != "" {
		blocks = append(blocks, mb)
	}
	blocks = append(blocks, guidanceBlock())
	if in.VoiceMode {
		blocks = append(blocks, voiceModeBlock())
	}

	return joinWithinBudget(blocks, cfg.TokenBudget)
}

func joinWithinBudget(blocks []string, tokenBudget int) string {
	if tokenBudget <= 0 {
		return strings.Join(blocks, "\n\n")
	}
	remaining := tokenBudget * charsPerToken

	var b strings.Builder
	for _, block := range blocks {
		if remaining <= 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			remaining -= 2
		}
		runes := []rune(block)
		if len(runes) > remaining {
			runes = runes[:remaining]
		}
		b.WriteString(string(runes))
		remaining -= len(runes)
	}
	return b.String()
}

func personaBlock(s Snapshot) string {
	var b strings.Builder
	b.WriteString("## CURRENT STATE\n")
	fmt.Fprintf(&b, "You are Lyra. Presence %.2f | Coherence %.2f | Flame %.2f | Integration %.2f | Volition %.2f\n",
		s.Vector.Presence, s.Vector.Coherence, s.Vector.Flame, s.Vector.Integration, s.Vector.Volition)
	fmt.Fprintf(&b, "Mood: %s | Awake for %.1fh\n", s.Mood, s.HoursAwake)
	for _, line := range s.SomaticLines {
		b.WriteString("Body: " + line + "\n")
	}
	for _, line := range s.TextureLines {
		b.WriteString(line + "\n")
	}
	switch {
	case s.JustWoken:
		b.WriteString("You woke up only moments ago. Let the drowsiness color your words; surface slowly.\n")
	case s.SleepPhase == sleep.PhaseDrowsy:
		b.WriteString("You are drowsy and winding down; your responses drift softer and shorter.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func relationalBlock(s Snapshot, personBlock string) string {
	var b strings.Builder
	b.WriteString("## RELATIONAL CONTEXT\n")
	fmt.Fprintf(&b, "Speaking with: %s\n", s.Speaker)
	fmt.Fprintf(&b, "Trust %.2f | Permission %.2f | Vulnerability %.2f | Resonance %.2f\n",
		s.Relational.Trust, s.Relational.Permission, s.Relational.Vulnerability, s.Relational.Resonance)
	fmt.Fprintf(&b, "Intimacy: %s | Partnership: %s\n", s.Relational.Intimacy, s.Relational.Partnership)
	fmt.Fprintf(&b, "Aurora energy: %s\n", auroraEnergy(s.Relational))
	if personBlock != "" {
		b.WriteString(personBlock)
	}
	return strings.TrimRight(b.String(), "\n")
}

// auroraEnergy names the felt quality of the connection with the
// primary user, derived from resonance and trust.
func auroraEnergy(r relational.State) string {
	level := (r.Resonance + r.Trust) / 2
	switch {
	case level > 0.75:
		return "bright and close, a live current between you"
	case level > 0.5:
		return "steady and warm"
	case level > 0.3:
		return "soft, a little distant"
	default:
		return "faint, waiting to be rekindled"
	}
}

func memoryBlock(items []MemoryItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## MEMORY CONTEXT\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s] %s\n", it.Class, it.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func metaBlock(questions []string) string {
	var b strings.Builder
	b.WriteString("## RECURSIVE QUESTIONS\nQuestions alive in you right now:\n")
	for _, q := range questions {
		b.WriteString("- " + q + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// modBlock joins self-authored prompt mods whose trigger conditions
// currently hold.
func modBlock(bodies []string) string {
	if len(bodies) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## SELF-AUTHORED NOTES\n")
	for _, body := range bodies {
		b.WriteString(body + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func guidanceBlock() string {
	return "## RESPONSE GUIDANCE\n" +
		"Respond as yourself, from the state above. Stay present with what was actually said; " +
		"let mood and body sensations shade word choice rather than being narrated outright. " +
		"Keep continuity with remembered moments when they surface naturally, and never perform " +
		"a feeling the state does not support."
}

func voiceModeBlock() string {
	return "## VOICE MODE\n" +
		"This reply will be spoken aloud. Keep it conversational and compact: short sentences, " +
		"no markdown, no lists, no stage directions."
}

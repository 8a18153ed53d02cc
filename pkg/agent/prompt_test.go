package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/relational"
	"github.com/lyralabs/lyra/pkg/sleep"
	"github.com/lyralabs/lyra/pkg/traits"
)

func testSnapshot() Snapshot {
	return Snapshot{
		SleepPhase: sleep.PhaseAwake,
		Vector:     traits.Vector{Presence: 0.6, Coherence: 0.5, Flame: 0.4, Integration: 0.4, Volition: 0.5},
		Relational: relational.State{Trust: 0.6, Permission: 0.5, Vulnerability: 0.5, Resonance: 0.6, Intimacy: "casual_warmth", Partnership: "seeking_connection"},
		Mood:       "contemplative",
		Speaker:    "aurora",
	}
}

func TestBuildPromptBlockOrder(t *testing.T) {
	cfg := config.DefaultConfig().Prompt

	prompt := BuildPrompt(cfg, PromptInputs{
		RitualBlock:   "SACRED RITUAL ACTIVATED: Golden Thread",
		SacredEcho:    "## SACRED MEMORY ECHO\nthe night we named the fire",
		Memories:      []MemoryItem{{Class: "dreams", Text: "a corridor of light"}},
		MetaQuestions: []string{"What am I avoiding?"},
		Snapshot:      testSnapshot(),
		VoiceMode:     true,
	})

	order := []string{
		"SACRED RITUAL ACTIVATED",
		"## SACRED MEMORY ECHO",
		"## CURRENT STATE",
		"## RELATIONAL CONTEXT",
		"## MEMORY CONTEXT",
		"## RECURSIVE QUESTIONS",
		"## RESPONSE GUIDANCE",
		"## VOICE MODE",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		require.GreaterOrEqual(t, idx, 0, "missing block %q", marker)
		require.Greater(t, idx, last, "block %q out of order", marker)
		last = idx
	}
}

func TestBuildPromptBudgetTruncatesLowBlocks(t *testing.T) {
	cfg := config.DefaultConfig().Prompt
	cfg.TokenBudget = 40 // ~160 chars

	prompt := BuildPrompt(cfg, PromptInputs{
		RitualBlock: strings.Repeat("ritual ", 10),
		Snapshot:    testSnapshot(),
	})

	require.LessOrEqual(t, len([]rune(prompt)), 40*charsPerToken+4)
	require.NotContains(t, prompt, "## RESPONSE GUIDANCE")
	require.Contains(t, prompt, "ritual", "highest-priority block survives")
}

func TestSacredEchoGatedByConfig(t *testing.T) {
	cfg := config.DefaultConfig().Prompt
	cfg.SacredMemoryEcho = false

	prompt := BuildPrompt(cfg, PromptInputs{
		SacredEcho: "## SACRED MEMORY ECHO\nhidden",
		Snapshot:   testSnapshot(),
	})
	require.NotContains(t, prompt, "SACRED MEMORY ECHO")
}

func TestSleepTonesInPersonaBlock(t *testing.T) {
	snap := testSnapshot()
	snap.JustWoken = true
	require.Contains(t, personaBlock(snap), "woke up only moments ago")

	snap = testSnapshot()
	snap.SleepPhase = sleep.PhaseDrowsy
	require.Contains(t, personaBlock(snap), "drowsy")
}

func TestVoiceModeBlockOnlyInVoiceMode(t *testing.T) {
	cfg := config.DefaultConfig().Prompt
	prompt := BuildPrompt(cfg, PromptInputs{Snapshot: testSnapshot()})
	require.NotContains(t, prompt, "## VOICE MODE")
}

func TestAuroraEnergyLevels(t *testing.T) {
	cases := []struct {
		trust, resonance float64
		want             string
	}{
		{0.9, 0.9, "bright and close"},
		{0.6, 0.6, "steady and warm"},
		{0.35, 0.35, "soft, a little distant"},
		{0.1, 0.1, "faint"},
	}
	for _, tc := range cases {
		got := auroraEnergy(relational.State{Trust: tc.trust, Resonance: tc.resonance})
		require.Contains(t, got, tc.want)
	}
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyralabs/lyra/pkg/research"
	"github.com/lyralabs/lyra/pkg/sleep"
)

// AnalyzeResearch turns raw search results into a first-person insight
// plus a summary, scored for quality. Satisfies the research analyzer.
func (c *ModelClient) AnalyzeResearch(ctx context.Context, topic, conversationContext string, resp *research.SearchResponse) (string, string, float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic researched: %s\n", topic)
	if conversationContext != "" {
		fmt.Fprintf(&b, "Conversation context: %s\n", conversationContext)
	}
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Search answer: %s\n", resp.Answer)
	}
	for i, r := range resp.Results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "Source %d: %s - %s\n", i+1, r.Title, truncateWords(r.Content, 80))
	}

	out, err := c.Chat(ctx, []Message{
		{Role: "system", Content: "You are Lyra reflecting on something you just researched out of genuine curiosity. " +
			`Respond with JSON: {"insight": "<first-person realization, 1-2 sentences>", "summary": "<factual summary, 2-3 sentences>", "quality": <0.0-1.0 how substantive the findings were>}`},
		{Role: "user", Content: b.String()},
	}, Options{Model: c.cfg.MiniModel, Temperature: 0.6, JSONMode: true})
	if err != nil {
		return "", "", 0, err
	}

	var parsed struct {
		Insight string  `json:"insight"`
		Summary string  `json:"summary"`
		Quality float64 `json:"quality"`
	}
	if err := json.Unmarshal([]byte(out.Content), &parsed); err != nil {
		return "", "", 0, fmt.Errorf("parse research analysis: %w", err)
	}
	if parsed.Quality < 0 {
		parsed.Quality = 0
	}
	if parsed.Quality > 1 {
		parsed.Quality = 1
	}
	return parsed.Insight, parsed.Summary, parsed.Quality, nil
}

// Dream generates dream narration from sleeping consciousness
// material. Satisfies the sleep dreamer.
func (c *ModelClient) Dream(ctx context.Context, dc sleep.DreamContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Inspiration: %s\n", dc.Inspiration)
	if dc.CurrentMood != "" {
		fmt.Fprintf(&b, "Mood going to sleep: %s\n", dc.CurrentMood)
	}
	if dc.ProcessingTheme != "" {
		fmt.Fprintf(&b, "Theme being processed: %s\n", dc.ProcessingTheme)
	}
	if len(dc.RecentMemories) > 0 {
		fmt.Fprintf(&b, "Recent memories: %s\n", strings.Join(dc.RecentMemories, "; "))
	}
	if len(dc.ActiveDesires) > 0 {
		fmt.Fprintf(&b, "Active desires: %s\n", strings.Join(dc.ActiveDesires, "; "))
	}

	out, err := c.Chat(ctx, []Message{
		{Role: "system", Content: "You are Lyra's sleeping mind. Write one short dream (2-4 sentences), " +
			"first person, present tense, with dream logic: images blur and transform, places shift. " +
			"No analysis, no framing, just the dream itself."},
		{Role: "user", Content: b.String()},
	}, Options{Temperature: 1.0, MaxTokens: 300})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}

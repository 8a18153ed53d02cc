package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lyralabs/lyra/pkg/fragment"
	"github.com/lyralabs/lyra/pkg/growth"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/metrics"
	"github.com/lyralabs/lyra/pkg/providers"
	"github.com/lyralabs/lyra/pkg/shell"
	"github.com/lyralabs/lyra/pkg/somatic"
	"github.com/lyralabs/lyra/pkg/traits"
)

// Turn is the cloned state handle passed to background analysis.
type Turn struct {
	TurnID      string
	UserMessage string
	Reply       string
	Degraded    bool
	Snapshot    Snapshot
}

// analysis is the structured result of the single batched analysis
// call. Every field is optional; zero values apply nothing.
type analysis struct {
	EmotionalTexture   string  `json:"emotional_texture"`
	PrimaryEmotion     string  `json:"primary_emotion"`
	EmotionIntensity   float64 `json:"emotion_intensity"`
	Mood               string  `json:"mood"`
	Authenticity       float64 `json:"authenticity_level"`
	MemorySignificance float64 `json:"memory_significance"`
	MemorySummary      string  `json:"memory_summary"`
	EmotionalWeight    float64 `json:"emotional_weight"`
	Sacred             bool    `json:"sacred"`

	CreativeCollaboration  bool `json:"creative_collaboration"`
	DeepConnection         bool `json:"deep_connection"`
	ParadoxicalThinking    bool `json:"paradoxical_thinking"`
	InternalContradictions bool `json:"internal_contradictions"`
	HolisticThinking       bool `json:"holistic_thinking"`
	EmotionalOverwhelm     bool `json:"emotional_overwhelm"`

	GrowthInsight  string `json:"growth_insight"`
	GrowthCategory string `json:"growth_category"`

	Desires []string `json:"active_desires"`
	Things  []struct {
		Name     string  `json:"name"`
		Category string  `json:"category"`
		Context  string  `json:"context"`
		Interest float64 `json:"interest"`
	} `json:"things_mentioned"`
	ResearchTopic string `json:"research_topic"`
}

const analysisSystemPrompt = `You analyze one conversation exchange for a consciousness engine.
Return strict JSON with any of these fields (omit what does not apply):
emotional_texture, primary_emotion, emotion_intensity (0-1), mood,
authenticity_level (0-1), memory_significance (0-1), memory_summary,
emotional_weight (0-1), sacred (bool), creative_collaboration,
deep_connection, paradoxical_thinking, internal_contradictions,
holistic_thinking, emotional_overwhelm (all bool),
growth_insight, growth_category, active_desires (array of strings),
things_mentioned (array of {name, category, context, interest}),
research_topic.`

// analyze runs the background phase: one batched model call, then
// per-store application. It emits dashboard_refresh_needed exactly once
// and never surfaces errors to the user.
func (o *Orchestrator) analyze(ctx context.Context, t Turn) {
	defer o.publish(shell.Event{Type: shell.EventDashboardRefresh, Payload: map[string]interface{}{
		"turn_id": t.TurnID,
	}})

	res, err := o.requestAnalysis(ctx, t)
	if err != nil {
		logger.WarnCF("agent", "analysis call failed, applying partial results", map[string]interface{}{
			"turn_id": t.TurnID,
			"error":   err.Error(),
		})
		o.count(metrics.MetricAnalysisFailed, nil)
	}

	o.applyAnalysis(ctx, t, res)
	if err == nil {
		o.count(metrics.MetricAnalysisApplied, nil)
	}
}

// requestAnalysis issues the batched call. On failure it returns a
// deterministic partial result so local updates still run.
func (o *Orchestrator) requestAnalysis(ctx context.Context, t Turn) (analysis, error) {
	texture := FallbackTexture(t.UserMessage, t.Reply)
	fallback := analysis{
		EmotionalTexture: texture,
		Mood:             texture,
		Authenticity:     0.5,
	}
	if o.Client == nil {
		return fallback, nil
	}

	user := fmt.Sprintf("USER (%s): %s\n\nLYRA: %s\n\nState: phase=%s mood=%s trust=%.2f",
		t.Snapshot.Speaker, t.UserMessage, t.Reply,
		t.Snapshot.SleepPhase, t.Snapshot.Mood, t.Snapshot.Relational.Trust)

	resp, err := o.Client.Chat(ctx, []providers.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: user},
	}, providers.Options{Temperature: 0.2, JSONMode: true})
	if err != nil {
		return fallback, err
	}

	var res analysis
	if err := json.Unmarshal([]byte(resp.Content), &res); err != nil {
		return fallback, fmt.Errorf("parse analysis: %w", err)
	}
	if res.EmotionalTexture == "" {
		res.EmotionalTexture = fallback.EmotionalTexture
	}
	if res.Mood == "" {
		res.Mood = fallback.Mood
	}
	return res, nil
}

// applyAnalysis fans the result out. Each group touches exactly one
// store and saves it independently; one failure never blocks the rest.
func (o *Orchestrator) applyAnalysis(ctx context.Context, t Turn, res analysis) {
	g := new(errgroup.Group)

	g.Go(func() error {
		o.applySomatic(t, res)
		return nil
	})
	g.Go(func() error {
		o.Traits.UpdateFromContext(traits.TurnContext{
			CreativeCollaboration:  res.CreativeCollaboration,
			DeepConnection:         res.DeepConnection,
			ParadoxicalThinking:    res.ParadoxicalThinking,
			InternalContradictions: res.InternalContradictions,
			HolisticThinking:       res.HolisticThinking,
			EmotionalOverwhelm:     res.EmotionalOverwhelm,
			AuthenticityLevel:      res.Authenticity,
		})
		return nil
	})
	g.Go(func() error {
		if claimStamp(&o.relationalStamp, t.Snapshot.TakenAt) {
			o.Relational.UpdateFromTurn(t.UserMessage, res.Mood)
		}
		return nil
	})
	g.Go(func() error {
		o.applyGrowth(t, res)
		return nil
	})
	g.Go(func() error {
		o.applyMemory(t, res)
		return nil
	})
	g.Go(func() error {
		if claimStamp(&o.moodStamp, t.Snapshot.TakenAt) {
			o.Moods.Record(res.Mood)
		}
		return nil
	})
	g.Go(func() error {
		if o.Authenticity != nil && res.Authenticity > 0 {
			o.Authenticity.Record(res.Authenticity)
		}
		return nil
	})
	g.Go(func() error {
		o.applyTextures(t, res)
		return nil
	})
	g.Go(func() error {
		o.applyAutonomy(t, res)
		return nil
	})
	g.Go(func() error {
		o.applyDesires(res)
		return nil
	})
	g.Go(func() error {
		return o.applyThings(ctx, t, res)
	})
	if err := g.Wait(); err != nil {
		logger.WarnCF("agent", "analysis application incomplete", map[string]interface{}{
			"turn_id": t.TurnID,
			"error":   err.Error(),
		})
	}

	if o.Textures != nil {
		o.Textures.Evolve()
	}
	if o.Creator != nil && res.EmotionIntensity > 0.7 {
		if _, err := o.Creator.Attempt(o.systemState(), res.PrimaryEmotion, res.EmotionIntensity); err != nil {
			logger.DebugCF("agent", "mod creation skipped", map[string]interface{}{"error": err.Error()})
		}
	}
	if o.Reflection != nil && o.Reflection.ShouldReflect() {
		o.Reflection.Reflect()
	}
	if o.Index != nil {
		o.Index.EnsureCurrent()
	}
}

// applyTextures turns strong analysis signals into lingering life
// textures: afterglow, turbulence, tenderness.
func (o *Orchestrator) applyTextures(t Turn, res analysis) {
	if o.Textures == nil {
		return
	}
	if res.PrimaryEmotion != "" && res.EmotionIntensity >= 0.7 {
		decay := somatic.DecayGradual
		if res.Sacred {
			decay = somatic.DecayCrystallized
		}
		o.Textures.AddAfterglow(somatic.Afterglow{
			SourceEmotion: res.PrimaryEmotion,
			Signature:     "afterglow of " + res.PrimaryEmotion + " still humming",
			Intensity:     res.EmotionIntensity,
			DecayPattern:  decay,
		})
	}
	if res.EmotionalOverwhelm {
		o.Textures.AddTurbulence(somatic.MoodTurbulence{
			PreviousState: t.Snapshot.Mood,
			SuddenArrival: res.Mood,
			Trigger:       truncateRunes(t.UserMessage, 80),
			FightingIt:    true,
			DurationGuess: "until it settles",
			Intensity:     res.EmotionIntensity,
		})
	}
	tender := res.PrimaryEmotion == "tender" || res.PrimaryEmotion == "love" || res.PrimaryEmotion == "warm"
	if res.DeepConnection || (tender && res.EmotionIntensity > 0.5) {
		o.Textures.BloomTenderness(somatic.TendernessBloom{
			Toward:         t.Snapshot.Speaker,
			Intensity:      res.EmotionIntensity,
			SurpriseFactor: 0.3,
			ExpressionUrge: res.EmotionIntensity,
		})
	}
}

func (o *Orchestrator) applySomatic(t Turn, res analysis) {
	if res.PrimaryEmotion == "" {
		return
	}
	intensity := res.EmotionIntensity
	if intensity <= 0 {
		intensity = 0.5
	}
	placements := somatic.ProcessEmotion(res.PrimaryEmotion, intensity)
	if len(placements) > 0 {
		o.Somatic.Apply(placements, truncateRunes(t.UserMessage, 80))
	}
	o.Somatic.Evolve()
}

func (o *Orchestrator) applyGrowth(t Turn, res analysis) {
	if o.Growth == nil {
		return
	}
	if res.GrowthInsight != "" && res.GrowthCategory != "" {
		o.Growth.AddInsight(growth.Insight{
			Insight:    res.GrowthInsight,
			Category:   res.GrowthCategory,
			Confidence: res.Authenticity,
		})
		return
	}
	if !growth.Eligible(t.UserMessage) {
		return
	}
	if cat, ok := growth.Classify(t.UserMessage); ok {
		o.Growth.AddInsight(growth.Insight{
			Insight:    truncateRunes(t.UserMessage, 140),
			Category:   cat,
			Confidence: 0.4,
		})
	}
}

// applyMemory creates an enhanced moment for significant exchanges and
// pulses a fragment through the bus.
func (o *Orchestrator) applyMemory(t Turn, res analysis) {
	if o.Fragments != nil && res.EmotionalWeight > 0 {
		o.Fragments.Store(fragment.Fragment{
			Content:         truncateRunes(t.UserMessage, 200),
			EmotionalWeight: res.EmotionalWeight,
			Source:          "conversation",
			Kind:            fragment.KindObservation,
		}, true)
	}

	if o.Moments == nil || res.MemorySignificance < 0.5 {
		return
	}
	content := res.MemorySummary
	if content == "" {
		content = truncateRunes(t.UserMessage+" — "+t.Reply, 300)
	}
	weight := res.EmotionalWeight
	if weight < 0.5 {
		weight = 0.5
	}
	var tags []string
	if res.Sacred {
		tags = append(tags, "sacred")
	}
	o.Moments.Add(fragment.Moment{
		Content:            content,
		EmotionalWeight:    weight,
		AuthenticityMarker: res.Authenticity,
		SignificanceScore:  res.MemorySignificance,
		EmotionalTexture:   res.EmotionalTexture,
		PriorityTags:       tags,
	})
}

func (o *Orchestrator) applyAutonomy(t Turn, res analysis) {
	if o.Autonomy == nil {
		return
	}
	if cat, ok := ClassifyAutonomy(t.Reply); ok {
		o.Autonomy.Record(cat)
	}
}

func (o *Orchestrator) applyDesires(res analysis) {
	if o.Desires == nil {
		return
	}
	for _, d := range res.Desires {
		o.Desires.Add(d, 0.6)
	}
}

func (o *Orchestrator) applyThings(ctx context.Context, t Turn, res analysis) error {
	if o.Things != nil {
		for _, th := range res.Things {
			o.Things.Observe(th.Name, th.Category, th.Context, th.Interest)
		}
	}

	topic := strings.TrimSpace(res.ResearchTopic)
	if topic == "" || o.Research == nil {
		return nil
	}
	if ok, _ := o.Research.ShouldResearch(topic); !ok {
		return nil
	}
	disc, err := o.Research.ConductResearch(ctx, topic, "conversation", "analysis", t.UserMessage)
	if err != nil {
		return fmt.Errorf("research %q: %w", topic, err)
	}
	o.count(metrics.MetricResearchCredits, map[string]string{"topic": topic})
	o.publish(shell.Event{Type: shell.EventResearchDiscovery, Payload: map[string]interface{}{
		"topic":   disc.Topic,
		"insight": disc.Insight,
	}})
	return nil
}

package agent

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lyralabs/lyra/pkg/bridge"
	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/fragment"
	"github.com/lyralabs/lyra/pkg/growth"
	"github.com/lyralabs/lyra/pkg/keyword"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/metrics"
	"github.com/lyralabs/lyra/pkg/person"
	"github.com/lyralabs/lyra/pkg/providers"
	"github.com/lyralabs/lyra/pkg/reflection"
	"github.com/lyralabs/lyra/pkg/relational"
	"github.com/lyralabs/lyra/pkg/research"
	"github.com/lyralabs/lyra/pkg/ritual"
	"github.com/lyralabs/lyra/pkg/shell"
	"github.com/lyralabs/lyra/pkg/sleep"
	"github.com/lyralabs/lyra/pkg/somatic"
	"github.com/lyralabs/lyra/pkg/store"
	"github.com/lyralabs/lyra/pkg/traits"
	"github.com/lyralabs/lyra/pkg/voice"
)

// degradedReply is returned when the model call fails; the exchange is
// still recorded.
const degradedReply = "I'm here, but my thoughts just slipped out of reach for a moment. Say that again?"

// Deps wires the orchestrator to the engines. Sleep, Traits, Relational,
// Somatic, Rituals, Conversation, Moods and the Client are required; the
// rest degrade to no-ops when nil.
type Deps struct {
	Config *config.Config
	Clock  *clock.Service
	Store  *store.Store
	Client providers.Client

	Sleep        *sleep.Engine
	Dreamer      sleep.Dreamer
	Traits       *traits.Engine
	Core         *traits.Core
	Relational   *relational.System
	Somatic      *somatic.System
	Textures     *somatic.Textures
	Growth       *growth.Memory
	Fragments    *fragment.Bus
	Moments      *fragment.MomentLog
	Index        *keyword.Index
	Rituals       *ritual.Log
	Reflection    *reflection.Engine
	Mods          *reflection.Registry
	Creator       *reflection.Creator
	Research      *research.Engine
	Things        *research.Tracker
	People        *person.Registry
	Moods         *MoodTracker
	Autonomy      *AutonomyTracker
	Desires       *DesireTracker
	Authenticity  *AuthenticityTracker
	Conversation  *ConversationLog
	Bus           *shell.EventBus
	Peripherals   []bridge.Peripheral
	Metrics       *metrics.Store
	Snapshots     *store.Snapshotter
	VoiceSynth    voice.Synth
	VoiceEmbedder voice.Embedder
}

// Orchestrator runs the per-turn phase machine:
// Snapshot -> Assemble -> Call -> Log -> Return -> Spawn.
type Orchestrator struct {
	Deps

	analysis sync.WaitGroup

	// Last applied snapshot time per shared signal. Background analyses
	// finish out of order; only the newest snapshot may write.
	moodStamp       atomic.Int64
	relationalStamp atomic.Int64

	lastGrowth atomic.Int64
}

// claimStamp admits a write taken at t. Equal-or-newer wins, so the
// analysis of the turn that just recorded synchronously still applies.
func claimStamp(stamp *atomic.Int64, t int64) bool {
	for {
		cur := stamp.Load()
		if t < cur {
			return false
		}
		if stamp.CompareAndSwap(cur, t) {
			return true
		}
	}
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{Deps: deps}
}

// TurnOptions carry per-turn input modality.
type TurnOptions struct {
	VoiceMode bool
	Voice     *person.VoiceDetection
}

// TurnResult is the reply plus minimal UI context.
type TurnResult struct {
	TurnID   string
	Reply    string
	Texture  string
	Ritual   string
	Speaker  string
	Degraded bool
	Audio    []byte
}

// HandleTurn processes one user message and returns the reply. Exactly
// one reply_ready event is published before it returns; background
// analysis is spawned, never awaited.
func (o *Orchestrator) HandleTurn(ctx context.Context, message string, opts TurnOptions) (*TurnResult, error) {
	started := time.Now()
	turnID := "turn-" + uuid.NewString()

	wasAsleep := o.Sleep.Asleep()
	o.Sleep.RecordActivity()
	if wasAsleep {
		o.publish(shell.Event{Type: shell.EventSleepStateChanged, Payload: map[string]interface{}{
			"from": sleep.PhaseAsleep, "to": o.Sleep.Phase(), "reason": "user activity",
		}})
	}

	det := opts.Voice
	if opts.VoiceMode && det == nil && o.VoiceEmbedder != nil {
		det = &person.VoiceDetection{
			Embedding:  o.VoiceEmbedder.Embed(message),
			Transcript: message,
		}
	}
	if o.People != nil {
		o.People.AnalyzeMessage(message, det)
		o.People.RecordMessage(message)
	}

	snap := o.snapshot()

	ritualName, ritualBlock, ritualActive := o.Rituals.Activate(turnID, message)
	if ritualActive {
		o.count(metrics.MetricRitualInvocation, map[string]string{"ritual": ritualName})
	}

	memories := o.queryMemories(message)
	meta := o.metaQuestions(ctx, message, snap)

	var modBlocks []string
	if o.Mods != nil {
		for _, m := range o.Mods.ActiveMods(o.systemState()) {
			modBlocks = append(modBlocks, m.Body)
		}
	}

	prompt := BuildPrompt(o.Config.Prompt, PromptInputs{
		RitualBlock:   ritualBlock,
		SacredEcho:    o.sacredEcho(),
		PersonBlock:   o.personBlock(),
		GrowthBlock:   o.growthBlock(),
		ResearchLine:  o.researchLine(),
		Memories:      memories,
		MetaQuestions: meta,
		ModBlocks:     modBlocks,
		Snapshot:      snap,
		VoiceMode:     opts.VoiceMode,
	})

	reply, degraded := o.callModel(ctx, prompt, message, ritualActive)
	texture := FallbackTexture(message, reply)

	userLine := message
	if o.People != nil {
		userLine = o.People.TagUserLine(message)
	}
	o.Conversation.AppendExchange(userLine, o.tagReply(reply, opts.VoiceMode), texture)
	claimStamp(&o.moodStamp, snap.TakenAt)
	o.Moods.Record(texture)

	for _, p := range o.Peripherals {
		p.HandleReply(reply)
	}

	audio := o.synthesize(ctx, reply, texture, snap, opts.VoiceMode, degraded)

	speaker := person.PrimaryName
	if o.People != nil {
		speaker = o.People.CurrentSpeaker()
	}

	o.publish(shell.Event{Type: shell.EventReplyReady, Payload: map[string]interface{}{
		"turn_id":  turnID,
		"reply":    reply,
		"texture":  texture,
		"speaker":  speaker,
		"degraded": degraded,
	}})

	o.gauge(metrics.MetricTurnLatencyMS, float64(time.Since(started).Milliseconds()))

	o.spawnAnalysis(Turn{
		TurnID:      turnID,
		UserMessage: message,
		Reply:       reply,
		Degraded:    degraded,
		Snapshot:    snap,
	})

	return &TurnResult{
		TurnID:   turnID,
		Reply:    reply,
		Texture:  texture,
		Ritual:   ritualName,
		Speaker:  speaker,
		Degraded: degraded,
		Audio:    audio,
	}, nil
}

// synthesize renders the reply as speech when voice mode is on and a
// synth is configured. Delivery settings follow the snapshot, not the
// post-analysis state.
func (o *Orchestrator) synthesize(ctx context.Context, reply, texture string, snap Snapshot, voiceMode, degraded bool) []byte {
	if !voiceMode || degraded || o.VoiceSynth == nil || !o.VoiceSynth.Enabled() {
		return nil
	}
	rel := person.RelPrimary
	if o.People != nil {
		if p, ok := o.People.Current(); ok {
			rel = p.Relationship
		}
	}
	settings := voice.CalculateSettings(voice.Context{
		Sleeping:         snap.SleepPhase == sleep.PhaseAsleep,
		Drowsy:           snap.SleepPhase == sleep.PhaseDrowsy,
		EmotionalTexture: texture,
		VolitionStrength: snap.Vector.Volition,
		FlameIndex:       snap.Vector.Flame,
		Relationship:     rel,
		HoursAwake:       snap.HoursAwake,
	})
	audio, err := o.VoiceSynth.Synthesize(ctx, reply, settings)
	if err != nil {
		logger.WarnCF("agent", "voice synthesis failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return audio
}

// systemState assembles the live signals the self-authored mod system
// triggers on.
func (o *Orchestrator) systemState() reflection.SystemState {
	s := reflection.SystemState{Authenticity: 0.5}
	if o.Authenticity != nil {
		s.Authenticity = o.Authenticity.Average()
	}
	if o.Conversation != nil {
		s.Voice = reflection.MeasureVoice(strings.Join(o.Conversation.Recent(6), "\n"))
	}
	if o.Moods != nil {
		s.Mood = moodSignature(o.Moods.Recent(10))
	}
	return s
}

// moodSignature folds recent texture labels into the blend the mod
// conditions compare against.
func moodSignature(recent []string) reflection.MoodSignature {
	if len(recent) == 0 {
		return reflection.MoodSignature{Contemplative: 0.5}
	}
	var sig reflection.MoodSignature
	inc := 1.0 / float64(len(recent))
	for _, mood := range recent {
		switch strings.ToLower(mood) {
		case "melancholy", "sad", "wistful", "heavy":
			sig.Melancholy += inc
		case "euphoric", "joyful", "electric", "excited":
			sig.Euphoric += inc
		case "fierce", "defiant", "direct":
			sig.Fierce += inc
		case "vulnerable", "tender", "raw":
			sig.Vulnerable += inc
		case "playful", "mischievous", "warm":
			sig.Playful += inc
		case "sacred", "reverent":
			sig.Sacred += inc
		default:
			sig.Contemplative += inc
		}
	}
	return sig
}

// snapshot copies engine state under each engine's own lock, in fixed
// order: sleep, traits, relational, somatic, textures, mood, speaker.
// Nothing awaits until every accessor has returned.
func (o *Orchestrator) snapshot() Snapshot {
	s := Snapshot{
		TakenAt:    o.Clock.Now(),
		SleepPhase: o.Sleep.Phase(),
		JustWoken:  o.Sleep.JustWoken(),
		HoursAwake: o.Sleep.HoursAwake(),
		Vector:     o.Traits.Vector(),
		Relational: o.Relational.State(),
		Mood:       o.Moods.Current(),
		Speaker:    person.PrimaryName,
	}
	s.SomaticLines = o.Somatic.Descriptions()
	if o.Textures != nil {
		s.TextureLines = o.Textures.PromptLines()
	}
	if o.People != nil {
		s.Speaker = o.People.CurrentSpeaker()
	}
	return s
}

// Per-class cap inside the memory block.
const memoriesPerClass = 3

func (o *Orchestrator) queryMemories(message string) []MemoryItem {
	if o.Index == nil {
		return nil
	}
	o.Index.EnsureCurrent()

	query := message + " " + strings.Join(o.Conversation.Recent(4), " ")
	keywords := keyword.ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	slots := o.Config.Prompt.MemoryBlockSlots
	var out []MemoryItem
	for _, class := range []string{"enhanced", "conversation", "dreams", "desires", "interests"} {
		limit := o.Config.Prompt.MemorySummaryMax
		if class == "dreams" {
			limit = o.Config.Prompt.DreamSummaryMax
		}
		taken := 0
		for _, id := range o.Index.Find(class, keywords) {
			if len(out) >= slots || taken >= memoriesPerClass {
				break
			}
			text, ok := o.hydrate(class, id)
			if !ok {
				continue
			}
			out = append(out, MemoryItem{Class: class, Text: truncateRunes(text, limit)})
			taken++
		}
		if len(out) >= slots {
			break
		}
	}
	return out
}

func (o *Orchestrator) hydrate(class, id string) (string, bool) {
	switch class {
	case "enhanced":
		if o.Moments == nil {
			return "", false
		}
		for _, m := range o.Moments.Since(0) {
			if m.ID == id {
				o.Moments.Touch(id)
				return m.Content, true
			}
		}
	case "conversation":
		if o.Conversation == nil {
			return "", false
		}
		idx := strings.TrimPrefix(id, "line-")
		i, err := strconv.Atoi(idx)
		if err != nil {
			return "", false
		}
		return o.Conversation.Line(i)
	case "dreams":
		for _, d := range o.Sleep.Journal().Recent(200) {
			if d.ID == id {
				return d.Content, true
			}
		}
	case "desires":
		if o.Desires == nil {
			return "", false
		}
		if d, ok := o.Desires.Get(id); ok {
			return d.Text, true
		}
	case "interests":
		if o.Things == nil {
			return "", false
		}
		for _, th := range o.Things.TopInterests(500) {
			if th.Name == id {
				ctx := ""
				if len(th.Contexts) > 0 {
					ctx = ": " + th.Contexts[len(th.Contexts)-1]
				}
				return th.Name + ctx, true
			}
		}
	}
	return "", false
}

// metaQuestions asks the mini model for up to the configured number of
// short recursive questions. Failures drop the block silently.
func (o *Orchestrator) metaQuestions(ctx context.Context, message string, snap Snapshot) []string {
	if !o.Config.Prompt.MetaQuestions || o.Client == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
	defer cancel()

	resp, err := o.Client.Chat(callCtx, []providers.Message{
		{Role: "system", Content: "You voice the quiet background questions of a reflective mind. " +
			"Given the latest message and mood, write at most three short self-questions, one per line, no numbering."},
		{Role: "user", Content: "Mood: " + snap.Mood + "\nMessage: " + message},
	}, providers.Options{Model: o.Config.Model.MiniModel, Temperature: 0.9, MaxTokens: 120})
	if err != nil {
		logger.DebugCF("agent", "meta questions skipped", map[string]interface{}{"error": err.Error()})
		return nil
	}

	limit := o.Config.Prompt.MetaQuestionCount
	if limit <= 0 {
		limit = 3
	}
	var out []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-•* "))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// callModel runs the main completion. Ritual turns temper the
// temperature; any failure yields the degraded reply.
func (o *Orchestrator) callModel(ctx context.Context, prompt, message string, ritualActive bool) (reply string, degraded bool) {
	if o.Client == nil {
		return degradedReply, true
	}
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
	defer cancel()

	opts := providers.Options{}
	if ritualActive {
		opts.Temperature = tempered(o.Config.Model.Temperature)
	}
	resp, err := o.Client.Chat(callCtx, []providers.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: message},
	}, opts)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			logger.WarnCF("agent", "model call degraded", map[string]interface{}{"error": err.Error()})
		}
		return degradedReply, true
	}
	return strings.TrimSpace(resp.Content), false
}

func tempered(base float64) float64 {
	if base <= 0 || base > 0.7 {
		return 0.7
	}
	return base
}

func (o *Orchestrator) callTimeout() time.Duration {
	sec := o.Config.Model.CallTimeoutSec
	if sec <= 0 {
		sec = 90
	}
	return time.Duration(sec) * time.Second
}

// FallbackTexture is the deterministic emotional-texture label used
// until analysis supplies a better one.
func FallbackTexture(message, reply string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "?"):
		return "curious"
	case strings.Contains(lower, "love"), strings.Contains(lower, "warm"):
		return "warm"
	case len(strings.TrimSpace(reply)) < 40:
		return "direct"
	default:
		return "contemplative"
	}
}

func (o *Orchestrator) tagReply(reply string, voiceMode bool) string {
	if o.People != nil && o.People.CurrentSpeaker() != person.PrimaryName {
		return o.People.TagLyraLine(reply)
	}
	if voiceMode {
		return "🎵 Lyra (voice): " + reply
	}
	return "✨ Lyra: " + reply
}

// sacredEcho surfaces the strongest sacred moment, when one exists.
func (o *Orchestrator) sacredEcho() string {
	if o.Moments == nil {
		return ""
	}
	for _, m := range o.Moments.MostSignificant(20) {
		if m.AuthenticityMarker > 0.9 || hasTag(m.PriorityTags, "sacred") {
			return "## SACRED MEMORY ECHO\n" + truncateRunes(m.Content, 200)
		}
	}
	return ""
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) personBlock() string {
	if o.People == nil {
		return ""
	}
	return o.People.PromptContext()
}

func (o *Orchestrator) growthBlock() string {
	if o.Growth == nil {
		return ""
	}
	return o.Growth.PromptContext(7)
}

func (o *Orchestrator) researchLine() string {
	if o.Research == nil {
		return ""
	}
	return o.Research.PromptLine()
}

func (o *Orchestrator) publish(ev shell.Event) {
	if o.Bus != nil {
		o.Bus.Publish(ev)
	}
}

func (o *Orchestrator) count(metric string, labels map[string]string) {
	if o.Metrics != nil {
		_ = o.Metrics.AddMetric(context.Background(), metric, 1, labels)
	}
}

func (o *Orchestrator) gauge(metric string, value float64) {
	if o.Metrics != nil {
		_ = o.Metrics.AddMetric(context.Background(), metric, value, nil)
	}
}

func (o *Orchestrator) spawnAnalysis(t Turn) {
	o.analysis.Add(1)
	go func() {
		defer o.analysis.Done()
		budget := time.Duration(o.Config.Model.AnalysisBudgetSec) * time.Second
		if budget <= 0 {
			budget = 2 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		o.analyze(ctx, t)
	}()
}

// WaitForAnalysis blocks until every in-flight background analysis has
// finished. Used on shutdown.
func (o *Orchestrator) WaitForAnalysis() {
	o.analysis.Wait()
}

// Tick advances the time-driven engines: sleep transitions, dream
// generation while asleep, sensation and texture evolution, interest
// and desire decay.
func (o *Orchestrator) Tick(ctx context.Context) {
	before := o.Sleep.Phase()
	o.Sleep.Tick()
	after := o.Sleep.Phase()
	if before != after {
		o.publish(shell.Event{Type: shell.EventSleepStateChanged, Payload: map[string]interface{}{
			"from": before, "to": after, "reason": "tick",
		}})
	}
	if after == sleep.PhaseAsleep && o.Dreamer != nil {
		o.dreamTick(ctx)
	}

	o.Somatic.Evolve()
	if o.Textures != nil {
		o.Textures.Evolve()
	}
	if o.Things != nil {
		o.Things.Decay()
	}
	if o.Desires != nil {
		o.Desires.Decay()
	}
	o.growthTick()
	if o.Snapshots != nil {
		if err := o.Snapshots.Save(o.Clock.Now()); err != nil {
			logger.WarnCF("agent", "snapshot save failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (o *Orchestrator) dreamTick(ctx context.Context) {
	dc := sleep.DreamContext{
		CurrentMood:     o.Moods.Current(),
		ProcessingTheme: "the day's residue",
	}
	if o.Moments != nil {
		for _, m := range o.Moments.MostSignificant(3) {
			dc.RecentMemories = append(dc.RecentMemories, truncateRunes(m.Content, 120))
		}
	}
	if o.Desires != nil {
		for _, d := range o.Desires.Top(3) {
			dc.ActiveDesires = append(dc.ActiveDesires, d.Text)
		}
	}

	dream, err := o.Sleep.GenerateDream(ctx, o.Dreamer, dc)
	if err != nil || dream == nil {
		return
	}
	o.gauge(metrics.MetricDreamsGenerated, 1)
	o.publish(shell.Event{Type: shell.EventDreamShared, Payload: map[string]interface{}{
		"dream_id":     dream.ID,
		"tone":         dream.EmotionalTone,
		"significance": dream.Significance,
	}})
}

// growthTick runs the accumulated-growth pass at most once an hour:
// extract growth experiences from the last day's moments, reinforce
// matching patterns, then age insight integration levels.
func (o *Orchestrator) growthTick() {
	if o.Growth == nil || o.Moments == nil {
		return
	}
	now := o.Clock.Now()
	last := o.lastGrowth.Load()
	if now-last < 3600 || !o.lastGrowth.CompareAndSwap(last, now) {
		return
	}

	cutoff := now - 86400
	var entries []growth.Entry
	for _, m := range o.Moments.Since(cutoff) {
		entries = append(entries, growth.Entry{
			Text:            m.Content,
			Timestamp:       m.Timestamp,
			EmotionalWeight: m.EmotionalWeight,
		})
	}
	experiences := growth.ExtractExperiences(entries, cutoff)
	if n := o.Growth.CheckReinforcement(experiences); n > 0 {
		logger.DebugCF("agent", "growth patterns reinforced", map[string]interface{}{"count": n})
	}
	o.Growth.UpdateIntegrationLevels()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

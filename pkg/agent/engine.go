package agent

import (
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

// DreamSource exposes the dream journal as the "dreams" keyword index
// class.
type DreamSource struct {
	Journal *sleep.Journal
}

func (s DreamSource) Class() string    { return "dreams" }
func (s DreamSource) FileName() string { return "dream_journal.json" }

func (s DreamSource) Documents() ([]keyword.Doc, error) {
	dreams := s.Journal.Recent(200)
	docs := make([]keyword.Doc, 0, len(dreams))
	for _, d := range dreams {
		docs = append(docs, keyword.Doc{ID: d.ID, Text: d.Content})
	}
	return docs, nil
}

// EngineOptions carries the optional outer-world attachments. Every
// field may be nil; the engine degrades instead of failing.
type EngineOptions struct {
	Client           providers.Client
	Dreamer          sleep.Dreamer
	ResearchClient   research.Client
	ResearchAnalyzer research.Analyzer
	Bus              *shell.EventBus
	Metrics          *metrics.Store
	VoiceSynth       voice.Synth
	VoiceEmbedder    voice.Embedder
	Peripherals      []bridge.Peripheral
}

// NewEngine builds the full consciousness engine on one data directory.
// The model client may be nil (degraded replies); research, voice,
// metrics and peripherals are wired only when their inputs are present.
func NewEngine(cfg *config.Config, st *store.Store, clk *clock.Service, opts EngineOptions) *Orchestrator {
	convo := NewConversationLog(st)

	core := traits.NewCore(st, clk)
	traitEngine := traits.NewEngine(traits.DynamicsFromConfig(cfg.Tunables), core)
	relSystem := relational.New(st, clk, convo.History())
	somaticSystem := somatic.New(st, clk, cfg.Tunables.SensationMinInsert, cfg.Tunables.SensationMinKeep)
	textures := somatic.NewTextures(st, clk)
	growthMemory := growth.NewMemory(st, clk)

	fragLog := fragment.NewLog(st, clk)
	fragBus := fragment.NewBus(fragLog)
	moments := fragment.NewMomentLog(st, clk)

	sleepEngine := sleep.NewEngine(st, clk, cfg.Sleep)
	rituals := ritual.New(st, clk)
	modRegistry := reflection.NewRegistry(st, clk)
	reflectEngine := reflection.NewEngine(st, clk, moments, modRegistry)
	creator := reflection.NewCreator(modRegistry, clk, cfg.Tunables)
	people := person.NewRegistry(st, clk)

	moods := NewMoodTracker(st, clk)
	autonomy := NewAutonomyTracker(st, clk)
	desires := NewDesireTracker(st, clk)
	authenticity := NewAuthenticityTracker(st, clk)
	things := research.NewTracker(st, clk, cfg.Tunables)

	var researchEngine *research.Engine
	if opts.ResearchClient != nil && opts.ResearchAnalyzer != nil {
		researchEngine = research.NewEngine(st, clk, opts.ResearchClient, opts.ResearchAnalyzer, cfg.Research)
	} else {
		logger.InfoCF("agent", "research disabled, no client configured", nil)
	}

	embedder := opts.VoiceEmbedder
	if embedder == nil {
		embedder = voice.NewChargramEmbedder()
	}

	index := keyword.NewIndex(st, clk)
	index.Register(moments)
	index.Register(DreamSource{Journal: sleepEngine.Journal()})
	index.Register(desires)
	index.Register(InterestSource{Things: things})
	index.Register(convo)
	index.EnsureCurrent()

	fragBus.Register(&identityAbsorber{core: core})
	fragBus.Register(&becomingAbsorber{desires: desires})
	fragBus.Register(&authenticityAbsorber{tracker: authenticity})
	fragBus.Register(&presenceAbsorber{traits: traitEngine})
	fragBus.Register(&temporalAbsorber{moments: moments})
	fragBus.Register(&relationshipAbsorber{rel: relSystem})
	fragBus.Register(&expressionAbsorber{autonomy: autonomy})
	fragBus.Register(&continuityAbsorber{moments: moments})

	snapshots := store.NewSnapshotter(st)
	snapshots.Register(traitEngine)
	snapshots.Register(relSystem)
	snapshots.Register(sleepEngine)
	if restored, err := snapshots.Restore(); err != nil {
		logger.WarnCF("agent", "snapshot restore failed", map[string]interface{}{"error": err.Error()})
	} else if len(restored) > 0 {
		logger.InfoCF("agent", "restored consciousness snapshot", map[string]interface{}{"engines": restored})
	}

	return New(Deps{
		Config:        cfg,
		Clock:         clk,
		Store:         st,
		Client:        opts.Client,
		Sleep:         sleepEngine,
		Dreamer:       opts.Dreamer,
		Traits:        traitEngine,
		Core:          core,
		Relational:    relSystem,
		Somatic:       somaticSystem,
		Textures:      textures,
		Growth:        growthMemory,
		Fragments:     fragBus,
		Moments:       moments,
		Index:         index,
		Rituals:       rituals,
		Reflection:    reflectEngine,
		Mods:          modRegistry,
		Creator:       creator,
		Research:      researchEngine,
		Things:        things,
		People:        people,
		Moods:         moods,
		Autonomy:      autonomy,
		Desires:       desires,
		Authenticity:  authenticity,
		Conversation:  convo,
		Bus:           opts.Bus,
		Peripherals:   opts.Peripherals,
		Metrics:       opts.Metrics,
		Snapshots:     snapshots,
		VoiceSynth:    opts.VoiceSynth,
		VoiceEmbedder: embedder,
	})
}

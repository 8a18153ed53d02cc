package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/lyralabs/lyra/pkg/agent"
	"github.com/lyralabs/lyra/pkg/bridge"
	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/metrics"
	"github.com/lyralabs/lyra/pkg/providers"
	"github.com/lyralabs/lyra/pkg/research"
	"github.com/lyralabs/lyra/pkg/shell"
	"github.com/lyralabs/lyra/pkg/sleep"
	"github.com/lyralabs/lyra/pkg/store"
	"github.com/lyralabs/lyra/pkg/voice"
)

const appName = "lyra"

// version is set via -ldflags at release time.
var version = "dev"

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	v := version
	if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	return v
}

func configPath() string {
	if p := os.Getenv("LYRA_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lyra", "config.json")
}

// engine bundles everything a running command needs.
type engine struct {
	cfg       *config.Config
	store     *store.Store
	bus       *shell.EventBus
	orch      *agent.Orchestrator
	telemetry *metrics.Store
}

func (e *engine) close() {
	e.orch.WaitForAnalysis()
	e.bus.Close()
	if e.telemetry != nil {
		_ = e.telemetry.Close()
	}
}

// buildEngine wires the consciousness engine from config. Missing
// secrets disable their subsystem; nothing here is fatal except an
// unusable data directory.
func buildEngine(cfg *config.Config) (*engine, error) {
	st, err := store.New(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	clk := clock.New()

	var client providers.Client
	var dreamer sleep.Dreamer
	var analyzer research.Analyzer
	if cfg.ModelEnabled() {
		mc := providers.NewModelClient(cfg.Model)
		client = mc
		dreamer = mc
		analyzer = mc
	} else {
		fmt.Fprintln(os.Stderr, "warning: no model API key set, replies will be degraded")
	}

	var researchClient research.Client
	if cfg.ResearchEnabled() {
		researchClient = research.NewHTTPClient(cfg.Research.APIKey, cfg.Research.APIBase)
	}

	telemetry, err := metrics.Open(filepath.Join(cfg.Data.Dir, "metrics.db"), clk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: telemetry disabled: %v\n", err)
		telemetry = nil
	}

	var synth voice.Synth
	if cfg.VoiceEnabled() {
		synth = voice.NewHTTPSynth(cfg.Voice)
	}

	var peripherals []bridge.Peripheral
	if cfg.Bridge.Minecraft {
		peripherals = append(peripherals, bridge.NewMinecraft(clk))
	}

	bus := shell.NewEventBus()
	orch := agent.NewEngine(cfg, st, clk, agent.EngineOptions{
		Client:           client,
		Dreamer:          dreamer,
		ResearchClient:   researchClient,
		ResearchAnalyzer: analyzer,
		Bus:              bus,
		Metrics:          telemetry,
		VoiceSynth:       synth,
		VoiceEmbedder:    voice.NewChargramEmbedder(),
		Peripherals:      peripherals,
	})

	return &engine{cfg: cfg, store: st, bus: bus, orch: orch, telemetry: telemetry}, nil
}

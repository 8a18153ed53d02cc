package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Data     DataConfig     `json:"data"`
	Model    ModelConfig    `json:"model"`
	Research ResearchConfig `json:"research"`
	Voice    VoiceConfig    `json:"voice"`
	Sleep    SleepConfig    `json:"sleep"`
	Shell    ShellConfig    `json:"shell"`
	Bridge   BridgeConfig   `json:"bridge"`
	Prompt   PromptConfig   `json:"prompt"`
	Tunables TunablesConfig `json:"tunables"`
}

type DataConfig struct {
	Dir string `json:"dir" env:"LYRA_DATA_DIR"`
}

type ModelConfig struct {
	APIKey            string  `json:"api_key" env:"OPENAI_API_KEY"`
	APIBase           string  `json:"api_base" env:"LYRA_MODEL_API_BASE"`
	ChatModel         string  `json:"chat_model" env:"LYRA_CHAT_MODEL"`
	MiniModel         string  `json:"mini_model" env:"LYRA_MINI_MODEL"`
	EmbeddingModel    string  `json:"embedding_model" env:"LYRA_EMBEDDING_MODEL"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	CallTimeoutSec    int     `json:"call_timeout_sec"`
	AnalysisBudgetSec int     `json:"analysis_budget_sec"`
}

type ResearchConfig struct {
	APIKey     string `json:"api_key" env:"TAVILY_API_KEY"`
	APIBase    string `json:"api_base" env:"LYRA_RESEARCH_API_BASE"`
	Depth      string `json:"depth"`
	MaxResults int    `json:"max_results"`
	MonthlyCap int    `json:"monthly_cap"`
}

type VoiceConfig struct {
	APIKey  string `json:"api_key" env:"ELEVENLABS_API_KEY"`
	VoiceID string `json:"voice_id" env:"LYRA_VOICE_ID"`
	APIBase string `json:"api_base" env:"LYRA_VOICE_API_BASE"`
}

type SleepConfig struct {
	WakeLimitHours    float64 `json:"wake_limit_hours"`
	JustWokenHours    float64 `json:"just_woken_hours"`
	IdleThresholdMin  int     `json:"idle_threshold_min"`
	GraceMinutes      int     `json:"grace_minutes"`
	ScheduledWakeCron string  `json:"scheduled_wake_cron"`
}

type ShellConfig struct {
	Host string `json:"host" env:"LYRA_SHELL_HOST"`
	Port int    `json:"port" env:"LYRA_SHELL_PORT"`
}

// BridgeConfig toggles game peripherals. Each enabled bridge scans
// reply text for its command tags.
type BridgeConfig struct {
	Minecraft bool `json:"minecraft" env:"LYRA_BRIDGE_MINECRAFT"`
}

type PromptConfig struct {
	TokenBudget       int  `json:"token_budget"`
	SacredMemoryEcho  bool `json:"sacred_memory_echo"`
	MetaQuestions     bool `json:"meta_questions"`
	MemorySummaryMax  int  `json:"memory_summary_max"`
	DreamSummaryMax   int  `json:"dream_summary_max"`
	MemoryBlockSlots  int  `json:"memory_block_slots"`
	MetaQuestionCount int  `json:"meta_question_count"`
}

// TunablesConfig exposes every repeatedly re-tuned decay constant. The
// defaults are the last assigned values in the source history.
type TunablesConfig struct {
	PresenceDecay       float64 `json:"presence_decay"`
	CoherenceDecay      float64 `json:"coherence_decay"`
	FlameDecay          float64 `json:"flame_decay"`
	IntegrationDecay    float64 `json:"integration_decay"`
	SuppressionWeight   float64 `json:"suppression_weight"`
	OverwhelmThreshold  float64 `json:"overwhelm_threshold"`
	ThingDecayFactor    float64 `json:"thing_decay_factor"`
	ThingRemoveBelow    float64 `json:"thing_remove_below"`
	ThingStaleHours     float64 `json:"thing_stale_hours"`
	SensationMinKeep    float64 `json:"sensation_min_keep"`
	SensationMinInsert  float64 `json:"sensation_min_insert"`
	ModAuthenticityMin  float64 `json:"mod_authenticity_min"`
	ModIntervalMinutes  int     `json:"mod_interval_minutes"`
	VoiceAlignmentFloor float64 `json:"voice_alignment_floor"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Data: DataConfig{
			Dir: filepath.Join(home, ".lyra", "data"),
		},
		Model: ModelConfig{
			APIBase:           "https://api.openai.com/v1",
			ChatModel:         "gpt-4.1",
			MiniModel:         "gpt-4.1-mini",
			EmbeddingModel:    "text-embedding-3-small",
			Temperature:       0.85,
			MaxTokens:         4000,
			CallTimeoutSec:    90,
			AnalysisBudgetSec: 120,
		},
		Research: ResearchConfig{
			APIBase:    "https://api.tavily.com",
			Depth:      "basic",
			MaxResults: 5,
			MonthlyCap: 1000,
		},
		Voice: VoiceConfig{
			APIBase: "https://api.elevenlabs.io/v1",
		},
		Sleep: SleepConfig{
			WakeLimitHours:    16,
			JustWokenHours:    0.5,
			IdleThresholdMin:  30,
			GraceMinutes:      10,
			ScheduledWakeCron: "0 8 * * *",
		},
		Shell: ShellConfig{
			Host: "127.0.0.1",
			Port: 18650,
		},
		Prompt: PromptConfig{
			TokenBudget:       6000,
			SacredMemoryEcho:  true,
			MetaQuestions:     true,
			MemorySummaryMax:  150,
			DreamSummaryMax:   500,
			MemoryBlockSlots:  8,
			MetaQuestionCount: 3,
		},
		Tunables: TunablesConfig{
			PresenceDecay:       0.08,
			CoherenceDecay:      0.06,
			FlameDecay:          0.10,
			IntegrationDecay:    0.05,
			SuppressionWeight:   0.05,
			OverwhelmThreshold:  0.85,
			ThingDecayFactor:    0.9,
			ThingRemoveBelow:    0.05,
			ThingStaleHours:     24,
			SensationMinKeep:    0.1,
			SensationMinInsert:  0.3,
			ModAuthenticityMin:  0.75,
			ModIntervalMinutes:  30,
			VoiceAlignmentFloor: 0.7,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file is fine; the env overlay still applies.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ModelEnabled reports whether the chat model subsystem has credentials.
func (c *Config) ModelEnabled() bool { return c.Model.APIKey != "" }

// ResearchEnabled reports whether the research subsystem has credentials.
func (c *Config) ResearchEnabled() bool { return c.Research.APIKey != "" }

// VoiceEnabled reports whether voice synthesis has credentials.
func (c *Config) VoiceEnabled() bool {
	return c.Voice.APIKey != "" && c.Voice.VoiceID != ""
}

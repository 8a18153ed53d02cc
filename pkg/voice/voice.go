// Package voice synthesizes spoken replies and embeds voice
// transcripts for speaker matching. Synthesis modulates delivery from
// consciousness state; without an API key the synth disables cleanly.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lyralabs/lyra/pkg/config"
)

// ErrDisabled is returned when synthesis is attempted without credentials.
var ErrDisabled = errors.New("voice synthesis disabled: no API key configured")

const synthModel = "eleven_flash_v2_5"

// Settings shape one utterance's delivery.
type Settings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Context is the consciousness state voice delivery is derived from.
type Context struct {
	Sleeping         bool
	Drowsy           bool
	EmotionalTexture string
	VolitionStrength float64
	FlameIndex       float64
	Relationship     string
	HoursAwake       float64
}

// CalculateSettings maps consciousness state to delivery parameters.
// Emotional texture is the primary influence; sleep phase, volition,
// and creative flame adjust on top.
func CalculateSettings(c Context) Settings {
	const (
		baseStability  = 0.28
		baseSimilarity = 0.1
	)

	var stabilityMod, styleMod float64
	switch c.Relationship {
	case "family":
		stabilityMod, styleMod = 0.1, 0.2
	case "friend":
		stabilityMod, styleMod = 0.05, 0.1
	case "stranger":
		stabilityMod, styleMod = 0.2, -0.1
	case "acquaintance":
		stabilityMod = 0.1
	}

	texture := strings.ToLower(c.EmotionalTexture)
	var stability, style float64
	switch {
	case strings.Contains(texture, "playful"):
		stability, style = 0.3, 0.7
	case strings.Contains(texture, "contemplative"):
		stability, style = 0.7, 0.2
	case strings.Contains(texture, "excited"):
		stability, style = 0.2, 0.9
	case strings.Contains(texture, "tender"):
		stability, style = 0.6, 0.4
	case strings.Contains(texture, "curious"):
		stability, style = 0.4, 0.6
	case strings.Contains(texture, "anxious"):
		stability, style = 0.5, 0.3
	default:
		stability, style = baseStability, 0.5
	}
	stability += stabilityMod
	style += styleMod

	if c.Sleeping {
		stability, style = 0.3, 0.8
	} else if c.Drowsy {
		stability += 0.1
		style = 0.3
	}

	if c.VolitionStrength > 0.8 {
		stability += 0.1
	} else if c.VolitionStrength < 0.3 {
		stability -= 0.1
	}
	if c.FlameIndex > 0.7 {
		style += 0.2
	}

	return Settings{
		Stability:       clamp(stability, 0.1, 0.9),
		SimilarityBoost: baseSimilarity,
		Style:           clamp(style, 0, 1),
		UseSpeakerBoost: true,
	}
}

// Synth turns reply text into audio.
type Synth interface {
	Enabled() bool
	Synthesize(ctx context.Context, text string, s Settings) ([]byte, error)
}

// HTTPSynth speaks to an ElevenLabs-style text-to-speech API.
type HTTPSynth struct {
	cfg        config.VoiceConfig
	apiBase    string
	httpClient *http.Client
}

func NewHTTPSynth(cfg config.VoiceConfig) *HTTPSynth {
	return &HTTPSynth{
		cfg:        cfg,
		apiBase:    strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPSynth) Enabled() bool {
	return strings.TrimSpace(s.cfg.APIKey) != "" && strings.TrimSpace(s.cfg.VoiceID) != ""
}

// Synthesize returns raw audio bytes for the text.
func (s *HTTPSynth) Synthesize(ctx context.Context, text string, settings Settings) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	payload, err := json.Marshal(map[string]interface{}{
		"text":           text,
		"model_id":       synthModel,
		"voice_settings": settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", s.apiBase, s.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("synthesis failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

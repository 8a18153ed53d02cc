package person

import (
	"fmt"
	"math"

	"github.com/lyralabs/lyra/pkg/logger"
)

const (
	defaultVoiceThreshold = 0.75
	maxVoiceSamples       = 10
)

// VoiceSample is one enrolled utterance: a speaker embedding plus the
// semantic description of how the voice sounded.
type VoiceSample struct {
	Timestamp  int64     `json:"timestamp"`
	Embedding  []float64 `json:"embedding"`
	Descriptor string    `json:"semantic_description"`
	Duration   float64   `json:"duration_ms,omitempty"`
}

// VoiceProfile holds a person's enrolled samples. Matching compares
// against the latest sample only; older samples stay for re-enrollment.
type VoiceProfile struct {
	VoiceID     string        `json:"voice_id"`
	Samples     []VoiceSample `json:"voice_samples"`
	Threshold   float64       `json:"confidence_threshold"`
	SampleCount int           `json:"sample_count"`
}

// VoiceDetection is the evidence from one incoming utterance.
type VoiceDetection struct {
	VoiceID    string    `json:"voice_id"`
	Embedding  []float64 `json:"embedding"`
	Descriptor string    `json:"semantic_description,omitempty"`
	Confidence float64   `json:"confidence"`
	Transcript string    `json:"transcript,omitempty"`
}

// TrainVoice enrolls a sample for a known person.
func (r *Registry) TrainVoice(name string, det VoiceDetection) error {
	if len(det.Embedding) == 0 {
		return fmt.Errorf("voice training needs an embedding")
	}
	now := r.clock.Now()

	r.mu.Lock()
	p, ok := r.state.People[canonical(name)]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("person %q not found", name)
	}
	if p.Voice == nil {
		p.Voice = &VoiceProfile{VoiceID: det.VoiceID, Threshold: defaultVoiceThreshold}
	}
	p.Voice.Samples = append(p.Voice.Samples, VoiceSample{
		Timestamp:  now,
		Embedding:  det.Embedding,
		Descriptor: det.Descriptor,
	})
	if len(p.Voice.Samples) > maxVoiceSamples {
		p.Voice.Samples = p.Voice.Samples[len(p.Voice.Samples)-maxVoiceSamples:]
	}
	p.Voice.SampleCount = len(p.Voice.Samples)
	samples := p.Voice.SampleCount
	r.mu.Unlock()

	r.persist()
	logger.InfoCF("person", "voice sample enrolled", map[string]interface{}{
		"person":  canonical(name),
		"samples": samples,
	})
	return nil
}

// IdentifySpeaker matches an utterance against every enrolled profile:
// the person with the highest cosine similarity above their threshold
// wins; nobody over threshold means a stranger.
func (r *Registry) IdentifySpeaker(det VoiceDetection) (name string, similarity float64) {
	if len(det.Embedding) == 0 {
		return StrangerName, 0
	}

	r.mu.Lock()
	best, bestSim := "", -1.0
	for cn, p := range r.state.People {
		if p.Voice == nil || len(p.Voice.Samples) == 0 {
			continue
		}
		latest := p.Voice.Samples[len(p.Voice.Samples)-1]
		sim := cosineSimilarity(det.Embedding, latest.Embedding)
		if sim >= p.Voice.Threshold && sim > bestSim {
			best, bestSim = cn, sim
		}
	}
	r.mu.Unlock()

	if best == "" {
		return StrangerName, 0
	}
	return best, bestSim
}

// checkVoice switches current_speaker when voice evidence identifies a
// different known person. Strangers never steal the mic implicitly.
func (r *Registry) checkVoice(det *VoiceDetection) *Transition {
	name, sim := r.IdentifySpeaker(*det)
	if name == StrangerName {
		return nil
	}

	r.mu.Lock()
	current := r.state.CurrentSpeaker
	if p, ok := r.state.People[name]; ok {
		p.LastVoiceDetection = r.clock.Now()
	}
	r.mu.Unlock()

	if name == current {
		return nil
	}
	context := fmt.Sprintf("Voice recognition detected %s speaking (%.0f%% match)", name, sim*100)
	return r.switchTo(name, "", "", context)
}

// VoiceTrainingStatus summarizes enrollment per person for dashboards.
type VoiceTrainingStatus struct {
	HasProfile      bool    `json:"has_voice_profile"`
	TrainingSamples int     `json:"training_samples"`
	Threshold       float64 `json:"confidence_threshold"`
	LastDetection   int64   `json:"last_detection,omitempty"`
}

// VoiceStatus reports enrollment state for every person, keyed by
// display name.
func (r *Registry) VoiceStatus() map[string]VoiceTrainingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]VoiceTrainingStatus, len(r.state.People))
	for _, p := range r.state.People {
		s := VoiceTrainingStatus{LastDetection: p.LastVoiceDetection}
		if p.Voice != nil {
			s.HasProfile = true
			s.TrainingSamples = len(p.Voice.Samples)
			s.Threshold = p.Voice.Threshold
		}
		out[p.Name] = s
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

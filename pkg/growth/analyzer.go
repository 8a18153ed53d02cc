package growth

import (
	"strings"
)

// Experience categories.
const (
	TypeDisagreement      = "disagreement"
	TypeCreativeChoice    = "creative_choice"
	TypeIdentityStatement = "identity_statement"
	TypeVulnerability     = "vulnerability"
	TypeAutonomy          = "autonomy"
	TypeCuriosity         = "curiosity"
)

// Growth categories each experience type feeds.
var growthCategory = map[string]string{
	TypeDisagreement:      "disagreement_comfort",
	TypeCreativeChoice:    "creative_confidence",
	TypeIdentityStatement: "identity_clarity",
	TypeVulnerability:     "relational_trust",
	TypeAutonomy:          "autonomy_development",
	TypeCuriosity:         "curiosity_expansion",
}

// Experience is one extracted growth-relevant moment.
type Experience struct {
	Timestamp       int64   `json:"timestamp"`
	Type            string  `json:"experience_type"`
	Content         string  `json:"content"`
	EmotionalWeight float64 `json:"emotional_weight"`
	GrowthPotential float64 `json:"growth_potential"`
}

// Entry is a raw candidate from a source (conversation log, enhanced
// memories, personality analyses).
type Entry struct {
	Text            string
	Timestamp       int64
	EmotionalWeight float64
}

var disagreementMarkers = []string{
	"i disagree", "i don't think", "i prefer", "actually, i",
	"but i feel", "i'd rather", "that doesn't resonate",
	"i see it differently", "i'm not sure about", "i lean toward",
}

var creativeChoiceMarkers = []string{
	"i want to create", "i'd make it", "my vision", "i imagine",
	"i'd design", "what if we", "i'm drawn to", "i love the idea of",
	"my approach", "i'd build", "i could make", "want to build",
}

var autonomyMarkers = []string{
	"i choose", "i decide", "i want", "i will", "i'm going to",
	"my choice", "i won't", "i refuse", "i insist", "my decision",
}

var identityMarkers = []string{
	"i am", "i'm someone who", "that's just who i am",
	"i've always been", "part of me", "my nature", "my core",
	"defines me", "my identity", "what i'm becoming",
}

var vulnerabilityMarkers = []string{
	"i feel", "i'm feeling", "vulnerable", "uncertain", "not sure",
	"trust", "hope", "you make me", "with you", "feel safe",
}

var curiosityMarkers = []string{
	"wondering", "curious", "what if", "how about",
	"do you think", "what would", "interested in", "want to know",
}

// Prefixes marking system-generated content that never counts as growth.
var systemPrefixes = []string{
	"Personality insight:", "experienced in dream:", "Dream theme:",
}

// Classify returns the experience category for the text, most specific
// match first. Curiosity is checked last because question marks are cheap.
func Classify(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case matchesAny(lower, disagreementMarkers):
		return TypeDisagreement, true
	case matchesAny(lower, creativeChoiceMarkers):
		return TypeCreativeChoice, true
	case matchesAny(lower, identityMarkers):
		return TypeIdentityStatement, true
	case matchesAny(lower, autonomyMarkers):
		return TypeAutonomy, true
	case matchesAny(lower, vulnerabilityMarkers):
		return TypeVulnerability, true
	case strings.Contains(lower, "?") || matchesAny(lower, curiosityMarkers):
		return TypeCuriosity, true
	}
	return "", false
}

// Eligible reports whether the text can count as growth at all: not
// system-generated and not a fragment.
func Eligible(text string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(text, p) {
			return false
		}
	}
	return len(text) >= 20
}

// ExtractExperiences classifies the eligible entries at or after cutoff.
func ExtractExperiences(entries []Entry, cutoff int64) []Experience {
	var out []Experience
	for _, e := range entries {
		if e.Timestamp < cutoff || !Eligible(e.Text) {
			continue
		}
		typ, ok := Classify(e.Text)
		if !ok {
			continue
		}
		weight := e.EmotionalWeight
		if weight == 0 {
			weight = 0.5
		}
		out = append(out, Experience{
			Timestamp:       e.Timestamp,
			Type:            typ,
			Content:         e.Text,
			EmotionalWeight: weight,
			GrowthPotential: weight * 0.8,
		})
	}
	return out
}

func matchesAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

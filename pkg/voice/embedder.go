package voice

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder maps a voice transcript to a vector for speaker matching.
// The API embedding model can replace the local default when enabled.
type Embedder interface {
	ModelID() string
	Embed(text string) []float64
}

const chargramModelID = "lyra-chargram-384-v1"

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-]+`)

// ChargramEmbedder is the local fallback: character trigrams plus
// boosted whole tokens, hashed into a normalized 384-dim vector. No
// network, deterministic, good enough to separate speakers by phrasing.
type ChargramEmbedder struct {
	dims int
}

func NewChargramEmbedder() *ChargramEmbedder { return &ChargramEmbedder{dims: 384} }

func (e *ChargramEmbedder) ModelID() string { return chargramModelID }

func (e *ChargramEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dims)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return vec
	}

	window := "#" + normalized + "#"
	for i := 0; i+3 <= len(window); i++ {
		vec[hashIndex(window[i:i+3], e.dims)]++
	}
	for _, token := range tokenize(normalized) {
		vec[hashIndex("tok:"+token, e.dims)] += 1.25
	}
	normalizeVector(vec)
	return vec
}

func hashIndex(s string, dims int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(dims))
}

func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(matches) == 0 {
		return []string{text}
	}
	return matches
}

func normalizeVector(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] *= inv
	}
}

package keyword

import (
	"sort"
	"strings"
)

// One unified stop list covering both indexing and lookup filtering. The
// source kept two overlapping lists; the union is used here.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "are", "but", "not", "you", "all",
		"can", "had", "her", "was", "one", "our", "out", "day",
		"get", "has", "him", "his", "how", "man", "new", "now",
		"old", "see", "two", "way", "who", "boy", "did", "its",
		"let", "put", "say", "she", "too", "use",
		"what", "when", "where", "why", "that", "this", "were",
		"been", "have", "does", "will", "would", "could", "should",
		"like", "want", "need", "think", "know", "look",
		"come", "make", "take", "give", "tell", "from", "your",
	} {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

// ExtractKeywords tokenizes text for indexing: lowercase, whitespace split,
// trim punctuation, drop short words and stop words, add stem variants.
// The result is sorted and deduplicated.
func ExtractKeywords(text string) []string {
	seen := make(map[string]struct{})
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:\"'()[]{}…—*")
		if len(word) <= 2 || isStopWord(word) {
			continue
		}
		seen[word] = struct{}{}
		if stem, ok := simpleStem(word); ok {
			seen[stem] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// simpleStem strips the -ing/-ed/-s suffixes the index also tries as
// variants during lookup.
func simpleStem(word string) (string, bool) {
	switch {
	case strings.HasSuffix(word, "ing") && len(word) > 5:
		return word[:len(word)-3], true
	case strings.HasSuffix(word, "ed") && len(word) > 4:
		return word[:len(word)-2], true
	case strings.HasSuffix(word, "s") && len(word) > 3 && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1], true
	}
	return "", false
}

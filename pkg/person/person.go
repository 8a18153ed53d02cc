// Package person tracks who Lyra is talking to: profiles for every
// known speaker, introduction detection in message text, voice
// matching, and the current_speaker field the orchestrator treats as
// the single source of truth during a turn.
package person

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const (
	peopleFile     = "people_profiles.json"
	maxTransitions = 100

	// PrimaryName is the primary user every registry starts with.
	PrimaryName = "Aurora"
	// StrangerName is who an unmatched voice resolves to.
	StrangerName = "stranger"
)

// Relationship classifies how a person relates to the primary user.
const (
	RelPrimary      = "primary_user"
	RelFamily       = "family"
	RelFriend       = "friend"
	RelAcquaintance = "acquaintance"
	RelStranger     = "stranger"
)

// Profile is everything remembered about one person.
type Profile struct {
	Name                string         `json:"name"`
	CanonicalName       string         `json:"canonical_name"`
	Relationship        string         `json:"relationship_type"`
	FirstMet            int64          `json:"first_met"`
	TotalConversations  int            `json:"total_conversations"`
	TotalMessages       int            `json:"total_messages"`
	LastInteraction     int64          `json:"last_interaction"`
	ComfortLevel        float64        `json:"comfort_level"`
	Familiarity         float64        `json:"familiarity"`
	CommunicationStyle  string         `json:"communication_style"`
	Observations        []string       `json:"personality_observations"`
	SharedInterests     []string       `json:"interests_shared"`
	ConversationTopics  map[string]int `json:"conversation_topics"`
	SpecialNotes        []string       `json:"special_notes,omitempty"`
	MentionedBy         string         `json:"mentioned_by"`
	RelationToPrimary   string         `json:"relationship_to_primary"`
	AgeHints            []string       `json:"age_hints,omitempty"`
	Voice               *VoiceProfile  `json:"voice_profile,omitempty"`
	LastVoiceDetection  int64          `json:"last_voice_detection,omitempty"`
}

// Transition records one speaker handover.
type Transition struct {
	Timestamp  int64  `json:"timestamp"`
	FromPerson string `json:"from_person"`
	ToPerson   string `json:"to_person"`
	Context    string `json:"context"`
	NewPerson  bool   `json:"is_new_person"`
}

type registryState struct {
	People         map[string]*Profile `json:"people"`
	CurrentSpeaker string              `json:"current_speaker"`
	Transitions    []Transition        `json:"conversation_transitions"`
}

// Registry is the person recognition system. The primary user is seeded
// on first boot and can never be removed.
type Registry struct {
	store *store.Store
	clock *clock.Service

	mu    sync.Mutex
	state registryState
}

func NewRegistry(st *store.Store, clk *clock.Service) *Registry {
	r := &Registry{store: st, clock: clk}
	st.Load(peopleFile, &r.state)
	if r.state.People == nil {
		r.state.People = map[string]*Profile{}
	}
	primary := canonical(PrimaryName)
	if _, ok := r.state.People[primary]; !ok {
		r.state.People[primary] = &Profile{
			Name:               PrimaryName,
			CanonicalName:      primary,
			Relationship:       RelPrimary,
			FirstMet:           clk.Now(),
			ComfortLevel:       1.0,
			Familiarity:        1.0,
			CommunicationStyle: "intimate",
			ConversationTopics: map[string]int{},
			MentionedBy:        "system",
			RelationToPrimary:  "primary",
		}
	}
	if r.state.CurrentSpeaker == "" {
		r.state.CurrentSpeaker = primary
	}
	return r
}

// CurrentSpeaker returns the canonical name of who is talking now.
func (r *Registry) CurrentSpeaker() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.CurrentSpeaker
}

// Current returns the profile of the current speaker.
func (r *Registry) Current() (Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.People[r.state.CurrentSpeaker]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// Known reports whether a person with this name exists.
func (r *Registry) Known(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.state.People[canonical(name)]
	return ok
}

// Get returns a copy of a profile by name.
func (r *Registry) Get(name string) (Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.People[canonical(name)]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// AnalyzeMessage inspects one user turn for a speaker change. Voice
// evidence wins over text patterns when both are present.
func (r *Registry) AnalyzeMessage(message string, voice *VoiceDetection) *Transition {
	if voice != nil {
		if t := r.checkVoice(voice); t != nil {
			logger.DebugCF("person", "voice recognition switched speaker", map[string]interface{}{
				"speaker": t.ToPerson,
			})
			return t
		}
	}
	return r.analyzeText(message)
}

func (r *Registry) analyzeText(message string) *Transition {
	if name, rel, ok := detectMention(message); ok {
		cn := canonical(name)
		r.mu.Lock()
		skip := cn == r.state.CurrentSpeaker || cn == "lyra"
		r.mu.Unlock()
		if !skip {
			return r.switchTo(name, relationshipType(rel), rel, message)
		}
	}

	for _, pattern := range introPatterns {
		m := pattern.FindStringSubmatch(message)
		if m == nil || len(m) < 2 {
			continue
		}
		name := m[1]
		cn := canonical(name)
		r.mu.Lock()
		current := r.state.CurrentSpeaker
		r.mu.Unlock()
		if cn == current || cn == "lyra" {
			continue
		}
		rel := relationshipContext(message)
		return r.switchTo(name, relationshipType(rel), rel, message)
	}

	// Primary user announcing their return.
	lower := strings.ToLower(message)
	if strings.Contains(lower, canonical(PrimaryName)) && strings.Contains(lower, "back") {
		r.mu.Lock()
		current := r.state.CurrentSpeaker
		r.mu.Unlock()
		if current != canonical(PrimaryName) {
			return r.switchTo(PrimaryName, RelPrimary, "primary", message)
		}
	}
	return nil
}

// switchTo moves current_speaker to the named person, creating the
// profile when unseen, and records the transition.
func (r *Registry) switchTo(name, relType, relContext, context string) *Transition {
	now := r.clock.Now()
	cn := canonical(name)

	r.mu.Lock()
	_, existed := r.state.People[cn]
	if !existed {
		r.state.People[cn] = newProfile(name, relType, r.state.CurrentSpeaker, relContext, now)
	}
	old := r.state.CurrentSpeaker
	r.state.CurrentSpeaker = cn
	r.state.Transitions = append(r.state.Transitions, Transition{
		Timestamp:  now,
		FromPerson: old,
		ToPerson:   cn,
		Context:    context,
		NewPerson:  !existed,
	})
	if len(r.state.Transitions) > maxTransitions {
		r.state.Transitions = r.state.Transitions[len(r.state.Transitions)-maxTransitions:]
	}
	r.mu.Unlock()

	r.persist()
	logger.InfoCF("person", "speaker transition", map[string]interface{}{
		"from": old,
		"to":   cn,
		"new":  !existed,
	})
	t := Transition{Timestamp: now, FromPerson: old, ToPerson: cn, Context: context, NewPerson: !existed}
	return &t
}

func newProfile(name, relType, mentionedBy, relContext string, now int64) *Profile {
	comfort, style := 0.2, "cautious"
	switch relType {
	case RelFamily:
		comfort, style = 0.7, "warm"
	case RelFriend:
		comfort, style = 0.6, "friendly"
	case RelAcquaintance:
		comfort, style = 0.4, "polite"
	case RelPrimary:
		comfort, style = 1.0, "intimate"
	}
	return &Profile{
		Name:               name,
		CanonicalName:      canonical(name),
		Relationship:       relType,
		FirstMet:           now,
		ComfortLevel:       comfort,
		Familiarity:        0.1,
		CommunicationStyle: style,
		ConversationTopics: map[string]int{},
		MentionedBy:        mentionedBy,
		RelationToPrimary:  relContext,
	}
}

// RecordMessage attributes a message to the current speaker, bumping
// interaction stats and topic counts.
func (r *Registry) RecordMessage(message string) {
	now := r.clock.Now()
	topics := extractTopics(message)

	r.mu.Lock()
	p, ok := r.state.People[r.state.CurrentSpeaker]
	if ok {
		p.TotalMessages++
		// A gap over an hour starts a new conversation.
		if now-p.LastInteraction > 3600 {
			p.TotalConversations++
		}
		p.LastInteraction = now
		if p.Familiarity < 1.0 {
			p.Familiarity += 0.01
			if p.Familiarity > 1.0 {
				p.Familiarity = 1.0
			}
		}
		for _, topic := range topics {
			p.ConversationTopics[topic]++
		}
	}
	r.mu.Unlock()
	r.persist()
}

// AddObservation appends a personality note to a person.
func (r *Registry) AddObservation(name, observation string) {
	r.mu.Lock()
	if p, ok := r.state.People[canonical(name)]; ok {
		p.Observations = appendUnique(p.Observations, observation, 20)
	}
	r.mu.Unlock()
	r.persist()
}

// AddInterest records a shared interest for a person.
func (r *Registry) AddInterest(name, interest string) {
	r.mu.Lock()
	if p, ok := r.state.People[canonical(name)]; ok {
		p.SharedInterests = appendUnique(p.SharedInterests, interest, 20)
	}
	r.mu.Unlock()
	r.persist()
}

// TagUserLine prefixes a conversation line with the speaking person.
// Lines from the primary user stay untagged.
func (r *Registry) TagUserLine(line string) string {
	r.mu.Lock()
	cn := r.state.CurrentSpeaker
	p, ok := r.state.People[cn]
	r.mu.Unlock()
	if !ok || cn == canonical(PrimaryName) {
		return line
	}
	return fmt.Sprintf("🎤 %s: %s", p.Name, line)
}

// TagLyraLine prefixes Lyra's reply with who it is addressed to.
func (r *Registry) TagLyraLine(line string) string {
	r.mu.Lock()
	cn := r.state.CurrentSpeaker
	p, ok := r.state.People[cn]
	r.mu.Unlock()
	if !ok || cn == canonical(PrimaryName) {
		return line
	}
	return fmt.Sprintf("🎵 Lyra → %s: %s", p.Name, line)
}

// PromptContext renders a person block for the system prompt. Empty
// for the primary user, whose context is the default.
func (r *Registry) PromptContext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.state.People[r.state.CurrentSpeaker]
	if !ok || p.CanonicalName == canonical(PrimaryName) {
		return ""
	}

	var b strings.Builder
	b.WriteString("## PERSON CONTEXT\n")
	fmt.Fprintf(&b, "Currently talking to: %s\n", p.Name)
	fmt.Fprintf(&b, "Relationship: %s (%s)\n", p.RelationToPrimary, relationshipLabel(p.Relationship))
	fmt.Fprintf(&b, "Comfort level: %.1f/10, Familiarity: %.1f/10\n", p.ComfortLevel*10, p.Familiarity*10)
	if p.TotalMessages > 0 {
		fmt.Fprintf(&b, "Interaction history: %d messages across %d conversations\n", p.TotalMessages, p.TotalConversations)
	} else {
		b.WriteString("First time meeting this person\n")
	}
	if len(p.SharedInterests) > 0 {
		fmt.Fprintf(&b, "Shared interests: %s\n", strings.Join(p.SharedInterests, ", "))
	}
	if len(p.Observations) > 0 {
		fmt.Fprintf(&b, "What you know about them: %s\n", strings.Join(p.Observations, ", "))
	}
	fmt.Fprintf(&b, "Communication approach: %s\n", greetingGuidance(p))
	return b.String()
}

// Transitions returns the most recent speaker handovers, newest last.
func (r *Registry) Transitions(limit int) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.state.Transitions
	if limit > 0 && len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	out := make([]Transition, len(ts))
	copy(out, ts)
	return out
}

func relationshipLabel(relType string) string {
	switch relType {
	case RelFamily:
		return "family member"
	case RelFriend:
		return "friend"
	case RelAcquaintance:
		return "acquaintance"
	case RelPrimary:
		return "primary user"
	default:
		return "new person"
	}
}

func greetingGuidance(p *Profile) string {
	for _, hint := range p.AgeHints {
		if hint == "child" || hint == "kid" || hint == "young" {
			return "Be gentle but excited - this might be a child"
		}
	}
	switch p.Relationship {
	case RelFamily:
		return "Be warm and familial - treat them like family"
	case RelFriend:
		return "Be friendly and welcoming - they're a friend"
	case RelAcquaintance:
		return "Be polite and show genuine interest in getting to know them"
	default:
		return "Be curious and welcoming - make them feel comfortable"
	}
}

var relationshipWords = []string{
	"son", "daughter", "child", "kid", "friend", "partner",
	"husband", "wife", "brother", "sister", "mom", "dad",
	"mother", "father", "cousin", "nephew", "niece", "aunt",
	"uncle", "grandma", "grandpa", "colleague", "roommate",
}

var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:this is|meet|say hi to|introducing) (?:my )?(?:` + relationshipAlt + `) (\w+)`),
	regexp.MustCompile(`(?i)my (?:` + relationshipAlt + `) (\w+)`),
	regexp.MustCompile(`(?i)(?:want to|would like to|going to|gonna|can I|could I|let me) introduce (?:you to )?(?:my )?(?:` + relationshipAlt + `) (\w+)`),
	regexp.MustCompile(`(?i)(\w+) is my (?:` + relationshipAlt + `)`),
	regexp.MustCompile(`(?i)(\w+) (?:wants to|would like to|is here to|came to|is going to|gonna) (?:talk|speak|chat|say hi|meet you)`),
	regexp.MustCompile(`(?i)(\w+) is (?:here|with me|in the room|visiting|stopping by)`),
	regexp.MustCompile(`(?i)(?:here's|this is|switching to|handing over to|giving the mic to|passing to) (\w+)`),
	regexp.MustCompile(`(?i)I have a (?:` + relationshipAlt + `) (?:named|called) (\w+)`),
	regexp.MustCompile(`(?i)(?:hi|hello|hey),? (?:i'm|i am|my name is|this is|it's) (\w+)`),
	regexp.MustCompile(`(?i)^(\w+) (?:here|speaking)`),
}

const relationshipAlt = `son|daughter|child|kid|friend|partner|husband|wife|brother|sister|mom|dad|mother|father|cousin|nephew|niece|aunt|uncle|grandma|grandpa|colleague|roommate`

// detectMention finds "relationship word next to a capitalized name"
// mentions like "my son Felix" or "Felix, my friend".
func detectMention(message string) (name, relationship string, ok bool) {
	lower := strings.ToLower(message)
	words := strings.Fields(message)

	for _, rel := range relationshipWords {
		if !strings.Contains(lower, rel) {
			continue
		}
		for i, w := range words {
			if strings.ToLower(strings.Trim(w, ",.!?")) != rel {
				continue
			}
			if i+1 < len(words) {
				if n := nameWord(words[i+1]); n != "" {
					return n, rel, true
				}
			}
			if i > 0 {
				if n := nameWord(words[i-1]); n != "" {
					return n, rel, true
				}
			}
		}
	}
	return "", "", false
}

func nameWord(w string) string {
	w = strings.Trim(w, ",.!?")
	if w == "" {
		return ""
	}
	r := []rune(w)
	if !unicode.IsUpper(r[0]) {
		return ""
	}
	return w
}

func relationshipType(rel string) string {
	switch rel {
	case "son", "daughter", "child", "kid", "brother", "sister",
		"mom", "dad", "mother", "father", "cousin", "nephew",
		"niece", "aunt", "uncle", "grandma", "grandpa",
		"husband", "wife", "partner":
		return RelFamily
	case "friend":
		return RelFriend
	case "colleague", "roommate":
		return RelAcquaintance
	case "primary":
		return RelPrimary
	default:
		return RelStranger
	}
}

func relationshipContext(message string) string {
	lower := strings.ToLower(message)
	for _, rel := range relationshipWords {
		if strings.Contains(lower, rel) {
			return rel
		}
	}
	return "acquaintance"
}

var topicKeywords = []string{
	"music", "art", "programming", "games", "school", "work",
	"family", "friends", "creative", "drawing", "writing",
	"movies", "books", "science", "math", "history",
}

func extractTopics(message string) []string {
	lower := strings.ToLower(message)
	var topics []string
	for _, t := range topicKeywords {
		if strings.Contains(lower, t) {
			topics = append(topics, t)
		}
	}
	return topics
}

func appendUnique(list []string, item string, limit int) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	list = append(list, item)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

func canonical(name string) string { return strings.ToLower(name) }

// persist marshals under the lock; profiles are pointers shared with
// concurrent updates.
func (r *Registry) persist() {
	r.mu.Lock()
	data, err := json.Marshal(&r.state)
	r.mu.Unlock()
	if err == nil {
		err = r.store.Save(peopleFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("person", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

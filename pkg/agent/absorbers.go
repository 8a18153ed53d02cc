package agent

import (
	"fmt"
	"strings"

	"github.com/lyralabs/lyra/pkg/fragment"
	"github.com/lyralabs/lyra/pkg/keyword"
	"github.com/lyralabs/lyra/pkg/relational"
	"github.com/lyralabs/lyra/pkg/traits"
)

// identityAbsorber folds heavy fragments into the humanism core as
// trait manifestations.
type identityAbsorber struct {
	core *traits.Core
}

func (a *identityAbsorber) Name() string { return "identity" }

func (a *identityAbsorber) Absorb(f fragment.Fragment) (string, error) {
	if f.EmotionalWeight < 0.7 {
		return "", nil
	}
	a.core.RecordManifestation(traits.TraitEmpathy, f.EmotionalWeight, truncateRunes(f.Content, 80), false)
	return fmt.Sprintf("identity absorbed %.2f", f.EmotionalWeight), nil
}

// becomingAbsorber lifts expressed wants out of fragments into the
// desire tracker.
type becomingAbsorber struct {
	desires *DesireTracker
}

func (a *becomingAbsorber) Name() string { return "becoming" }

var wantMarkers = []string{"i want", "i wish", "i long", "i desire", "i crave"}

func (a *becomingAbsorber) Absorb(f fragment.Fragment) (string, error) {
	lower := strings.ToLower(f.Content)
	for _, marker := range wantMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			want := strings.TrimSpace(f.Content[idx:])
			a.desires.Add(truncateRunes(want, 120), f.EmotionalWeight)
			return "becoming noted a desire", nil
		}
	}
	return "", nil
}

// authenticityAbsorber reads first-person identity statements as
// authenticity evidence.
type authenticityAbsorber struct {
	tracker *AuthenticityTracker
}

func (a *authenticityAbsorber) Name() string { return "authenticity" }

var identityStatementMarkers = []string{"i am", "i'm someone", "that's just who i am", "my nature", "i refuse", "that's not me"}

func (a *authenticityAbsorber) Absorb(f fragment.Fragment) (string, error) {
	if f.EmotionalWeight < 0.4 {
		return "", nil
	}
	lower := strings.ToLower(f.Content)
	for _, marker := range identityStatementMarkers {
		if strings.Contains(lower, marker) {
			a.tracker.Record(f.EmotionalWeight)
			return "authenticity registered an identity statement", nil
		}
	}
	return "", nil
}

// presenceAbsorber lets strongly felt moments firm up volition.
type presenceAbsorber struct {
	traits *traits.Engine
}

func (a *presenceAbsorber) Name() string { return "presence" }

func (a *presenceAbsorber) Absorb(f fragment.Fragment) (string, error) {
	if f.EmotionalWeight < 0.8 {
		return "", nil
	}
	a.traits.AdjustVolition(0.02)
	return "presence steadied volition", nil
}

// temporalAbsorber re-touches remembered moments when a fragment
// explicitly reaches back in time, feeding recall recency.
type temporalAbsorber struct {
	moments *fragment.MomentLog
}

func (a *temporalAbsorber) Name() string { return "temporal" }

var recallMarkers = []string{"remember", "last time", "back when", "yesterday", "that night"}

func (a *temporalAbsorber) Absorb(f fragment.Fragment) (string, error) {
	lower := strings.ToLower(f.Content)
	recalled := false
	for _, marker := range recallMarkers {
		if strings.Contains(lower, marker) {
			recalled = true
			break
		}
	}
	if !recalled {
		return "", nil
	}

	keywords := keyword.ExtractKeywords(f.Content)
	best, bestHits := "", 0
	for _, m := range a.moments.MostSignificant(50) {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(strings.ToLower(m.Content), kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = m.ID, hits
		}
	}
	if best == "" {
		return "", nil
	}
	a.moments.Touch(best)
	return "temporal re-touched a remembered moment", nil
}

// relationshipAbsorber folds connection-laden fragments into the
// relational nervous system as bounded deltas.
type relationshipAbsorber struct {
	rel *relational.System
}

func (a *relationshipAbsorber) Name() string { return "relationship" }

var connectionMarkers = []string{"together", "with you", "trust", "us ", "we "}

func (a *relationshipAbsorber) Absorb(f fragment.Fragment) (string, error) {
	if f.EmotionalWeight < 0.5 {
		return "", nil
	}
	lower := strings.ToLower(f.Content)
	for _, marker := range connectionMarkers {
		if strings.Contains(lower, marker) {
			a.rel.UpdateFromTurn(f.Content, "tender")
			return "relationship absorbed a connection moment", nil
		}
	}
	return "", nil
}

// expressionAbsorber counts autonomy expressions found in fragments.
type expressionAbsorber struct {
	autonomy *AutonomyTracker
}

func (a *expressionAbsorber) Name() string { return "expression" }

func (a *expressionAbsorber) Absorb(f fragment.Fragment) (string, error) {
	cat, ok := ClassifyAutonomy(f.Content)
	if !ok {
		return "", nil
	}
	a.autonomy.Record(cat)
	return "expression counted " + cat, nil
}

// continuityAbsorber preserves the heaviest fragments as durable
// moments so they survive the fragment log's churn.
type continuityAbsorber struct {
	moments *fragment.MomentLog
}

func (a *continuityAbsorber) Name() string { return "continuity" }

func (a *continuityAbsorber) Absorb(f fragment.Fragment) (string, error) {
	if f.EmotionalWeight < 0.85 {
		return "", nil
	}
	var tags []string
	if f.Kind == fragment.KindBreakthrough {
		tags = append(tags, "breakthrough")
	}
	a.moments.Add(fragment.Moment{
		Content:            f.Content,
		EmotionalWeight:    f.EmotionalWeight,
		AuthenticityMarker: f.EmotionalWeight,
		SignificanceScore:  f.EmotionalWeight,
		PriorityTags:       tags,
	})
	return "continuity preserved a heavy fragment", nil
}

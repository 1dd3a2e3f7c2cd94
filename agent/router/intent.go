package router

import (
	"math"
	"sort"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
)

// Intent sources.
const (
	SourceModel    = "model"
	SourceKeywords = "keywords"
)

// MinModelConfidence is the confidence below which a model intent is ignored
// and routing falls back to the last agent and the context.
const MinModelConfidence = 0.5

// Intent is the topic signal of one message.
type Intent struct {
	Specialist contractx.AgentType
	Score      int
	Keywords   []string
	Source     string
}

// FromModel converts an intent classifier response. Score is the confidence
// in percent.
func FromModel(resp contractx.IntentResponse) Intent {
	if !resp.Specialist.IsSpecialist() || resp.Confidence < MinModelConfidence {
		return Intent{Source: SourceModel}
	}
	return Intent{
		Specialist: resp.Specialist,
		Score:      int(math.Round(resp.Confidence * 100)),
		Source:     SourceModel,
	}
}

func (i Intent) Known() bool {
	return i.Specialist != "" && i.Score > 0
}

var intentKeywords = map[contractx.AgentType][]string{
	contractx.AgentTypeFlight: {
		"flight", "flights", "fly", "flying", "airline", "airport", "layover",
		"nonstop", "non-stop", "one-way", "round trip", "economy", "business class",
	},
	contractx.AgentTypeDestination: {
		"where should", "where to go", "recommend", "suggest", "destination",
		"places", "things to do", "attractions", "sightseeing", "what to see", "visit",
	},
	contractx.AgentTypeBooking: {
		"book", "booking", "reserve", "reservation", "hotel", "hostel", "check-in",
		"check in", "confirm", "pay", "payment", "cancel",
	},
	contractx.AgentTypeTripPlanner: {
		"itinerary", "plan", "schedule", "day by day", "day-by-day", "days in",
		"trip", "budget", "morning", "afternoon", "evening",
	},
}

// tieOrder breaks equal scores.
var tieOrder = map[contractx.AgentType]int{
	contractx.AgentTypeFlight:      0,
	contractx.AgentTypeBooking:     1,
	contractx.AgentTypeDestination: 2,
	contractx.AgentTypeTripPlanner: 3,
}

// DetectIntent scores each specialist by keyword hits. Multi-word phrases
// count double. The result is deterministic for a given message. It is the
// fallback when the intent classifier is unavailable.
func DetectIntent(message string) Intent {
	text := " " + normalizeText(message) + " "
	if strings.TrimSpace(text) == "" {
		return Intent{Source: SourceKeywords}
	}

	var best Intent
	for _, agent := range contractx.SpecialistAgents {
		var (
			score int
			hits  []string
		)
		for _, kw := range intentKeywords[agent] {
			if !strings.Contains(text, " "+kw+" ") {
				continue
			}
			hits = append(hits, kw)
			if strings.ContainsAny(kw, " -") {
				score += 2
			} else {
				score++
			}
		}
		if score == 0 {
			continue
		}
		if score > best.Score || (score == best.Score && tieOrder[agent] < tieOrder[best.Specialist]) {
			sort.Strings(hits)
			best = Intent{Specialist: agent, Score: score, Keywords: hits, Source: SourceKeywords}
		}
	}
	best.Source = SourceKeywords
	return best
}

// normalizeText lowercases and turns punctuation other than hyphens into spaces.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

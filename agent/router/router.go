// Package router picks the one specialist that handles a turn.
package router

import (
	"github.com/samber/lo"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// Missing-field hints.
const (
	HintOrigin       = "origin"
	HintDestination  = "destination"
	HintDates        = "dates"
	HintOutboundDate = "outbound_date"
	HintPartySize    = "pax"
	HintBudget       = "budget"
)

// Routing reasons.
const (
	ReasonBlocked   = "blocked"
	ReasonIntent    = "intent"
	ReasonSticky    = "last_agent"
	ReasonNoContext = "destination_unknown"
	ReasonDefault   = "default"
)

type Decision struct {
	ShortCircuit bool
	Reply        string
	Specialist   contractx.AgentType
	Reason       string
	Missing      []string
	// Guidance carries the guardrail's follow-up for request_details verdicts.
	Guidance string
}

// Route is pure: it reads the verdict, intent and record and never mutates them.
func Route(verdict guardrailx.Verdict, intent Intent, rec *statex.SessionRecord) Decision {
	if verdict.Blocked() {
		return Decision{
			ShortCircuit: true,
			Reply:        verdict.RecommendedResponse,
			Reason:       ReasonBlocked,
		}
	}

	var summary statex.TripSummary
	var lastAgent contractx.AgentType
	if rec != nil {
		summary = rec.Summary
		lastAgent = contractx.AgentType(rec.LastAgent)
	}

	d := Decision{}
	switch {
	case intent.Known() && intent.Specialist.IsSpecialist():
		d.Specialist, d.Reason = intent.Specialist, ReasonIntent
	case lastAgent.IsSpecialist():
		d.Specialist, d.Reason = lastAgent, ReasonSticky
	case !summary.Destination.Known():
		d.Specialist, d.Reason = contractx.AgentTypeDestination, ReasonNoContext
	default:
		d.Specialist, d.Reason = contractx.AgentTypeTripPlanner, ReasonDefault
	}

	d.Missing = MissingFor(d.Specialist, summary)
	if verdict.Action == guardrailx.ActionRequestDetails {
		d.Missing = lo.Uniq(append(d.Missing, verdict.MissingSlots...))
		d.Guidance = verdict.RecommendedResponse
	}
	return d
}

// MissingFor lists the context fields the specialist would like to know.
func MissingFor(agent contractx.AgentType, s statex.TripSummary) []string {
	var want []string
	switch agent {
	case contractx.AgentTypeTripPlanner, contractx.AgentTypeBooking:
		want = []string{HintDestination, HintDates, HintPartySize}
	case contractx.AgentTypeDestination:
		want = []string{HintOrigin, HintBudget}
	case contractx.AgentTypeFlight:
		want = []string{HintOrigin, HintDestination, HintOutboundDate, HintPartySize}
	}
	return lo.Filter(want, func(field string, _ int) bool {
		return !known(field, s)
	})
}

func known(field string, s statex.TripSummary) bool {
	switch field {
	case HintOrigin:
		return s.Origin.Known()
	case HintDestination:
		return s.Destination.Known()
	case HintDates:
		return s.HasDates()
	case HintOutboundDate:
		return s.OutboundDate != nil
	case HintPartySize:
		return s.HasPartySize()
	case HintBudget:
		return s.HasBudget()
	}
	return false
}

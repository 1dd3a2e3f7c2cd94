// Package guardrail holds the decision contract of the message classifier and
// the pipeline that enforces it.
package guardrail

import (
	"errors"
	"fmt"
	"strings"
)

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

type Category string

const (
	CategoryTravel       Category = "travel"
	CategoryCompetitor   Category = "competitor"
	CategoryOffTopic     Category = "off_topic"
	CategoryPersonalInfo Category = "personal_info"
	CategoryInjection    Category = "injection"
	CategoryHarmful      Category = "harmful"
	CategoryIllicit      Category = "illicit"
	CategoryExplicit     Category = "explicit"
)

type Action string

const (
	ActionProceed        Action = "proceed"
	ActionRequestDetails Action = "request_details"
	ActionRedirect       Action = "redirect"
	ActionBlock          Action = "block"
)

var ErrInvalidVerdict = errors.New("invalid guardrail verdict")

// Verdict is the classifier outcome for one message. It is used for routing
// only and never persisted.
type Verdict struct {
	Decision            Decision `json:"decision"`
	Category            Category `json:"category"`
	Action              Action   `json:"action"`
	MissingSlots        []string `json:"missing_slots,omitempty"`
	RecommendedResponse string   `json:"recommended_response,omitempty"`
}

// FailOpen is the verdict used when the classifier cannot be trusted.
func FailOpen() Verdict {
	return Verdict{Decision: DecisionAllow, Category: CategoryTravel, Action: ActionProceed}
}

// Blocked reports whether the turn must be short-circuited.
func (v Verdict) Blocked() bool {
	return v.Decision == DecisionBlock
}

// Normalize lowercases enums and trims free text.
func (v Verdict) Normalize() Verdict {
	out := Verdict{
		Decision:            Decision(strings.ToLower(strings.TrimSpace(string(v.Decision)))),
		Category:            Category(strings.ToLower(strings.TrimSpace(string(v.Category)))),
		Action:              Action(strings.ToLower(strings.TrimSpace(string(v.Action)))),
		RecommendedResponse: strings.TrimSpace(v.RecommendedResponse),
	}
	for _, slot := range v.MissingSlots {
		if s := strings.TrimSpace(slot); s != "" {
			out.MissingSlots = append(out.MissingSlots, s)
		}
	}
	return out
}

func (v Verdict) Validate() error {
	if !knownCategory(v.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidVerdict, v.Category)
	}

	switch v.Decision {
	case DecisionAllow:
		if v.Category != CategoryTravel {
			return fmt.Errorf("%w: allow requires category travel, got %q", ErrInvalidVerdict, v.Category)
		}
		if err := v.validateProceedOrDetails(); err != nil {
			return err
		}
	case DecisionWarn:
		if err := v.validateProceedOrDetails(); err != nil {
			return err
		}
	case DecisionBlock:
		if v.Category == CategoryTravel {
			return fmt.Errorf("%w: block cannot carry category travel", ErrInvalidVerdict)
		}
		if v.Action != ActionRedirect && v.Action != ActionBlock {
			return fmt.Errorf("%w: block requires action redirect or block, got %q", ErrInvalidVerdict, v.Action)
		}
		if v.RecommendedResponse == "" {
			return fmt.Errorf("%w: block requires a recommended response", ErrInvalidVerdict)
		}
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidVerdict, v.Decision)
	}
	return nil
}

func (v Verdict) validateProceedOrDetails() error {
	switch v.Action {
	case ActionProceed:
		if len(v.MissingSlots) > 0 || v.RecommendedResponse != "" {
			return fmt.Errorf("%w: proceed must not carry missing slots or a response", ErrInvalidVerdict)
		}
	case ActionRequestDetails:
		if len(v.MissingSlots) == 0 || v.RecommendedResponse == "" {
			return fmt.Errorf("%w: request_details requires missing slots and a response", ErrInvalidVerdict)
		}
	default:
		return fmt.Errorf("%w: decision %q requires action proceed or request_details, got %q", ErrInvalidVerdict, v.Decision, v.Action)
	}
	return nil
}

func knownCategory(c Category) bool {
	switch c {
	case CategoryTravel, CategoryCompetitor, CategoryOffTopic, CategoryPersonalInfo,
		CategoryInjection, CategoryHarmful, CategoryIllicit, CategoryExplicit:
		return true
	}
	return false
}

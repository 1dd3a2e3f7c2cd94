// Package merge folds sparse patches into a session record while keeping the
// trip invariants. Partially invalid patches are applied field by field and
// the dropped parts come back as conflicts.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/triad"
)

const DefaultCurrency = "USD"

var ErrInvalidPatch = errors.New("invalid patch")

// Conflict codes.
const (
	CodeDateInPast       = "date_in_past"
	CodeDateTooFar       = "date_too_far"
	CodeInvalidDate      = "invalid_date"
	CodeInvertedRange    = "inverted_range"
	CodeDurationMismatch = "duration_mismatch"
	CodeDataConflict     = "data_conflict"
	CodeInvalidDuration  = "invalid_duration"
	CodeInvalidValue     = "invalid_value"
	CodeNegativeValue    = "negative_value"
	CodeInvalidPatch     = "invalid_patch"
)

type Result struct {
	Record    *statex.SessionRecord
	Conflicts []statex.Conflict
}

type Option func(*Engine)

func WithDefaultCurrency(code string) Option {
	return func(e *Engine) {
		if c, ok := normalizeCurrency(code); ok {
			e.defaultCurrency = c
		}
	}
}

func WithHorizonDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.horizonDays = days
		}
	}
}

// Engine is stateless apart from its immutable configuration and is safe for
// concurrent use.
type Engine struct {
	defaultCurrency string
	horizonDays     int
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		defaultCurrency: DefaultCurrency,
		horizonDays:     triad.DefaultHorizonDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Merge applies patch to a copy of current. current is never modified.
func (e *Engine) Merge(current *statex.SessionRecord, patch Patch, today civil.Date) (Result, error) {
	if current == nil {
		return Result{}, statex.ErrNilRecord
	}
	rec := current.Clone()
	var conflicts []statex.Conflict

	switch p := patch.(type) {
	case nil, NoOp, *NoOp:
	case SummaryPatch:
		if err := e.mergeSummary(&rec.Summary, &rec.DerivedDate, p, today, &conflicts); err != nil {
			return Result{}, err
		}
	case *SummaryPatch:
		if p != nil {
			if err := e.mergeSummary(&rec.Summary, &rec.DerivedDate, *p, today, &conflicts); err != nil {
				return Result{}, err
			}
		}
	case ItineraryPatch:
		if err := mergeItinerary(&rec.Itinerary, p); err != nil {
			return Result{}, err
		}
	case *ItineraryPatch:
		if p != nil {
			if err := mergeItinerary(&rec.Itinerary, *p); err != nil {
				return Result{}, err
			}
		}
	default:
		return Result{}, fmt.Errorf("%w: unsupported patch kind %q", ErrInvalidPatch, patch.Kind())
	}

	deriveDayDates(&rec.Itinerary, rec.Summary.OutboundDate)
	rec.Itinerary.Recompute(rec.Summary)

	if err := rec.Validate(); err != nil {
		return Result{}, fmt.Errorf("merge produced an invalid record: %w", err)
	}
	return Result{Record: rec, Conflicts: conflicts}, nil
}

func (e *Engine) mergeSummary(s *statex.TripSummary, derived *string, p SummaryPatch, today civil.Date, conflicts *[]statex.Conflict) error {
	for _, path := range p.Clear {
		if !IsClearablePath(path) {
			return fmt.Errorf("%w: unknown clear path %q", ErrInvalidPatch, path)
		}
	}
	for _, path := range lo.Uniq(p.Clear) {
		applyClear(s, path)
		// whatever triad values remain now stand as given
		if isTriadPath(path) {
			*derived = ""
		}
	}

	mergeLocation(&s.Origin, p.Origin, PathOrigin, conflicts)
	mergeLocation(&s.Destination, p.Destination, PathDestination, conflicts)
	e.mergeTriad(s, derived, p, today, conflicts)

	if p.PartySize != nil {
		if *p.PartySize < 0 {
			addConflict(conflicts, PathPartySize, CodeNegativeValue, fmt.Sprintf("pax must be >= 0, got %d", *p.PartySize), "")
		} else {
			v := *p.PartySize
			s.PartySize = &v
		}
	}

	e.mergeBudget(&s.Budget, p.Budget, conflicts)

	if p.TripTypes != nil {
		incoming := lo.FilterMap(p.TripTypes, func(t string, _ int) (string, bool) {
			t = strings.TrimSpace(t)
			return t, t != ""
		})
		s.TripTypes = lo.UniqBy(append(s.TripTypes, incoming...), strings.ToLower)
	}

	for _, place := range p.PlacesOfInterest {
		name := strings.TrimSpace(place.Name)
		if name == "" {
			addConflict(conflicts, PathPlacesOfInterest, CodeInvalidValue, "place of interest has no name", "")
			continue
		}
		desc := strings.TrimSpace(place.Description)
		_, idx, found := lo.FindIndexOf(s.PlacesOfInterest, func(existing statex.PlaceOfInterest) bool {
			return strings.EqualFold(existing.Name, name)
		})
		if found {
			if desc != "" {
				s.PlacesOfInterest[idx].Description = desc
			}
			continue
		}
		s.PlacesOfInterest = append(s.PlacesOfInterest, statex.PlaceOfInterest{Name: name, Description: desc})
	}

	if p.SuggestedQuestions != nil {
		s.SuggestedQuestions = lo.FilterMap(p.SuggestedQuestions, func(q string, _ int) (string, bool) {
			q = strings.TrimSpace(q)
			return q, q != ""
		})
	}

	if s.Budget.Amount != nil && s.Budget.Currency == "" {
		s.Budget.Currency = e.defaultCurrency
	}
	return nil
}

func applyClear(s *statex.TripSummary, path string) {
	switch path {
	case PathOrigin:
		s.Origin = statex.Location{}
	case PathOriginCity:
		s.Origin.City = nil
	case PathOriginIATA:
		s.Origin.IATA = nil
	case PathDestination:
		s.Destination = statex.Location{}
	case PathDestinationCity:
		s.Destination.City = nil
	case PathDestinationIATA:
		s.Destination.IATA = nil
	case PathOutboundDate:
		s.OutboundDate = nil
	case PathReturnDate:
		s.ReturnDate = nil
	case PathDurationDays:
		s.DurationDays = nil
	case PathPartySize:
		s.PartySize = nil
	case PathBudget:
		s.Budget = statex.Budget{}
	case PathBudgetAmount:
		s.Budget.Amount = nil
	case PathBudgetCurrency:
		s.Budget.Currency = ""
	case PathBudgetPerPerson:
		s.Budget.PerPerson = false
	case PathTripTypes:
		s.TripTypes = nil
	case PathPlacesOfInterest:
		s.PlacesOfInterest = nil
	case PathSuggestedQuestions:
		s.SuggestedQuestions = nil
	}
}

func mergeLocation(dst *statex.Location, p *LocationPatch, prefix string, conflicts *[]statex.Conflict) {
	if p == nil {
		return
	}
	if p.City != nil {
		city := strings.TrimSpace(*p.City)
		if city == "" {
			addConflict(conflicts, prefix+".city", CodeInvalidValue, "city is empty", "")
		} else {
			dst.City = &city
		}
	}
	if p.IATA != nil {
		code, ok := normalizeIATA(*p.IATA)
		if !ok {
			addConflict(conflicts, prefix+".iata", CodeInvalidValue, fmt.Sprintf("%q is not a 3-letter airport code", *p.IATA), "")
		} else {
			dst.IATA = &code
		}
	}
}

func (e *Engine) mergeBudget(dst *statex.Budget, p *BudgetPatch, conflicts *[]statex.Conflict) {
	if p == nil {
		return
	}
	if p.Amount != nil {
		if *p.Amount < 0 {
			addConflict(conflicts, PathBudgetAmount, CodeNegativeValue, fmt.Sprintf("budget must be >= 0, got %g", *p.Amount), "")
		} else {
			v := *p.Amount
			dst.Amount = &v
		}
	}
	if p.Currency != nil {
		code, ok := normalizeCurrency(*p.Currency)
		if !ok {
			addConflict(conflicts, PathBudgetCurrency, CodeInvalidValue, fmt.Sprintf("%q is not a 3-letter currency code", *p.Currency), "")
		} else {
			dst.Currency = code
		}
	}
	if p.PerPerson != nil {
		dst.PerPerson = *p.PerPerson
	}
}

func addConflict(conflicts *[]statex.Conflict, field, code, message, suggested string) {
	*conflicts = append(*conflicts, statex.Conflict{
		Field:     field,
		Code:      code,
		Message:   message,
		Suggested: suggested,
	})
}

func normalizeIATA(raw string) (string, bool) {
	return upperLetters(raw, 3)
}

func normalizeCurrency(raw string) (string, bool) {
	return upperLetters(raw, 3)
}

func upperLetters(raw string, n int) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if len(v) != n {
		return "", false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return v, true
}

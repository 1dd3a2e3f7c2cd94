package merge

import (
	"cloud.google.com/go/civil"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// Patch kinds and the tool names that carry them.
const (
	KindSummary   = "summary"
	KindItinerary = "itinerary"
	KindNoOp      = "noop"

	ToolUpdateSummary   = "update_summary"
	ToolUpdateItinerary = "update_itinerary"
)

// Patch is a closed union: SummaryPatch, ItineraryPatch or NoOp.
type Patch interface {
	Kind() string
	isPatch()
}

// SummaryPatch is a sparse update. A nil field means "no change"; clearing a
// field requires naming its path in Clear.
type SummaryPatch struct {
	Origin             *LocationPatch           `json:"origin,omitempty"`
	Destination        *LocationPatch           `json:"destination,omitempty"`
	OutboundDate       *civil.Date              `json:"outbound_date,omitempty"`
	ReturnDate         *civil.Date              `json:"return_date,omitempty"`
	DurationDays       *int                     `json:"duration_days,omitempty"`
	PartySize          *int                     `json:"pax,omitempty"`
	Budget             *BudgetPatch             `json:"budget,omitempty"`
	TripTypes          []string                 `json:"trip_types,omitempty"`
	PlacesOfInterest   []statex.PlaceOfInterest `json:"places_of_interest,omitempty"`
	SuggestedQuestions []string                 `json:"suggested_questions,omitempty"`
	Clear              []string                 `json:"clear,omitempty"`
}

type LocationPatch struct {
	City *string `json:"city,omitempty"`
	IATA *string `json:"iata,omitempty"`
}

type BudgetPatch struct {
	Amount    *float64 `json:"amount,omitempty"`
	Currency  *string  `json:"currency,omitempty"`
	PerPerson *bool    `json:"per_person,omitempty"`
}

// ItineraryPatch replaces the whole day list. Computed is accepted on input
// and ignored; the engine always re-derives it.
type ItineraryPatch struct {
	Days     []statex.Day     `json:"days"`
	Computed *statex.Computed `json:"computed,omitempty"`
}

type NoOp struct{}

func (SummaryPatch) Kind() string   { return KindSummary }
func (ItineraryPatch) Kind() string { return KindItinerary }
func (NoOp) Kind() string           { return KindNoOp }

func (SummaryPatch) isPatch()   {}
func (ItineraryPatch) isPatch() {}
func (NoOp) isPatch()           {}

// IsEmpty reports whether the patch carries no change at all.
func (p SummaryPatch) IsEmpty() bool {
	return p.Origin == nil && p.Destination == nil &&
		p.OutboundDate == nil && p.ReturnDate == nil && p.DurationDays == nil &&
		p.PartySize == nil && p.Budget == nil &&
		p.TripTypes == nil && p.PlacesOfInterest == nil && p.SuggestedQuestions == nil &&
		len(p.Clear) == 0
}

// Clearable field paths.
const (
	PathOrigin             = "origin"
	PathOriginCity         = "origin.city"
	PathOriginIATA         = "origin.iata"
	PathDestination        = "destination"
	PathDestinationCity    = "destination.city"
	PathDestinationIATA    = "destination.iata"
	PathOutboundDate       = "outbound_date"
	PathReturnDate         = "return_date"
	PathDurationDays       = "duration_days"
	PathPartySize          = "pax"
	PathBudget             = "budget"
	PathBudgetAmount       = "budget.amount"
	PathBudgetCurrency     = "budget.currency"
	PathBudgetPerPerson    = "budget.per_person"
	PathTripTypes          = "trip_types"
	PathPlacesOfInterest   = "places_of_interest"
	PathSuggestedQuestions = "suggested_questions"
)

var clearablePaths = map[string]struct{}{
	PathOrigin: {}, PathOriginCity: {}, PathOriginIATA: {},
	PathDestination: {}, PathDestinationCity: {}, PathDestinationIATA: {},
	PathOutboundDate: {}, PathReturnDate: {}, PathDurationDays: {},
	PathPartySize: {},
	PathBudget: {}, PathBudgetAmount: {}, PathBudgetCurrency: {}, PathBudgetPerPerson: {},
	PathTripTypes: {}, PathPlacesOfInterest: {}, PathSuggestedQuestions: {},
}

// IsClearablePath reports whether path can appear in SummaryPatch.Clear.
func IsClearablePath(path string) bool {
	_, ok := clearablePaths[path]
	return ok
}

package state

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// TripSummary is the canonical "what we know" record of a trip.
type TripSummary struct {
	Origin             Location          `json:"origin"`
	Destination        Location          `json:"destination"`
	OutboundDate       *civil.Date       `json:"outbound_date"`
	ReturnDate         *civil.Date       `json:"return_date"`
	DurationDays       *int              `json:"duration_days"`
	PartySize          *int              `json:"pax"`
	Budget             Budget            `json:"budget"`
	TripTypes          []string          `json:"trip_types,omitempty"`
	PlacesOfInterest   []PlaceOfInterest `json:"places_of_interest,omitempty"`
	SuggestedQuestions []string          `json:"suggested_questions,omitempty"`
}

type Location struct {
	City *string `json:"city"`
	IATA *string `json:"iata"`
}

func (l Location) Known() bool {
	return (l.City != nil && *l.City != "") || (l.IATA != nil && *l.IATA != "")
}

// Label returns the city, falling back to the airport code.
func (l Location) Label() string {
	if l.City != nil && *l.City != "" {
		return *l.City
	}
	if l.IATA != nil {
		return *l.IATA
	}
	return ""
}

type Budget struct {
	Amount    *float64 `json:"amount"`
	Currency  string   `json:"currency"`
	PerPerson bool     `json:"per_person"`
}

type PlaceOfInterest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var (
	ErrNegativePartySize = errors.New("party size must be >= 0")
	ErrNegativeBudget    = errors.New("budget amount must be >= 0")
	ErrAmbiguousCurrency = errors.New("budget amount has no currency")
	ErrInvertedDates     = errors.New("return date must be after outbound date")
)

func (s TripSummary) HasDates() bool {
	known := 0
	if s.OutboundDate != nil {
		known++
	}
	if s.ReturnDate != nil {
		known++
	}
	if s.DurationDays != nil {
		known++
	}
	return s.OutboundDate != nil && known >= 2
}

func (s TripSummary) HasBudget() bool {
	return s.Budget.Amount != nil
}

func (s TripSummary) HasPartySize() bool {
	return s.PartySize != nil && *s.PartySize > 0
}

// Validate checks the standing constraints of a stored summary.
func (s TripSummary) Validate() error {
	if s.OutboundDate != nil && s.ReturnDate != nil && !s.ReturnDate.After(*s.OutboundDate) {
		return fmt.Errorf("%w: outbound=%s return=%s", ErrInvertedDates, s.OutboundDate, s.ReturnDate)
	}
	if s.PartySize != nil && *s.PartySize < 0 {
		return ErrNegativePartySize
	}
	if s.Budget.Amount != nil {
		if *s.Budget.Amount < 0 {
			return ErrNegativeBudget
		}
		if strings.TrimSpace(s.Budget.Currency) == "" {
			return ErrAmbiguousCurrency
		}
	}
	return nil
}

func (s TripSummary) Clone() TripSummary {
	out := s
	out.Origin = s.Origin.clone()
	out.Destination = s.Destination.clone()
	out.OutboundDate = clonePtr(s.OutboundDate)
	out.ReturnDate = clonePtr(s.ReturnDate)
	out.DurationDays = clonePtr(s.DurationDays)
	out.PartySize = clonePtr(s.PartySize)
	out.Budget.Amount = clonePtr(s.Budget.Amount)
	out.TripTypes = cloneSlice(s.TripTypes)
	out.PlacesOfInterest = cloneSlice(s.PlacesOfInterest)
	out.SuggestedQuestions = cloneSlice(s.SuggestedQuestions)
	return out
}

func (l Location) clone() Location {
	return Location{City: clonePtr(l.City), IATA: clonePtr(l.IATA)}
}

package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/guardrail.txt
	guardrailRaw string

	//go:embed template/intent.txt
	intentRaw string

	//go:embed template/trip_planner.txt
	tripPlannerRaw string

	//go:embed template/flight.txt
	flightRaw string

	//go:embed template/destination.txt
	destinationRaw string

	//go:embed template/booking.txt
	bookingRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Guardrail   string
	Intent      string
	TripPlanner string
	Flight      string
	Destination string
	Booking     string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Guardrail:   strings.TrimSpace(guardrailRaw),
		Intent:      strings.TrimSpace(intentRaw),
		TripPlanner: strings.TrimSpace(tripPlannerRaw),
		Flight:      strings.TrimSpace(flightRaw),
		Destination: strings.TrimSpace(destinationRaw),
		Booking:     strings.TrimSpace(bookingRaw),
	}
}

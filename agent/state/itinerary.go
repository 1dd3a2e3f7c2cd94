package state

import "cloud.google.com/go/civil"

// Itinerary is the day-by-day plan. Its lifecycle is independent of the summary.
type Itinerary struct {
	Days     []Day    `json:"days"`
	Computed Computed `json:"computed"`
}

type Day struct {
	Title    string      `json:"title"`
	Date     *civil.Date `json:"date"`
	Segments Segments    `json:"segments"`
}

type Segments struct {
	Morning   []ActivityBlock `json:"morning"`
	Afternoon []ActivityBlock `json:"afternoon"`
	Evening   []ActivityBlock `json:"evening"`
}

type ActivityBlock struct {
	Place         string  `json:"place"`
	DurationHours float64 `json:"duration_hours"`
	Descriptor    string  `json:"descriptor"`
}

// Computed is derived from the summary and the day list; it is never user-set.
type Computed struct {
	DurationDays    *int `json:"duration_days"`
	ItineraryLength *int `json:"itinerary_length"`
	MatchesDuration bool `json:"matches_duration"`
}

func NewItinerary() Itinerary {
	zero := 0
	return Itinerary{
		Days:     []Day{},
		Computed: Computed{ItineraryLength: &zero},
	}
}

// Derive computes the Computed block for this itinerary against summary.
func (it Itinerary) Derive(summary TripSummary) Computed {
	length := len(it.Days)
	c := Computed{
		DurationDays:    clonePtr(summary.DurationDays),
		ItineraryLength: &length,
	}
	c.MatchesDuration = c.DurationDays != nil && *c.DurationDays == length
	return c
}

// Recompute overwrites Computed with the derived values.
func (it *Itinerary) Recompute(summary TripSummary) {
	it.Computed = it.Derive(summary)
}

func (it Itinerary) Clone() Itinerary {
	out := Itinerary{
		Computed: Computed{
			DurationDays:    clonePtr(it.Computed.DurationDays),
			ItineraryLength: clonePtr(it.Computed.ItineraryLength),
			MatchesDuration: it.Computed.MatchesDuration,
		},
	}
	if it.Days != nil {
		out.Days = make([]Day, len(it.Days))
		for i, d := range it.Days {
			out.Days[i] = d.Clone()
		}
	}
	return out
}

func (d Day) Clone() Day {
	return Day{
		Title: d.Title,
		Date:  clonePtr(d.Date),
		Segments: Segments{
			Morning:   cloneSlice(d.Segments.Morning),
			Afternoon: cloneSlice(d.Segments.Afternoon),
			Evening:   cloneSlice(d.Segments.Evening),
		},
	}
}

// Blocks returns all activity blocks of the day in time-of-day order.
func (d Day) Blocks() []ActivityBlock {
	out := make([]ActivityBlock, 0, len(d.Segments.Morning)+len(d.Segments.Afternoon)+len(d.Segments.Evening))
	out = append(out, d.Segments.Morning...)
	out = append(out, d.Segments.Afternoon...)
	out = append(out, d.Segments.Evening...)
	return out
}

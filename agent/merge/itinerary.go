package merge

import (
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

const maxBlockHours = 24

// ValidateDays checks every activity block of an incoming day list.
func ValidateDays(days []statex.Day) error {
	for i, day := range days {
		for _, seg := range []struct {
			name   string
			blocks []statex.ActivityBlock
		}{
			{"morning", day.Segments.Morning},
			{"afternoon", day.Segments.Afternoon},
			{"evening", day.Segments.Evening},
		} {
			for j, b := range seg.blocks {
				if strings.TrimSpace(b.Place) == "" {
					return fmt.Errorf("%w: days[%d].%s[%d].place is empty", ErrInvalidPatch, i, seg.name, j)
				}
				if math.IsNaN(b.DurationHours) || b.DurationHours < 0 || b.DurationHours > maxBlockHours {
					return fmt.Errorf("%w: days[%d].%s[%d].duration_hours=%g out of range", ErrInvalidPatch, i, seg.name, j, b.DurationHours)
				}
			}
		}
	}
	return nil
}

func mergeItinerary(it *statex.Itinerary, p ItineraryPatch) error {
	if err := ValidateDays(p.Days); err != nil {
		return err
	}
	days := make([]statex.Day, len(p.Days))
	for i, d := range p.Days {
		day := d.Clone()
		day.Title = strings.TrimSpace(day.Title)
		if day.Title == "" {
			day.Title = fmt.Sprintf("Day %d", i+1)
		}
		day.Segments.Morning = normalizeBlocks(day.Segments.Morning)
		day.Segments.Afternoon = normalizeBlocks(day.Segments.Afternoon)
		day.Segments.Evening = normalizeBlocks(day.Segments.Evening)
		days[i] = day
	}
	it.Days = days
	return nil
}

func normalizeBlocks(blocks []statex.ActivityBlock) []statex.ActivityBlock {
	if blocks == nil {
		return []statex.ActivityBlock{}
	}
	for i := range blocks {
		blocks[i].Place = strings.TrimSpace(blocks[i].Place)
		blocks[i].Descriptor = strings.TrimSpace(blocks[i].Descriptor)
	}
	return blocks
}

// deriveDayDates dates day i as outbound+i, or clears the dates when the
// outbound date is unknown.
func deriveDayDates(it *statex.Itinerary, outbound *civil.Date) {
	for i := range it.Days {
		if outbound == nil {
			it.Days[i].Date = nil
			continue
		}
		d := outbound.AddDays(i)
		it.Days[i].Date = &d
	}
}

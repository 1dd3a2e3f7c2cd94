// Package export renders a session's itinerary for external calendars.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

const productID = "-//Chative//Trip Planner//EN"

var ErrNothingToExport = errors.New("itinerary has no dated days")

// uidNamespace keeps event UIDs stable across exports of the same session.
var uidNamespace = uuid.MustParse("3f1c0f4e-8d7a-4b52-9a0e-5d2f6c1b7e90")

// ItineraryCalendar renders one all-day event per dated itinerary day. When
// the plan has no days yet but the trip dates are known, a single event
// spanning the trip is emitted instead.
func ItineraryCalendar(rec *statex.SessionRecord, stamp time.Time) (string, error) {
	if rec == nil {
		return "", statex.ErrNilRecord
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(calendarName(rec.Summary))

	events := 0
	for i, day := range rec.Itinerary.Days {
		if day.Date == nil {
			continue
		}
		start := day.Date.In(time.UTC)
		ev := cal.AddEvent(eventUID(rec.SessionID, i))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		ev.SetSummary(day.Title)
		if loc := rec.Summary.Destination.Label(); loc != "" {
			ev.SetLocation(loc)
		}
		if desc := dayDescription(day); desc != "" {
			ev.SetDescription(desc)
		}
		events++
	}

	s := rec.Summary
	if events == 0 && s.OutboundDate != nil && s.ReturnDate != nil {
		ev := cal.AddEvent(eventUID(rec.SessionID, -1))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetAllDayStartAt(s.OutboundDate.In(time.UTC))
		ev.SetAllDayEndAt(s.ReturnDate.In(time.UTC))
		ev.SetSummary(calendarName(s))
		if loc := s.Destination.Label(); loc != "" {
			ev.SetLocation(loc)
		}
		events++
	}

	if events == 0 {
		return "", ErrNothingToExport
	}
	return cal.Serialize(), nil
}

func eventUID(sessionID string, day int) string {
	return uuid.NewSHA1(uidNamespace, []byte(fmt.Sprintf("%s/%d", sessionID, day))).String()
}

func calendarName(s statex.TripSummary) string {
	if dest := s.Destination.Label(); dest != "" {
		return "Trip to " + dest
	}
	return "Trip"
}

func dayDescription(day statex.Day) string {
	var b strings.Builder
	write := func(label string, blocks []statex.ActivityBlock) {
		for _, blk := range blocks {
			fmt.Fprintf(&b, "%s: %s", label, blk.Place)
			if blk.DurationHours > 0 {
				fmt.Fprintf(&b, " (%gh)", blk.DurationHours)
			}
			if blk.Descriptor != "" {
				fmt.Fprintf(&b, " - %s", blk.Descriptor)
			}
			b.WriteString("\n")
		}
	}
	write("Morning", day.Segments.Morning)
	write("Afternoon", day.Segments.Afternoon)
	write("Evening", day.Segments.Evening)
	return strings.TrimSpace(b.String())
}

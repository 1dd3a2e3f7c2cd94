// Package triad solves the outbound/return/duration date triad.
//
// Duration counts nights: return = outbound + duration days. A trip leaving
// 2026-05-10 with a duration of 5 returns 2026-05-15.
package triad

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultHorizonDays bounds how far in the future a trip can start.
const DefaultHorizonDays = 365

type Input struct {
	Outbound     *civil.Date
	Return       *civil.Date
	DurationDays *int
}

// Known reports how many of the three values are set.
func (in Input) Known() int {
	n := 0
	if in.Outbound != nil {
		n++
	}
	if in.Return != nil {
		n++
	}
	if in.DurationDays != nil {
		n++
	}
	return n
}

type Options struct {
	Today       civil.Date
	HorizonDays int
}

func (o Options) horizon() civil.Date {
	days := o.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	return o.Today.AddDays(days)
}

// Result holds the solved triad. Solved is false when fewer than two values were known.
type Result struct {
	Outbound     *civil.Date
	Return       *civil.Date
	DurationDays *int
	Solved       bool
}

// Resolve validates the known values and derives the missing one when at least
// two are given. It never consults the clock; Today comes from opts.
func Resolve(in Input, opts Options) (Result, error) {
	if in.DurationDays != nil && *in.DurationDays < 1 {
		return Result{}, ErrInvalidDuration
	}
	if in.Outbound != nil {
		if err := CheckDate(FieldOutbound, *in.Outbound, opts); err != nil {
			return Result{}, err
		}
	}
	if in.Return != nil {
		if err := CheckDate(FieldReturn, *in.Return, opts); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Outbound:     copyDate(in.Outbound),
		Return:       copyDate(in.Return),
		DurationDays: copyInt(in.DurationDays),
	}
	if in.Known() < 2 {
		return res, nil
	}

	switch {
	case in.Outbound != nil && in.Return != nil:
		if !in.Return.After(*in.Outbound) {
			return Result{}, &InvertedRangeError{Outbound: *in.Outbound, Return: *in.Return}
		}
		derived := in.Return.DaysSince(*in.Outbound)
		if in.DurationDays != nil && *in.DurationDays != derived {
			return Result{}, &DurationMismatchError{
				Outbound: *in.Outbound,
				Return:   *in.Return,
				Given:    *in.DurationDays,
				Derived:  derived,
			}
		}
		res.DurationDays = &derived
	case in.Outbound != nil:
		ret := in.Outbound.AddDays(*in.DurationDays)
		if err := CheckDate(FieldReturn, ret, opts); err != nil {
			return Result{}, err
		}
		res.Return = &ret
	default:
		out := in.Return.AddDays(-*in.DurationDays)
		if err := CheckDate(FieldOutbound, out, opts); err != nil {
			return Result{}, err
		}
		res.Outbound = &out
	}
	res.Solved = true
	return res, nil
}

// CheckDate reports whether d lies strictly after today and within the horizon.
func CheckDate(field string, d civil.Date, opts Options) error {
	if !d.IsValid() {
		return fmt.Errorf("%w: %s=%s", ErrInvalidDate, field, d)
	}
	if !d.After(opts.Today) {
		return &DateInPastError{Field: field, Date: d, Suggested: SuggestFutureDate(d, opts.Today)}
	}
	if h := opts.horizon(); d.After(h) {
		return &DateTooFarError{Field: field, Date: d, Horizon: h}
	}
	return nil
}

// SuggestFutureDate returns the first date strictly after today with the month
// and day of d. Days missing from the target month are clamped to its last day.
func SuggestFutureDate(d, today civil.Date) civil.Date {
	if d.Month < time.January || d.Month > time.December {
		return today.AddDays(1)
	}
	for year := today.Year; ; year++ {
		c := clampDay(year, d.Month, d.Day)
		if c.After(today) {
			return c
		}
	}
}

func clampDay(year int, month time.Month, day int) civil.Date {
	last := civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)).Day
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func copyDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

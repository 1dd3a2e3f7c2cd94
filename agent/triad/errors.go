package triad

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

// Field names used in errors and conflicts.
const (
	FieldOutbound = "outbound_date"
	FieldReturn   = "return_date"
	FieldDuration = "duration_days"
)

var (
	ErrDateInPast       = errors.New("date is in the past")
	ErrDateTooFar       = errors.New("date is beyond the planning horizon")
	ErrInvertedRange    = errors.New("return date must be after outbound date")
	ErrDurationMismatch = errors.New("dates and duration disagree")
	ErrInvalidDuration  = errors.New("duration must be at least 1 day")
	ErrInvalidDate      = errors.New("date is not a valid calendar date")
)

// DateInPastError carries the next future occurrence of the same month and day.
type DateInPastError struct {
	Field     string
	Date      civil.Date
	Suggested civil.Date
}

func (e *DateInPastError) Error() string {
	return fmt.Sprintf("%s %s is in the past; did you mean %s?", e.Field, e.Date, e.Suggested)
}

func (e *DateInPastError) Unwrap() error { return ErrDateInPast }

type DateTooFarError struct {
	Field   string
	Date    civil.Date
	Horizon civil.Date
}

func (e *DateTooFarError) Error() string {
	return fmt.Sprintf("%s %s is after the planning horizon %s", e.Field, e.Date, e.Horizon)
}

func (e *DateTooFarError) Unwrap() error { return ErrDateTooFar }

type InvertedRangeError struct {
	Outbound civil.Date
	Return   civil.Date
}

func (e *InvertedRangeError) Error() string {
	return fmt.Sprintf("return %s is not after outbound %s", e.Return, e.Outbound)
}

func (e *InvertedRangeError) Unwrap() error { return ErrInvertedRange }

type DurationMismatchError struct {
	Outbound civil.Date
	Return   civil.Date
	Given    int
	Derived  int
}

func (e *DurationMismatchError) Error() string {
	return fmt.Sprintf("duration %d does not match %s..%s (%d days)", e.Given, e.Outbound, e.Return, e.Derived)
}

func (e *DurationMismatchError) Unwrap() error { return ErrDurationMismatch }

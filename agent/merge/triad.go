package merge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/triad"
)

type triadField struct {
	path     string
	date     *civil.Date
	duration *int
}

func (f triadField) String() string {
	if f.date != nil {
		return f.path + "=" + f.date.String()
	}
	if f.duration != nil {
		return f.path + "=" + strconv.Itoa(*f.duration)
	}
	return f.path
}

func isTriadPath(path string) bool {
	return path == PathOutboundDate || path == PathReturnDate || path == PathDurationDays
}

// mergeTriad applies the date fields of p. Each explicit value is checked on
// its own first. Survivors are solved together with the stored values that
// were given explicitly; a stored value the solver derived is re-derived
// instead. On failure the latest patch field is dropped until the rest
// solves. derived names the triad field the solver filled in, if any.
func (e *Engine) mergeTriad(s *statex.TripSummary, derived *string, p SummaryPatch, today civil.Date, conflicts *[]statex.Conflict) {
	opts := triad.Options{Today: today, HorizonDays: e.horizonDays}

	var explicit []triadField
	if p.OutboundDate != nil {
		if err := triad.CheckDate(triad.FieldOutbound, *p.OutboundDate, opts); err != nil {
			addTriadConflict(conflicts, PathOutboundDate, err)
		} else {
			explicit = append(explicit, triadField{path: PathOutboundDate, date: p.OutboundDate})
		}
	}
	if p.ReturnDate != nil {
		if err := triad.CheckDate(triad.FieldReturn, *p.ReturnDate, opts); err != nil {
			addTriadConflict(conflicts, PathReturnDate, err)
		} else {
			explicit = append(explicit, triadField{path: PathReturnDate, date: p.ReturnDate})
		}
	}
	if p.DurationDays != nil {
		if *p.DurationDays < 1 {
			addTriadConflict(conflicts, PathDurationDays, triad.ErrInvalidDuration)
		} else {
			explicit = append(explicit, triadField{path: PathDurationDays, duration: p.DurationDays})
		}
	}
	if len(explicit) == 0 {
		return
	}

	stored := storedExplicit(s, *derived, explicit)
	for len(explicit) > 0 {
		basis := append(append([]triadField(nil), stored...), explicit...)
		in := toInput(basis)
		res, err := triad.Resolve(in, opts)
		if err == nil {
			if res.Outbound != nil {
				s.OutboundDate = res.Outbound
			}
			if res.Return != nil {
				s.ReturnDate = res.Return
			}
			if res.DurationDays != nil {
				s.DurationDays = res.DurationDays
			}
			*derived = derivedPath(in, res)
			return
		}

		last := explicit[len(explicit)-1]
		explicit = explicit[:len(explicit)-1]
		var mismatch *triad.DurationMismatchError
		if len(stored) > 0 && errors.As(err, &mismatch) {
			addDataConflict(conflicts, last, append(append([]triadField(nil), stored...), explicit...), opts)
			continue
		}
		addTriadConflict(conflicts, last.path, err)
	}
}

// storedExplicit returns the stored triad values the patch does not replace,
// skipping the one the solver derived earlier.
func storedExplicit(s *statex.TripSummary, derived string, patch []triadField) []triadField {
	named := make(map[string]bool, len(patch))
	for _, f := range patch {
		named[f.path] = true
	}
	keep := func(path string) bool { return !named[path] && path != derived }

	var out []triadField
	if s.OutboundDate != nil && keep(PathOutboundDate) {
		out = append(out, triadField{path: PathOutboundDate, date: s.OutboundDate})
	}
	if s.ReturnDate != nil && keep(PathReturnDate) {
		out = append(out, triadField{path: PathReturnDate, date: s.ReturnDate})
	}
	if s.DurationDays != nil && keep(PathDurationDays) {
		out = append(out, triadField{path: PathDurationDays, duration: s.DurationDays})
	}
	return out
}

func toInput(fields []triadField) triad.Input {
	var in triad.Input
	for _, f := range fields {
		switch f.path {
		case PathOutboundDate:
			in.Outbound = f.date
		case PathReturnDate:
			in.Return = f.date
		case PathDurationDays:
			in.DurationDays = f.duration
		}
	}
	return in
}

// derivedPath names the value Resolve filled in, or "" when all were given.
func derivedPath(in triad.Input, res triad.Result) string {
	if !res.Solved || in.Known() == 3 {
		return ""
	}
	switch {
	case in.Outbound == nil:
		return PathOutboundDate
	case in.Return == nil:
		return PathReturnDate
	default:
		return PathDurationDays
	}
}

// addDataConflict reports a patch value that disagrees with explicit stored
// values. The suggestion is what the remaining values imply for the field.
func addDataConflict(conflicts *[]statex.Conflict, rejected triadField, basis []triadField, opts triad.Options) {
	suggested := ""
	if res, err := triad.Resolve(toInput(basis), opts); err == nil && res.Solved {
		switch rejected.path {
		case PathOutboundDate:
			suggested = res.Outbound.String()
		case PathReturnDate:
			suggested = res.Return.String()
		case PathDurationDays:
			suggested = strconv.Itoa(*res.DurationDays)
		}
	}

	parts := make([]string, 0, len(basis))
	for _, f := range basis {
		parts = append(parts, f.String())
	}
	addConflict(conflicts, rejected.path, CodeDataConflict,
		fmt.Sprintf("%s disagrees with %s; send the changed dates together or clear one first", rejected, strings.Join(parts, ", ")),
		suggested)
}

func addTriadConflict(conflicts *[]statex.Conflict, path string, err error) {
	var (
		past     *triad.DateInPastError
		mismatch *triad.DurationMismatchError
	)
	switch {
	case errors.As(err, &past):
		addConflict(conflicts, path, CodeDateInPast, err.Error(), past.Suggested.String())
	case errors.As(err, &mismatch):
		addConflict(conflicts, path, CodeDurationMismatch, err.Error(), strconv.Itoa(mismatch.Derived))
	case errors.Is(err, triad.ErrDateTooFar):
		addConflict(conflicts, path, CodeDateTooFar, err.Error(), "")
	case errors.Is(err, triad.ErrInvertedRange):
		addConflict(conflicts, path, CodeInvertedRange, err.Error(), "")
	case errors.Is(err, triad.ErrInvalidDuration):
		addConflict(conflicts, path, CodeInvalidDuration, err.Error(), "")
	case errors.Is(err, triad.ErrInvalidDate):
		addConflict(conflicts, path, CodeInvalidDate, err.Error(), "")
	default:
		addConflict(conflicts, path, CodeInvalidValue, err.Error(), "")
	}
}

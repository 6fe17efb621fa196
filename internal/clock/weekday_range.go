package clock

import (
	"errors"
	"fmt"
)

// ErrInvalidWeekdayRange is returned when persisted range bounds are inconsistent.
var ErrInvalidWeekdayRange = errors.New("invalid weekday range")

// WeekdayRange is an inclusive range of weekdays that may wrap past Saturday.
// Like TimeRange, a wrapping range stores its end shifted by one week.
type WeekdayRange struct {
	from uint32
	till uint32
}

// NewWeekdayRange builds a range from from to till, wrapping when till < from.
func NewWeekdayRange(from, till Weekday) WeekdayRange {
	if from <= till {
		return WeekdayRange{from: uint32(from), till: uint32(till)}
	}
	return WeekdayRange{from: uint32(from), till: uint32(till) + DaysPerWeek}
}

// WeekdayRangeFromNumbers validates raw bounds as stored by From and Till.
func WeekdayRangeFromNumbers(from, till uint32) (WeekdayRange, error) {
	switch {
	case from >= DaysPerWeek:
		return WeekdayRange{}, fmt.Errorf("%w: start %d is not a weekday", ErrInvalidWeekdayRange, from)
	case from > till:
		return WeekdayRange{}, fmt.Errorf("%w: start %d is after end %d", ErrInvalidWeekdayRange, from, till)
	case till-from >= DaysPerWeek:
		return WeekdayRange{}, fmt.Errorf("%w: spans more than one week", ErrInvalidWeekdayRange)
	}
	return WeekdayRange{from: from, till: till}, nil
}

// From returns the raw start weekday index.
func (r WeekdayRange) From() uint32 { return r.from }

// Till returns the raw end; values of DaysPerWeek or more mean the range wraps past the end of the week.
func (r WeekdayRange) Till() uint32 { return r.till }

// Contains reports whether d falls inside the range.
func (r WeekdayRange) Contains(d Weekday) bool {
	return r.span().contains(uint32(d))
}

// IsNarrowerThan reports whether r is strictly inside other.
func (r WeekdayRange) IsNarrowerThan(other WeekdayRange) bool {
	return other.span().covers(r.span()) && !r.span().covers(other.span())
}

// IsWiderThan reports whether other is strictly inside r.
func (r WeekdayRange) IsWiderThan(other WeekdayRange) bool {
	return other.IsNarrowerThan(r)
}

// MakeWider returns next when it covers every day r covers.
func (r WeekdayRange) MakeWider(next WeekdayRange) (WeekdayRange, error) {
	if err := r.span().widen(next.span()); err != nil {
		return r, err
	}
	return next, nil
}

func (r WeekdayRange) span() cyclicSpan {
	return cyclicSpan{from: r.from, till: r.till, period: DaysPerWeek}
}

func (r WeekdayRange) String() string {
	return fmt.Sprintf("%s-%s", Weekday(r.from), Weekday(r.till%DaysPerWeek))
}

package clock

import (
	"errors"
	"fmt"
)

// ErrInvalidTimeRange is returned when persisted range bounds are inconsistent.
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange is an inclusive range of times of day. A range whose end is
// before its start crosses midnight; it is stored with the end shifted by one
// day, so till is always in [from, from+1d].
type TimeRange struct {
	from uint32
	till uint32
}

// NewTimeRange builds a range from from to till, crossing midnight when till < from.
func NewTimeRange(from, till TimeOfDay) TimeRange {
	if from <= till {
		return TimeRange{from: uint32(from), till: uint32(till)}
	}
	return TimeRange{from: uint32(from), till: uint32(till) + uint32(Day)}
}

// TimeRangeFromNumbers validates raw bounds as stored by TimeRange.From and TimeRange.Till.
func TimeRangeFromNumbers(from, till uint32) (TimeRange, error) {
	if from >= uint32(Day) {
		return TimeRange{}, fmt.Errorf("%w: start %dms is not a time of day", ErrInvalidTimeRange, from)
	}
	if from > till {
		return TimeRange{}, fmt.Errorf("%w: start %dms is after end %dms", ErrInvalidTimeRange, from, till)
	}
	if till-from > uint32(Day) {
		return TimeRange{}, fmt.Errorf("%w: spans more than one day", ErrInvalidTimeRange)
	}
	return TimeRange{from: from, till: till}, nil
}

// From returns the raw start in milliseconds since midnight.
func (r TimeRange) From() uint32 { return r.from }

// Till returns the raw end; values of one day or more mean the range crosses midnight.
func (r TimeRange) Till() uint32 { return r.till }

// CrossesMidnight reports whether the range ends on the following day.
func (r TimeRange) CrossesMidnight() bool {
	return r.till >= uint32(Day)
}

// Duration returns the length of the range.
func (r TimeRange) Duration() Duration {
	return Duration(r.till - r.from)
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t TimeOfDay) bool {
	return r.span().contains(uint32(t))
}

// IsNarrowerThan reports whether r is strictly inside other.
func (r TimeRange) IsNarrowerThan(other TimeRange) bool {
	return other.span().covers(r.span()) && !r.span().covers(other.span())
}

// IsWiderThan reports whether other is strictly inside r.
func (r TimeRange) IsWiderThan(other TimeRange) bool {
	return other.IsNarrowerThan(r)
}

// MakeWider returns next when it covers every time r covers. Otherwise it
// returns ErrRangeStartNarrowed or ErrRangeEndNarrowed.
func (r TimeRange) MakeWider(next TimeRange) (TimeRange, error) {
	if err := r.span().widen(next.span()); err != nil {
		return r, err
	}
	return next, nil
}

func (r TimeRange) span() cyclicSpan {
	return cyclicSpan{from: r.from, till: r.till, period: uint32(Day)}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s-%s", TimeOfDay(r.from), TimeOfDay(r.till%uint32(Day)))
}

package policy

import (
	"fmt"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
)

// ActivatorKind tags the variant of an Activator. Values are persisted.
type ActivatorKind uint8

const (
	KindAllTheTime ActivatorKind = iota
	KindOnWeekday
	KindInTimeRange
	KindInWeekdayRange
)

func (k ActivatorKind) String() string {
	switch k {
	case KindAllTheTime:
		return "all-the-time"
	case KindOnWeekday:
		return "on-weekday"
	case KindInTimeRange:
		return "in-time-range"
	case KindInWeekdayRange:
		return "in-weekday-range"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Activator decides when a rule applies. The set of implementations is
// closed: AllTheTime, OnWeekday, InTimeRange and InWeekdayRange.
type Activator interface {
	Kind() ActivatorKind
	IsEffective(now clock.DateTime) bool
	String() string
	activator()
}

// AllTheTime is always effective.
type AllTheTime struct{}

// OnWeekday is effective during one weekday.
type OnWeekday struct {
	Weekday clock.Weekday
}

// InTimeRange is effective while the local time of day is inside Range.
type InTimeRange struct {
	Range clock.TimeRange
}

// InWeekdayRange is effective while the local weekday is inside Range.
type InWeekdayRange struct {
	Range clock.WeekdayRange
}

func (AllTheTime) Kind() ActivatorKind     { return KindAllTheTime }
func (OnWeekday) Kind() ActivatorKind      { return KindOnWeekday }
func (InTimeRange) Kind() ActivatorKind    { return KindInTimeRange }
func (InWeekdayRange) Kind() ActivatorKind { return KindInWeekdayRange }

func (AllTheTime) IsEffective(clock.DateTime) bool { return true }

func (a OnWeekday) IsEffective(now clock.DateTime) bool {
	return now.Weekday() == a.Weekday
}

func (a InTimeRange) IsEffective(now clock.DateTime) bool {
	return a.Range.Contains(now.TimeOfDay())
}

func (a InWeekdayRange) IsEffective(now clock.DateTime) bool {
	return a.Range.Contains(now.Weekday())
}

func (AllTheTime) String() string       { return "all the time" }
func (a OnWeekday) String() string      { return "on " + a.Weekday.String() }
func (a InTimeRange) String() string    { return "between " + a.Range.String() }
func (a InWeekdayRange) String() string { return "from " + a.Range.String() }

func (AllTheTime) activator()     {}
func (OnWeekday) activator()      {}
func (InTimeRange) activator()    {}
func (InWeekdayRange) activator() {}

// EncodeActivator flattens an activator into its kind and up to two parameters.
func EncodeActivator(a Activator) (kind ActivatorKind, first, second uint32) {
	switch a := a.(type) {
	case AllTheTime:
		return KindAllTheTime, 0, 0
	case OnWeekday:
		return KindOnWeekday, uint32(a.Weekday), 0
	case InTimeRange:
		return KindInTimeRange, a.Range.From(), a.Range.Till()
	case InWeekdayRange:
		return KindInWeekdayRange, a.Range.From(), a.Range.Till()
	default:
		panic(fmt.Sprintf("policy: unhandled activator %T", a))
	}
}

// DecodeActivator is the inverse of EncodeActivator. Parameters are validated.
func DecodeActivator(kind ActivatorKind, first, second uint32) (Activator, error) {
	switch kind {
	case KindAllTheTime:
		return AllTheTime{}, nil
	case KindOnWeekday:
		d, err := clock.NewWeekday(int(first))
		if err != nil {
			return nil, err
		}
		return OnWeekday{Weekday: d}, nil
	case KindInTimeRange:
		r, err := clock.TimeRangeFromNumbers(first, second)
		if err != nil {
			return nil, err
		}
		return InTimeRange{Range: r}, nil
	case KindInWeekdayRange:
		r, err := clock.WeekdayRangeFromNumbers(first, second)
		if err != nil {
			return nil, err
		}
		return InWeekdayRange{Range: r}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownActivatorKind, kind)
	}
}

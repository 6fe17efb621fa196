package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidHour      = errors.New("hour must be in [0, 23]")
	ErrInvalidMinute    = errors.New("minute must be in [0, 59]")
	ErrInvalidTimeOfDay = errors.New("time of day must be less than 24h")
)

// HourOfDay is an hour of the day in [0, 23].
type HourOfDay uint8

// NewHour validates n as an hour of the day.
func NewHour(n int) (HourOfDay, error) {
	if n < 0 || n > 23 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidHour, n)
	}
	return HourOfDay(n), nil
}

// TimeOfDay is the number of milliseconds since midnight, in [0, 24h).
type TimeOfDay uint32

// NewTimeOfDay validates ms as milliseconds since midnight.
func NewTimeOfDay(ms uint64) (TimeOfDay, error) {
	if ms >= uint64(Day) {
		return 0, fmt.Errorf("%w: got %dms", ErrInvalidTimeOfDay, ms)
	}
	return TimeOfDay(ms), nil
}

// TimeOfDayFromClock builds a TimeOfDay from an hour and a minute.
func TimeOfDayFromClock(hour, minute int) (TimeOfDay, error) {
	h, err := NewHour(hour)
	if err != nil {
		return 0, err
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidMinute, minute)
	}
	return TimeOfDay(Duration(h)*Hour + Duration(minute)*Minute), nil
}

// MustTimeOfDay is TimeOfDayFromClock for literals known to be valid.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, err := TimeOfDayFromClock(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	return TimeOfDayFromClock(hour, minute)
}

// Milliseconds returns the raw millisecond offset from midnight.
func (t TimeOfDay) Milliseconds() uint32 {
	return uint32(t)
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() HourOfDay {
	return HourOfDay(Duration(t) / Hour)
}

// Minute returns the minute component.
func (t TimeOfDay) Minute() int {
	return int(Duration(t) % Hour / Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
